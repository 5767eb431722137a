package sqlite

import (
	"context"
	"database/sql"

	"github.com/iamwavecut/tool"
	"github.com/pkg/errors"

	"github.com/saikatwtf/Lemon/internal/db"
)

func (c *sqliteClient) GetGreetings(ctx context.Context, chatID int64) (*db.Greetings, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	res := &db.Greetings{}
	err := c.db.GetContext(ctx, res, `
		SELECT chat_id, welcome_enabled, welcome_text, farewell_enabled, farewell_text
		FROM greetings
		WHERE chat_id = ?
	`, chatID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return res, nil
}

func (c *sqliteClient) SetGreetings(ctx context.Context, greetings *db.Greetings) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := `
		INSERT INTO greetings (chat_id, welcome_enabled, welcome_text, farewell_enabled, farewell_text)
		VALUES (:chat_id, :welcome_enabled, :welcome_text, :farewell_enabled, :farewell_text)
		ON CONFLICT(chat_id) DO UPDATE SET
		welcome_enabled=excluded.welcome_enabled,
		welcome_text=excluded.welcome_text,
		farewell_enabled=excluded.farewell_enabled,
		farewell_text=excluded.farewell_text;
	`
	return tool.Err(c.db.NamedExecContext(ctx, query, greetings))
}
