package sqlite

import (
	"context"

	"github.com/saikatwtf/Lemon/internal/db"
)

func (c *sqliteClient) GetWarns(ctx context.Context, chatID, userID int64) ([]*db.Warn, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var warns []*db.Warn
	err := c.db.SelectContext(ctx, &warns, `
		SELECT chat_id, user_id, seq, reason, created_at
		FROM warns
		WHERE chat_id = ? AND user_id = ?
		ORDER BY seq
	`, chatID, userID)
	return warns, err
}

// AddWarn appends a warning and returns the new count. The sequence number
// assignment and the count read happen under the client mutex so concurrent
// warns against the same user cannot collide.
func (c *sqliteClient) AddWarn(ctx context.Context, chatID, userID int64, reason string) (int, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO warns (chat_id, user_id, seq, reason)
		VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM warns WHERE chat_id = ? AND user_id = ?), ?)
	`, chatID, userID, chatID, userID, reason)
	if err != nil {
		return 0, err
	}

	var count int
	if err := tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM warns WHERE chat_id = ? AND user_id = ?`, chatID, userID); err != nil {
		return 0, err
	}

	return count, tx.Commit()
}

func (c *sqliteClient) ResetWarns(ctx context.Context, chatID, userID int64) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, `DELETE FROM warns WHERE chat_id = ? AND user_id = ?`, chatID, userID)
	return err
}
