package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/saikatwtf/Lemon/internal/db"
)

func (c *sqliteClient) AddFilter(ctx context.Context, filter *db.Filter) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO filters (chat_id, keyword, content)
		VALUES (?, ?, ?)
		ON CONFLICT(chat_id, keyword) DO UPDATE SET content = excluded.content
	`, filter.ChatID, strings.ToLower(filter.Keyword), filter.Content)
	return err
}

func (c *sqliteClient) RemoveFilter(ctx context.Context, chatID int64, keyword string) (bool, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	res, err := c.db.ExecContext(ctx, `DELETE FROM filters WHERE chat_id = ? AND keyword = ?`, chatID, strings.ToLower(keyword))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (c *sqliteClient) GetFilters(ctx context.Context, chatID int64) ([]*db.Filter, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var filters []*db.Filter
	err := c.db.SelectContext(ctx, &filters, `
		SELECT chat_id, keyword, content FROM filters WHERE chat_id = ? ORDER BY keyword
	`, chatID)
	return filters, err
}

func (c *sqliteClient) SaveNote(ctx context.Context, note *db.Note) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO notes (chat_id, name, content)
		VALUES (?, ?, ?)
		ON CONFLICT(chat_id, name) DO UPDATE SET content = excluded.content
	`, note.ChatID, strings.ToLower(note.Name), note.Content)
	return err
}

func (c *sqliteClient) DeleteNote(ctx context.Context, chatID int64, name string) (bool, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	res, err := c.db.ExecContext(ctx, `DELETE FROM notes WHERE chat_id = ? AND name = ?`, chatID, strings.ToLower(name))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (c *sqliteClient) GetNote(ctx context.Context, chatID int64, name string) (*db.Note, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var note db.Note
	err := c.db.GetContext(ctx, &note, `
		SELECT chat_id, name, content FROM notes WHERE chat_id = ? AND name = ?
	`, chatID, strings.ToLower(name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &note, nil
}

func (c *sqliteClient) GetNotes(ctx context.Context, chatID int64) ([]*db.Note, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var notes []*db.Note
	err := c.db.SelectContext(ctx, &notes, `
		SELECT chat_id, name, content FROM notes WHERE chat_id = ? ORDER BY name
	`, chatID)
	return notes, err
}

func (c *sqliteClient) ApproveUser(ctx context.Context, chatID, userID int64) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO approvals (chat_id, user_id) VALUES (?, ?)
	`, chatID, userID)
	return err
}

func (c *sqliteClient) DisapproveUser(ctx context.Context, chatID, userID int64) (bool, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	res, err := c.db.ExecContext(ctx, `DELETE FROM approvals WHERE chat_id = ? AND user_id = ?`, chatID, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (c *sqliteClient) IsApproved(ctx context.Context, chatID, userID int64) (bool, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var count int
	err := c.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM approvals WHERE chat_id = ? AND user_id = ?`, chatID, userID)
	return count > 0, err
}

func (c *sqliteClient) ListApproved(ctx context.Context, chatID int64) ([]int64, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var userIDs []int64
	err := c.db.SelectContext(ctx, &userIDs, `SELECT user_id FROM approvals WHERE chat_id = ? ORDER BY user_id`, chatID)
	return userIDs, err
}
