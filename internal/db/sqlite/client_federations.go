package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/saikatwtf/Lemon/internal/db"
	apperrors "github.com/saikatwtf/Lemon/internal/errors"
)

func (c *sqliteClient) CreateFederation(ctx context.Context, fed *db.Federation) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO federations (fed_id, owner_id, name) VALUES (?, ?, ?)
	`, fed.FedID, fed.OwnerID, fed.Name)
	return err
}

func (c *sqliteClient) GetFederation(ctx context.Context, fedID string) (*db.Federation, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var fed db.Federation
	err := c.db.GetContext(ctx, &fed, `
		SELECT fed_id, owner_id, name FROM federations WHERE fed_id = ?
	`, fedID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &fed, nil
}

func (c *sqliteClient) GetFederationByChat(ctx context.Context, chatID int64) (*db.Federation, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var fed db.Federation
	err := c.db.GetContext(ctx, &fed, `
		SELECT f.fed_id, f.owner_id, f.name
		FROM federations f
		JOIN fed_chats fc ON fc.fed_id = f.fed_id
		WHERE fc.chat_id = ?
	`, chatID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &fed, nil
}

// AddFedChat enrolls the chat into the federation. The chat_id UNIQUE
// constraint keeps a chat in at most one federation, so a chat that is
// already federated gets ErrAlreadyFederated instead of a silent no-op.
func (c *sqliteClient) AddFedChat(ctx context.Context, fedID string, chatID int64) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	res, err := c.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO fed_chats (fed_id, chat_id) VALUES (?, ?)
	`, fedID, chatID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.ErrAlreadyFederated
	}
	return nil
}

func (c *sqliteClient) RemoveFedChat(ctx context.Context, fedID string, chatID int64) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, `DELETE FROM fed_chats WHERE fed_id = ? AND chat_id = ?`, fedID, chatID)
	return err
}

func (c *sqliteClient) GetFedChats(ctx context.Context, fedID string) ([]int64, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var chatIDs []int64
	err := c.db.SelectContext(ctx, &chatIDs, `SELECT chat_id FROM fed_chats WHERE fed_id = ? ORDER BY chat_id`, fedID)
	return chatIDs, err
}

func (c *sqliteClient) AddFedAdmin(ctx context.Context, fedID string, userID int64) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO fed_admins (fed_id, user_id) VALUES (?, ?)
	`, fedID, userID)
	return err
}

func (c *sqliteClient) GetFedAdmins(ctx context.Context, fedID string) ([]int64, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var userIDs []int64
	err := c.db.SelectContext(ctx, &userIDs, `SELECT user_id FROM fed_admins WHERE fed_id = ?`, fedID)
	return userIDs, err
}

func (c *sqliteClient) AddFedBan(ctx context.Context, ban *db.FedBan) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO fed_bans (fed_id, user_id, reason)
		VALUES (?, ?, ?)
		ON CONFLICT(fed_id, user_id) DO UPDATE SET reason = excluded.reason
	`, ban.FedID, ban.UserID, ban.Reason)
	return err
}

func (c *sqliteClient) RemoveFedBan(ctx context.Context, fedID string, userID int64) (bool, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	res, err := c.db.ExecContext(ctx, `DELETE FROM fed_bans WHERE fed_id = ? AND user_id = ?`, fedID, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (c *sqliteClient) GetFedBan(ctx context.Context, fedID string, userID int64) (*db.FedBan, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var ban db.FedBan
	err := c.db.GetContext(ctx, &ban, `
		SELECT fed_id, user_id, reason, created_at FROM fed_bans WHERE fed_id = ? AND user_id = ?
	`, fedID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &ban, nil
}

func (c *sqliteClient) CountFedBans(ctx context.Context, fedID string) (int, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var count int
	err := c.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM fed_bans WHERE fed_id = ?`, fedID)
	return count, err
}
