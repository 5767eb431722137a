package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"

	"github.com/saikatwtf/Lemon/internal/db"
	"github.com/saikatwtf/Lemon/resources"

	"github.com/iamwavecut/tool"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	migrate "github.com/rubenv/sql-migrate"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

type sqliteClient struct {
	db    *sqlx.DB
	mutex sync.RWMutex
}

func NewSQLiteClient(ctx context.Context, dir, dbName string) (*sqliteClient, error) {
	dbx, err := sqlx.Open("sqlite", filepath.Join(dir, dbName))
	if err != nil {
		return nil, errors.Wrap(err, "cant open db")
	}
	dbx.SetMaxOpenConns(1)

	if err := dbx.PingContext(ctx); err != nil {
		return nil, errors.Wrap(err, "cant ping db")
	}

	migrationsSource := &migrate.EmbedFileSystemMigrationSource{
		FileSystem: resources.FS,
		Root:       "migrations",
	}
	n, err := migrate.Exec(dbx.DB, "sqlite3", migrationsSource, migrate.Up)
	if err != nil {
		return nil, errors.Wrap(err, "migrate up failed")
	}
	if n > 0 {
		log.Infof("applied %d migrations!", n)
	}

	return &sqliteClient{db: dbx}, nil
}

func (c *sqliteClient) Close() error {
	return c.db.Close()
}

func (c *sqliteClient) GetSettings(ctx context.Context, chatID int64) (*db.Settings, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	res := &db.Settings{}
	err := c.db.GetContext(ctx, res, `
		SELECT id, language, flood_limit, flood_mode, flood_time, captcha_enabled, captcha_timeout
		FROM chats
		WHERE id = ?
	`, chatID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return res, nil
}

func (c *sqliteClient) SetSettings(ctx context.Context, settings *db.Settings) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := `
		INSERT INTO chats (id, language, flood_limit, flood_mode, flood_time, captcha_enabled, captcha_timeout)
		VALUES (:id, :language, :flood_limit, :flood_mode, :flood_time, :captcha_enabled, :captcha_timeout)
		ON CONFLICT(id) DO UPDATE SET
		language=excluded.language,
		flood_limit=excluded.flood_limit,
		flood_mode=excluded.flood_mode,
		flood_time=excluded.flood_time,
		captcha_enabled=excluded.captcha_enabled,
		captcha_timeout=excluded.captcha_timeout;
	`
	return tool.Err(c.db.NamedExecContext(ctx, query, settings))
}
