package settings

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "github.com/Zentik-notifier/backend-sub001/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// Config configures the settings store.
//
// Driver values:
//   - "sqlite": SQLite database file (default)
//   - "memory": volatile in-memory store
//
// If Driver is empty or "none", the store is a Memory store (nothing persists).
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "none", "memory":
		return NewMemory(), nil
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown settings driver: " + cfg.Driver)
	}
}

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) GetSetting(ctx context.Context, userID, name string) (string, bool, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	var v string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM user_settings WHERE user_id = ? AND name = ?`,
		userID, name,
	).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *sqliteStore) PutSetting(ctx context.Context, userID, name, value string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if userID == "" || name == "" {
		return errors.New("user id and setting name are required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_settings(user_id, name, value, updated_at) VALUES(?,?,?,?)
		 ON CONFLICT(user_id, name) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		userID, name, value, time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *sqliteStore) DeleteSetting(ctx context.Context, userID, name string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM user_settings WHERE user_id = ? AND name = ?`,
		userID, name,
	)
	return err
}
