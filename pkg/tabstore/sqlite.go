package tabstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS tab_entries (
	tab_id     TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (tab_id, key)
)`

// SQLiteStore persists tab state in a SQLite database. Several stores may
// share one database file; each only ever reads and writes rows under its own
// tab id, and Close removes them.
type SQLiteStore struct {
	tabID  string
	logger zerolog.Logger

	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

// NewSQLiteStore opens (or creates) the database at dsn under a fresh tab id.
func NewSQLiteStore(dsn string, logger zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open tab database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping tab database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	s := &SQLiteStore{
		tabID: uuid.New().String(),
		db:    db,
	}
	s.logger = logger.With().Str("component", "tabstore").Str("tab_id", s.tabID).Logger()
	s.logger.Debug().Msg("tab store opened")
	return s, nil
}

func (s *SQLiteStore) TabID() string { return s.tabID }

func (s *SQLiteStore) conn() (*sql.DB, error) {
	if s.closed {
		return nil, ErrClosed
	}
	return s.db, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	db, err := s.conn()
	if err != nil {
		return "", err
	}
	var value string
	err = db.QueryRowContext(ctx,
		`SELECT value FROM tab_entries WHERE tab_id = ? AND key = ?`, s.tabID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading %q: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	db, err := s.conn()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO tab_entries (tab_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(tab_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.tabID, key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("writing %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	db, err := s.conn()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx,
		`DELETE FROM tab_entries WHERE tab_id = ? AND key = ?`, s.tabID, key); err != nil {
		return fmt.Errorf("deleting %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Keys(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx,
		`SELECT key FROM tab_entries WHERE tab_id = ? ORDER BY key`, s.tabID)
	if err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scanning key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	db, err := s.conn()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM tab_entries WHERE tab_id = ?`, s.tabID); err != nil {
		return fmt.Errorf("clearing tab: %w", err)
	}
	return nil
}

// Close drops this tab's rows and closes the database. Closing twice is a no-op.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if _, err := s.db.Exec(`DELETE FROM tab_entries WHERE tab_id = ?`, s.tabID); err != nil {
		s.logger.Warn().Err(err).Msg("failed to drop tab rows on close")
	}
	return s.db.Close()
}
