package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const tokenKey = "token"

// SQLiteStore keeps the token in a key/value table of a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("session path is required")
	}
	clean := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(clean), 0o700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	db, err := sql.Open("sqlite", clean+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if _, err := db.Exec(`create table if not exists kv(key text primary key, value text not null)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate session db: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context) (string, bool, error) {
	var token string
	err := s.db.QueryRowContext(ctx, `select value from kv where key = ?`, tokenKey).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get session: %w", err)
	}
	return token, token != "", nil
}

func (s *SQLiteStore) Set(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx,
		`insert into kv(key, value) values(?, ?) on conflict(key) do update set value = excluded.value`,
		tokenKey, token)
	if err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `delete from kv where key = ?`, tokenKey); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
