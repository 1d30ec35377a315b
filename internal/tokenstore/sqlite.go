package tokenstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/oauth2"
)

const driverName = "sqlite3"

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS tokens (
		user_id VARCHAR NOT NULL PRIMARY KEY,
		token TEXT NOT NULL,
		updated_at VARCHAR NOT NULL
	)`,
}

type tokenRow struct {
	UserID    string `db:"user_id"`
	Token     string `db:"token"`
	UpdatedAt string `db:"updated_at"`
}

// SQLiteStore keeps tokens in a single sqlite table.
type SQLiteStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// DefaultSQLitePath returns $XDG_DATA_HOME/freebusy/tokens.db, creating the
// parent directory.
func DefaultSQLitePath() (string, error) {
	path, err := xdg.DataFile(filepath.Join("freebusy", "tokens.db"))
	if err != nil {
		return "", fmt.Errorf("failed to resolve data path: %w", err)
	}
	return path, nil
}

// OpenSQLite opens (or creates) the database at path and runs migrations.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sqlx.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open token database: %w", err)
	}
	// sqlite allows a single writer; one connection also keeps :memory: shared.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run token database migrations: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) runMigrations() error {
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Load(ctx context.Context, userID string) (*oauth2.Token, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}

	var row tokenRow
	err := s.db.GetContext(ctx, &row, `
		SELECT user_id, token, updated_at
		FROM tokens
		WHERE user_id = ?
	`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal([]byte(row.Token), &token); err != nil {
		return nil, fmt.Errorf("failed to decode stored token: %w", err)
	}
	return &token, nil
}

func (s *SQLiteStore) Save(ctx context.Context, userID string, token *oauth2.Token) error {
	if err := validateUserID(userID); err != nil {
		return err
	}
	if token == nil {
		return errors.New("token is nil")
	}

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	updatedAt := s.now().UTC().Format(time.RFC3339)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tokens (user_id, token, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET token = ?, updated_at = ?;
	`, userID, string(data), updatedAt, string(data), updatedAt)
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, userID string) error {
	if err := validateUserID(userID); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM tokens WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
