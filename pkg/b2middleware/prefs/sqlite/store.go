// Package sqlite is a durable, host-scoped PreferenceStore backed by a
// single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sphen13/B2-Middleware/pkg/b2middleware"
)

const schema = `
CREATE TABLE IF NOT EXISTS preferences (
	domain TEXT NOT NULL,
	key TEXT NOT NULL,
	value TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (domain, key)
)`

const upsert = `
INSERT INTO preferences(domain, key, value, updated_at) VALUES(?, ?, ?, ?)
ON CONFLICT(domain, key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`

// Store keeps preferences of one domain in a SQLite database.
type Store struct {
	db     *sql.DB
	domain string
}

// Open opens or creates the database at path and scopes the store to domain.
// An empty domain selects b2middleware.DefaultDomain.
func Open(path, domain string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite: db path required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if domain == "" {
		domain = b2middleware.DefaultDomain
	}
	s := &Store{db: db, domain: domain}
	if err := s.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Domain returns the preference domain the store is scoped to.
func (s *Store) Domain() string { return s.domain }

func (s *Store) init(ctx context.Context) error {
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA synchronous=FULL", "PRAGMA busy_timeout=5000"} {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("sqlite: creating preferences table: %w", err)
	}
	return nil
}

var _ b2middleware.PreferenceStore = (*Store)(nil)

// Get returns the value stored under key
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM preferences WHERE domain = ? AND key = ?", s.domain, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("sqlite: reading %s: %w", key, err)
	}
	return value, true, nil
}

// GetAll reads keys with a single statement, so the result comes from one
// snapshot of the table.
func (s *Store) GetAll(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	args := make([]any, 0, len(keys)+1)
	args = append(args, s.domain)
	for _, key := range keys {
		args = append(args, key)
	}
	query := "SELECT key, value FROM preferences WHERE domain = ? AND key IN (?" +
		strings.Repeat(", ?", len(keys)-1) + ")"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading %s: %w", strings.Join(keys, ", "), err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("sqlite: scanning preference: %w", err)
		}
		out[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: reading %s: %w", strings.Join(keys, ", "), err)
	}
	return out, nil
}

// Set stores value under key
func (s *Store) Set(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(ctx, upsert, s.domain, key, value, now()); err != nil {
		return fmt.Errorf("sqlite: writing %s: %w", key, err)
	}
	return nil
}

// SetAll stores every pair in one transaction
func (s *Store) SetAll(ctx context.Context, values map[string]string) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	ts := now()
	for _, key := range slices.Sorted(maps.Keys(values)) {
		if _, err = tx.ExecContext(ctx, upsert, s.domain, key, values[key], ts); err != nil {
			return fmt.Errorf("sqlite: writing %s: %w", key, err)
		}
	}
	return tx.Commit()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
