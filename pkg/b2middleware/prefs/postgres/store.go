// Package postgres is a PreferenceStore shared by many hosts through one
// PostgreSQL table.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sphen13/B2-Middleware/pkg/b2middleware"
)

// Schema creates the preferences table.
const Schema = `
CREATE TABLE IF NOT EXISTS preferences (
	domain TEXT NOT NULL,
	key TEXT NOT NULL,
	value TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (domain, key)
)`

const upsert = `
	INSERT INTO preferences (domain, key, value, updated_at)
	VALUES ($1, $2, $3, now())
	ON CONFLICT (domain, key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type txBeginner interface {
	Begin(context.Context) (pgx.Tx, error)
}

// Store implements b2middleware.PreferenceStore using PostgreSQL
type Store struct {
	db     DBTX
	domain string
}

// New creates a store over db scoped to domain. An empty domain selects
// b2middleware.DefaultDomain. When db is already a transaction SetAll
// writes through it.
func New(db DBTX, domain string) *Store {
	if domain == "" {
		domain = b2middleware.DefaultDomain
	}
	return &Store{db: db, domain: domain}
}

// NewWithPool creates a store with connection pool
func NewWithPool(pool *pgxpool.Pool, domain string) *Store {
	return New(pool, domain)
}

// Connect opens a pool for connString, creates the table if needed and
// returns the store with the pool so the caller can close it.
func Connect(ctx context.Context, connString, domain string) (*Store, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: connecting: %w", err)
	}
	s := NewWithPool(pool, domain)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return s, pool, nil
}

var _ b2middleware.PreferenceStore = (*Store)(nil)

// Migrate creates the preferences table if it does not exist
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return handlePostgresError("migrate", err)
	}
	return nil
}

// Domain returns the preference domain the store is scoped to.
func (s *Store) Domain() string { return s.domain }

// Get returns the value stored under key
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(ctx,
		`SELECT value FROM preferences WHERE domain = $1 AND key = $2`, s.domain, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, handlePostgresError("get "+key, err)
	}
	return value, true, nil
}

// GetAll reads keys with a single statement, so the result comes from one
// snapshot even under READ COMMITTED.
func (s *Store) GetAll(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT key, value FROM preferences WHERE domain = $1 AND key = ANY($2)`, s.domain, keys)
	if err != nil {
		return nil, handlePostgresError("get all", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, handlePostgresError("scan", err)
		}
		out[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, handlePostgresError("get all", err)
	}
	return out, nil
}

// Set stores value under key
func (s *Store) Set(ctx context.Context, key, value string) error {
	if _, err := s.db.Exec(ctx, upsert, s.domain, key, value); err != nil {
		return handlePostgresError("set "+key, err)
	}
	return nil
}

// SetAll stores every pair in one transaction
func (s *Store) SetAll(ctx context.Context, values map[string]string) error {
	b, ok := s.db.(txBeginner)
	if !ok {
		return s.setAll(ctx, s.db, values)
	}

	tx, err := b.Begin(ctx)
	if err != nil {
		return handlePostgresError("begin", err)
	}
	defer tx.Rollback(ctx)

	if err := s.setAll(ctx, tx, values); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return handlePostgresError("commit", err)
	}
	return nil
}

func (s *Store) setAll(ctx context.Context, db DBTX, values map[string]string) error {
	for _, key := range slices.Sorted(maps.Keys(values)) {
		if _, err := db.Exec(ctx, upsert, s.domain, key, values[key]); err != nil {
			return handlePostgresError("set "+key, err)
		}
	}
	return nil
}

func handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42P01": // undefined_table
			return fmt.Errorf("postgres %s: table does not exist - run Migrate: %w", operation, err)
		case "23502": // not_null_violation
			return fmt.Errorf("postgres %s: required field %s is missing: %w", operation, pgErr.ColumnName, err)
		}
		return fmt.Errorf("postgres %s: %s (code: %s): %w", operation, pgErr.Message, pgErr.Code, err)
	}
	return fmt.Errorf("postgres %s: %w", operation, err)
}
