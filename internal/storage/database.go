package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// SQLite is a KV backed by a single sqlite table.
type SQLite struct {
	conn *sql.DB
	now  func() time.Time
}

// Open creates a new database connection and ensures the schema is up to date.
func Open(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLite{conn: db, now: time.Now}, nil
}

// SetClock replaces the clock used for expiry checks.
func (db *SQLite) SetClock(now func() time.Time) {
	db.now = now
}

// Close closes the database connection.
func (db *SQLite) Close() error {
	return db.conn.Close()
}

// Get returns the value stored at key. Expired rows are removed on sight.
func (db *SQLite) Get(ctx context.Context, key string) ([]byte, error) {
	value, expiresAt, err := db.lookup(ctx, db.conn, key)
	if err != nil {
		return nil, err
	}
	if db.expired(expiresAt) {
		if _, err := db.conn.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
			return nil, fmt.Errorf("failed to delete expired key %s: %w", key, err)
		}
		return nil, ErrNotFound
	}
	return value, nil
}

// Set inserts or replaces the value at key.
func (db *SQLite) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt sql.NullInt64
	if ttl > 0 {
		expiresAt = sql.NullInt64{Int64: db.now().Add(ttl).UnixMilli(), Valid: true}
	}

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO kv (key, value, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
	`, key, value, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// GetDel reads and deletes key in one transaction.
func (db *SQLite) GetDel(ctx context.Context, key string) ([]byte, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	value, expiresAt, err := db.lookup(ctx, tx, key)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return nil, fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit delete of key %s: %w", key, err)
	}

	if db.expired(expiresAt) {
		return nil, ErrNotFound
	}
	return value, nil
}

// PurgeExpired deletes every expired row and reports how many were removed.
func (db *SQLite) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `
		DELETE FROM kv
		WHERE expires_at IS NOT NULL AND expires_at <= ?
	`, db.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired keys: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged keys: %w", err)
	}
	return n, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (db *SQLite) lookup(ctx context.Context, q querier, key string) ([]byte, sql.NullInt64, error) {
	var value []byte
	var expiresAt sql.NullInt64

	err := q.QueryRowContext(ctx, `SELECT value, expires_at FROM kv WHERE key = ?`, key).Scan(&value, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, expiresAt, ErrNotFound
		}
		return nil, expiresAt, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return value, expiresAt, nil
}

func (db *SQLite) expired(expiresAt sql.NullInt64) bool {
	return expiresAt.Valid && expiresAt.Int64 <= db.now().UnixMilli()
}
