// Package storage provides the key-value backends the rest of the service
// persists into. Every backend supports per-key expiry and an atomic-enough
// read-then-delete used for single-use records.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key is absent or has expired.
var ErrNotFound = errors.New("key not found")

// KV is a byte-valued key-value store with optional per-key TTL.
type KV interface {
	// Get returns the value stored at key.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value at key. A zero ttl means the key never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// GetDel returns the value stored at key and removes it.
	GetDel(ctx context.Context, key string) ([]byte, error)
	Close() error
}
