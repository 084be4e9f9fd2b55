package storage

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Memory is a process-local KV. Nothing survives a restart, so it is meant for
// development and tests.
type Memory struct {
	cache *ttlcache.Cache[string, []byte]
}

// NewMemory creates an in-memory KV and starts its expiry loop.
func NewMemory() *Memory {
	cache := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	)
	go cache.Start()

	return &Memory{cache: cache}
}

// Get returns the value stored at key.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	item := m.cache.Get(key)
	if item == nil || item.IsExpired() {
		return nil, ErrNotFound
	}
	return clone(item.Value()), nil
}

// Set stores a copy of value at key.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = ttlcache.NoTTL
	}
	m.cache.Set(key, clone(value), ttl)
	return nil
}

// GetDel returns and removes the value stored at key.
func (m *Memory) GetDel(_ context.Context, key string) ([]byte, error) {
	item, ok := m.cache.GetAndDelete(key)
	if !ok || item == nil || item.IsExpired() {
		return nil, ErrNotFound
	}
	return clone(item.Value()), nil
}

// Close stops the expiry loop.
func (m *Memory) Close() error {
	m.cache.Stop()
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
