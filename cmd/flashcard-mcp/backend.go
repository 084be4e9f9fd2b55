package main

import (
	"context"
	"fmt"

	"github.com/conorfennell/flashcard-mcp/internal/config"
	"github.com/conorfennell/flashcard-mcp/internal/storage"
	"github.com/conorfennell/flashcard-mcp/internal/store"
	"github.com/rs/zerolog"
)

// backend pairs the KV used for OAuth records with the deck store.
type backend struct {
	kv   storage.KV
	deck store.Store
}

func (b *backend) Close() error { return b.kv.Close() }

// openBackend connects the configured storage. The file backend keeps the deck
// in a JSON file and OAuth records in memory.
func openBackend(ctx context.Context, cfg config.Store, logger zerolog.Logger) (*backend, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		db, err := storage.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		purged, err := db.PurgeExpired(ctx)
		if err != nil {
			db.Close()
			return nil, err
		}
		logger.Debug().Str("path", cfg.Path).Int64("purged", purged).Msg("opened sqlite store")
		return &backend{kv: db, deck: store.NewKVStore(db, cfg.Key)}, nil

	case config.BackendRedis:
		rdb, err := storage.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return &backend{kv: rdb, deck: store.NewKVStore(rdb, cfg.Key)}, nil

	case config.BackendMemory:
		logger.Warn().Msg("memory backend: flashcards are lost on exit")
		mem := storage.NewMemory()
		return &backend{kv: mem, deck: store.NewKVStore(mem, cfg.Key)}, nil

	case config.BackendFile:
		return &backend{kv: storage.NewMemory(), deck: store.NewFileStore(cfg.Path)}, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}
