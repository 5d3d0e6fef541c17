package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rickgao/ledger-notify/internal/config"
	"github.com/rickgao/ledger-notify/internal/database"
)

// Open creates the store selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (ObjectStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Backend {
	case "", config.BackendMemory:
		logger.Info("using in-memory object store")
		return NewMemory(), nil

	case config.BackendPebble:
		s, err := OpenPebble(cfg.Pebble.Dir)
		if err != nil {
			return nil, err
		}
		logger.Info("opened pebble object store", "dir", cfg.Pebble.Dir)
		return s, nil

	case config.BackendPostgres:
		pool, err := database.Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		s := NewPostgres(pool)
		if err := s.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, err
		}
		logger.Info("connected postgres object store",
			"host", cfg.Postgres.Host,
			"database", cfg.Postgres.Name,
		)
		return s, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
