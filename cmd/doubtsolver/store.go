package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/memohai/doubtsolver/internal/access"
	"github.com/memohai/doubtsolver/internal/config"
	"github.com/memohai/doubtsolver/internal/db"
	dbsqlc "github.com/memohai/doubtsolver/internal/db/sqlc"
)

// openAccessStore opens the configured allow-list backend. Postgres schemas
// are migrated first. The returned func releases the backend.
func openAccessStore(ctx context.Context, log *slog.Logger, cfg config.StorageConfig) (access.Store, func(), error) {
	switch cfg.Driver {
	case "badger":
		bdb, err := access.OpenBadger(cfg.Badger.Path, cfg.Badger.InMemory)
		if err != nil {
			return nil, nil, fmt.Errorf("open badger: %w", err)
		}
		log.Info("allow-list store ready", slog.String("driver", "badger"), slog.String("path", cfg.Badger.Path))
		return access.NewBadgerStore(bdb), func() { _ = bdb.Close() }, nil
	default:
		if err := db.Migrate(cfg.Postgres); err != nil {
			return nil, nil, fmt.Errorf("db migrate: %w", err)
		}
		pool, err := db.Open(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("db connect: %w", err)
		}
		log.Info("allow-list store ready", slog.String("driver", "postgres"))
		return access.NewPostgresStore(dbsqlc.New(pool)), pool.Close, nil
	}
}
