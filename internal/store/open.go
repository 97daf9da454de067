package store

import (
	"context"
	"fmt"
	"path/filepath"

	"balloon-duel/internal/config"
)

// Open builds the backend selected by cfg.StoreDriver and applies its schema.
func Open(ctx context.Context, cfg config.ServerConfig) (Backend, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory, "":
		return NewMemoryStore(), nil
	case config.StoreDriverPostgres:
		st, err := NewPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := st.Ping(ctx); err != nil {
			st.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		if cfg.MigrationsDir != "" {
			if err := st.Migrate(ctx, cfg.MigrationsDir); err != nil {
				st.Close()
				return nil, err
			}
		}
		return st, nil
	case config.StoreDriverSQLite:
		return NewSQLite(ctx, cfg.SQLitePath, filepath.Join(cfg.MigrationsDir, "sqlite"))
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
