// Package storage opens the record store selected by configuration.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sakif/snippetbot/internal/config"
	"github.com/sakif/snippetbot/internal/repository"
	"github.com/sakif/snippetbot/internal/repository/mongodb"
	sqliteRepo "github.com/sakif/snippetbot/internal/repository/sqlite"
)

// Open returns a connected Store for cfg.StoreDriver. The caller owns it and
// must Close it.
func Open(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		if cfg.DBPath != ":memory:" {
			// os.MkdirAll is a no-op when the directory already exists (like `mkdir -p`).
			dir := filepath.Dir(cfg.DBPath)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("storage: creating database directory %s: %w", dir, err)
			}
		}
		db, err := sqliteRepo.New(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
		return db, nil

	case config.DriverMongo:
		db, err := mongodb.New(ctx, cfg.MongoURI, cfg.DBName)
		if err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
		return db, nil

	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.StoreDriver)
	}
}
