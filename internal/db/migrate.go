// Package db applies the embedded schema with goose.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"

	"passport-platform/internal/db/migrations"
)

// RunMigrations applies all pending migrations from fsys. A nil fsys means the embedded schema.
func RunMigrations(ctx context.Context, sqlDB *sql.DB, log *slog.Logger, fsys fs.FS) error {
	if fsys == nil {
		fsys = migrations.FS
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, sqlDB, fsys)
	if err != nil {
		return fmt.Errorf("creating goose provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}

	for _, r := range results {
		if r.Error != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", r.Source.Version, r.Source.Path, r.Error)
		}
		log.Info("migration applied",
			"version", r.Source.Version,
			"file", r.Source.Path,
			"duration", r.Duration,
		)
	}
	if len(results) == 0 {
		log.Debug("all migrations already applied")
	}
	return nil
}
