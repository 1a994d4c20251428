// Package migrator applies the embedded goose migrations that create the
// application_config, message_log, sectioning_preference, event and course
// structure tables.
package migrator

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// RunMigrations applies every pending migration in files to dbURL and returns
// how many ran. Each applied version is logged.
func RunMigrations(ctx context.Context, dbURL string, files fs.FS, log *slog.Logger) (int, error) {
	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		return 0, fmt.Errorf("migrator: open database: %w", err)
	}
	defer db.Close() //nolint:errcheck

	provider, err := goose.NewProvider(goose.DialectPostgres, db, files)
	if err != nil {
		return 0, fmt.Errorf("migrator: load migrations: %w", err)
	}
	results, err := provider.Up(ctx)
	for _, r := range results {
		log.InfoContext(ctx, "migration applied",
			"version", r.Source.Version,
			"file", r.Source.Path,
			"duration", r.Duration,
		)
	}
	if err != nil {
		return len(results), fmt.Errorf("migrator: up: %w", err)
	}
	return len(results), nil
}
