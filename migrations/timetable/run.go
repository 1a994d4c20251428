package main

import (
	"context"
	"embed"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ghuser/timetable/pkg/config"
	"github.com/ghuser/timetable/pkg/migrator"
)

//go:embed *.sql
var MigrationsFS embed.FS

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n, err := migrator.RunMigrations(ctx, cfg.DatabaseURL, MigrationsFS, log)
	if err != nil {
		log.Error("migrations failed", "error", err, "applied", n)
		stop()
		os.Exit(1) //nolint:gocritic
	}
	log.Info("migrations complete", "applied", n)
}
