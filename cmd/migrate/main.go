package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/opentrusty/qaguard/internal/observability/logger"
	"github.com/opentrusty/qaguard/internal/store/postgres"
)

func main() {
	dsn := flag.String("dsn", os.Getenv("DATABASE_URL"), "postgres connection URL (defaults to $DATABASE_URL)")
	dryRun := flag.Bool("dry-run", false, "print the schema instead of applying it")
	timeout := flag.Duration("timeout", 2*time.Minute, "migration timeout")
	flag.Parse()

	logger.InitLogger(logger.Config{Level: "info", Format: "text", ServiceName: "qaguard-migrate", DisableOTel: true})

	if *dryRun {
		fmt.Print(postgres.InitialSchema)
		return
	}
	if *dsn == "" {
		slog.Error("no connection URL: pass -dsn or set DATABASE_URL")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := postgres.New(ctx, postgres.Config{DSN: *dsn, MaxOpenConns: 1})
	if err != nil {
		slog.Error("failed to connect", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
		slog.Error("migration failed", logger.Error(err))
		os.Exit(1)
	}
	slog.Info("migration successful")
}
