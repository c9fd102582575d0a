package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"wallet/internal/config"
	"wallet/internal/db"
	"wallet/internal/logging"
	"wallet/internal/migrations"
)

func main() {
	down := flag.Bool("down", false, "roll back the most recent migration")
	flag.Parse()

	cfg := config.Load()
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if *down {
		err = migrations.Down(ctx, database.DB)
	} else {
		err = migrations.Up(ctx, database.DB)
	}
	if err != nil {
		logger.Error("migration failed", "down", *down, "error", err)
		os.Exit(1)
	}
	logger.Info("migrations applied", "down", *down)
}
