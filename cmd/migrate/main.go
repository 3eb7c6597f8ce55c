package main

import (
	"context"
	"flag"
	"time"

	"ledgerbank/internal/config"
	"ledgerbank/internal/db"
	"ledgerbank/internal/logging"
)

func main() {
	dir := flag.String("dir", "migrations", "directory holding *.sql migrations")
	flag.Parse()

	cfg, err := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logger.WithError(err).Fatal("failed to load config")
	}

	ctx := context.Background()
	database, err := db.Connect(ctx, cfg.DatabaseURL, 10*time.Second)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect database")
	}
	defer database.Close()

	applied, err := db.Migrate(ctx, database, *dir, logger)
	if err != nil {
		logger.WithError(err).Fatal("migration failed")
	}
	logger.WithField("count", len(applied)).Info("migrations complete")
}
