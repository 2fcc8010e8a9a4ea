package main

import (
	"context"
	"os"
	"time"

	"qxtrader/internal/config"
	"qxtrader/internal/db"
	"qxtrader/internal/logging"
	"qxtrader/internal/store"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logging.New(cfg.Debug)
	defer func() { _ = log.Sync() }()

	if cfg.DatabaseURL == "" {
		log.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.Migrate(ctx, database, store.Schema); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("schema applied", "table", "kv_entries")
}
