package main

import (
	"context"
	"os"

	"ArxivHarvester/internal/app"
	"ArxivHarvester/internal/config"
	"ArxivHarvester/internal/logging"
)

func main() {
	ctx := context.Background()
	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	application := app.New(cfg, logger)

	if err := application.Run(ctx); err != nil {
		logger.Error("application stopped", "error", err)
		os.Exit(1)
	}
}
