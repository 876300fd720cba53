package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ashgrove-labs/chat-service/internal/app"
	"github.com/ashgrove-labs/chat-service/internal/config"
	"github.com/ashgrove-labs/chat-service/internal/utils/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log, err := logger.NewLogger(cfg.Logging.Level, cfg.Environment)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize application", zap.Error(err))
	}

	if err := application.Run(ctx); err != nil {
		log.Fatal("Application terminated", zap.Error(err))
	}
}
