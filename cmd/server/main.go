package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"sprayDispatch/internal/app"
	"sprayDispatch/internal/config"
	"sprayDispatch/internal/logging"
)

func main() {
	// Load configuration
	cfg, err := config.LoadWithDefaults()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New("spray-dispatch", cfg.Log.Level, os.Stdout)
	logger.Info("config_loaded", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("init app: %v", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Printf("close: %v", err)
		}
	}()

	// Serve until SIGINT/SIGTERM
	if err := a.Run(ctx); err != nil {
		logger.Error("server_stopped", "error", err.Error())
		return
	}
	logger.Info("server_stopped")
}
