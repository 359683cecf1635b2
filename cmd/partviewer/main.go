// Package main is the entry point for the Aerie part viewer.
package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/frc3322/aerie-partview/internal/app"
	"github.com/frc3322/aerie-partview/internal/config"
	"github.com/frc3322/aerie-partview/internal/logger"
	"github.com/frc3322/aerie-partview/internal/viewer"
)

func main() {
	// Parse CLI flags first
	config.ParseFlags()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	part := config.Part()
	if part == "" {
		fmt.Fprintln(os.Stderr, "Usage: partviewer [flags] <part-id>")
		os.Exit(2)
	}

	logger.Log.Info("=== Aerie Part Viewer ===")
	logger.Sugar.Debugf("Config: %+v", cfg)

	a, err := app.New(cfg, logger.Log)
	if err != nil {
		logger.Log.Error("failed to create application", zap.Error(err))
		os.Exit(1)
	}
	defer a.Close()

	if err := a.Open(context.Background(), viewer.PartID(part)); err != nil {
		logger.Log.Error("failed to open part", zap.String("part", part), zap.Error(err))
		os.Exit(1)
	}

	// Run the event loop
	if err := a.Run(); err != nil {
		logger.Log.Error("viewer error", zap.Error(err))
		os.Exit(1)
	}

	logger.Log.Info("viewer closed normally")
}
