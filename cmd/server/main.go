package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/moca-trajectory-engine/internal/api"
	"github.com/moca-trajectory-engine/internal/app"
	"github.com/moca-trajectory-engine/internal/config"
	"github.com/moca-trajectory-engine/internal/logging"
)

var version = "dev"

func main() {
	configFile := flag.String("config", "", "Path to a config file (default: search ., ./config, /etc/moca-trajectory)")
	flag.Parse()

	// Load configuration
	configManager, err := config.NewManager(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize components")
	}
	defer components.Close()

	server := api.NewServer(configManager, components.Patients, logger, api.ServerOptions{
		Gatherer:    components.Registry,
		HealthCheck: components.HealthCheck,
		Version:     version,
	})

	logger.WithFields(logrus.Fields{
		"host":         cfg.Server.Host,
		"port":         cfg.Server.Port,
		"environment":  cfg.Environment,
		"scoring_mode": cfg.Scorer.Mode,
	}).Info("Starting MoCA trajectory server")

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Error("Server failed")
		components.Close()
		os.Exit(1)
	}

	logger.Info("Server stopped")
}
