// Package main provides trajectoryctl, the operator CLI for the MoCA
// trajectory engine.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/moca-trajectory-engine/internal/config"
	"github.com/moca-trajectory-engine/internal/domain"
	"github.com/moca-trajectory-engine/internal/logging"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "trajectoryctl",
		Short: "Operate the MoCA trajectory engine",
		Long: `trajectoryctl recomputes stored patient trajectories, manages the Postgres
schema and scores patient files offline.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a config file")

	load := func() (*domain.Config, *logrus.Logger, error) {
		return loadConfig(configFile)
	}

	rootCmd.AddCommand(
		newRecomputeCmd(load),
		newMigrateCmd(load),
		newPredictCmd(),
	)
	return rootCmd
}

type configLoader func() (*domain.Config, *logrus.Logger, error)

func loadConfig(configFile string) (*domain.Config, *logrus.Logger, error) {
	manager, err := config.NewManager(configFile)
	if err != nil {
		return nil, nil, err
	}
	if err := manager.Validate(); err != nil {
		return nil, nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	cfg := manager.GetConfig()

	// Command output goes to stdout; keep logs on stderr.
	logCfg := cfg.Logging
	if logCfg.Output == "" || logCfg.Output == "stdout" {
		logCfg.Output = "stderr"
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
