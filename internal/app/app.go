// Package app wires configuration into the storage, scoring, event and
// service components shared by the server and the operator CLI.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/moca-trajectory-engine/internal/database"
	"github.com/moca-trajectory-engine/internal/domain"
	"github.com/moca-trajectory-engine/internal/events"
	"github.com/moca-trajectory-engine/internal/repository"
	"github.com/moca-trajectory-engine/internal/service"
	"github.com/moca-trajectory-engine/pkg/scorer"
)

// App holds the assembled components. Close releases them in reverse order.
type App struct {
	Config    *domain.Config
	Logger    *logrus.Logger
	Registry  *prometheus.Registry
	Repo      domain.PatientRepository
	Patients  *service.PatientService
	Publisher domain.EventPublisher

	health  func(ctx context.Context) error
	closers []func() error
}

// New builds every component described by cfg.
func New(ctx context.Context, cfg *domain.Config, logger *logrus.Logger) (*App, error) {
	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if err := a.openStorage(ctx); err != nil {
		a.Close()
		return nil, err
	}

	external := a.buildScorer()

	publisher, err := events.NewPublisher(cfg.Events, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create event publisher: %w", err)
	}
	a.Publisher = publisher
	a.closers = append(a.closers, publisher.Close)

	aggregator := service.NewMetricsAggregator(cfg.Scorer.Mode, external, logger)
	a.Patients = service.NewPatientService(a.Repo, aggregator, logger, service.PatientServiceConfig{
		Publisher:         publisher,
		Metrics:           service.NewMetrics(a.Registry),
		RecomputeParallel: cfg.Scorer.RecomputeParallel,
	})

	logger.WithFields(logrus.Fields{
		"storage":      cfg.Storage.Driver,
		"scoring_mode": cfg.Scorer.Mode,
		"cache":        cfg.Cache.Enabled,
	}).Info("Components initialized")

	return a, nil
}

func (a *App) openStorage(ctx context.Context) error {
	cfg := a.Config
	switch cfg.Storage.Driver {
	case "postgres":
		if cfg.Database.MigrationsPath != "" {
			if err := Migrate(cfg.Database, a.Logger, MigrateUp); err != nil {
				return err
			}
		}
		db, err := database.NewConnection(ctx, cfg.Database, a.Logger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		store := repository.NewPostgresStore(db.Pool, a.Logger)
		a.Repo = store
		a.health = db.Health
		a.closers = append(a.closers, store.Close)
	case "sqlite", "":
		store, err := repository.NewSQLiteStore(cfg.Storage.SQLitePath, a.Logger)
		if err != nil {
			return fmt.Errorf("failed to open sqlite store: %w", err)
		}
		a.Repo = store
		a.health = store.Ping
		a.closers = append(a.closers, store.Close)
	default:
		return fmt.Errorf("unsupported storage driver: %s", cfg.Storage.Driver)
	}
	return nil
}

// buildScorer returns nil in local mode.
func (a *App) buildScorer() domain.Scorer {
	cfg := a.Config
	if cfg.Scorer.Mode != domain.ScoringModeExternal {
		return nil
	}

	metrics := scorer.NewMetrics(a.Registry)
	opts := scorer.BridgeOptions{Metrics: metrics, Logger: a.Logger}

	if cfg.Cache.Enabled {
		var redisCache *scorer.RedisCache
		if cfg.Cache.RedisURL != "" {
			rc, err := scorer.NewRedisCache(cfg.Cache, a.Logger)
			if err != nil {
				a.Logger.WithError(err).Warn("Redis prediction cache unavailable, using memory only")
			} else {
				redisCache = rc
				a.closers = append(a.closers, rc.Close)
			}
		}
		opts.Cache = scorer.NewTieredCache(scorer.NewMemoryCache(cfg.Cache.MaxItems, cfg.Cache.TTL), redisCache, metrics)
	}

	runner := scorer.NewProcessRunner(scorer.RunnerConfig{
		Command: cfg.Scorer.Command,
		Args:    cfg.Scorer.Args,
		WorkDir: cfg.Scorer.WorkDir,
		Timeout: cfg.Scorer.Timeout,
	})
	return scorer.NewBridge(cfg.Scorer, runner, opts)
}

// HealthCheck probes the patient store.
func (a *App) HealthCheck(ctx context.Context) error {
	if a.health == nil {
		return errors.New("storage not initialized")
	}
	return a.health(ctx)
}

// Close releases components in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// MigrateDirection selects a schema migration.
type MigrateDirection string

const (
	MigrateUp   MigrateDirection = "up"
	MigrateDown MigrateDirection = "down"
)

// Migrate applies every pending migration in the given direction.
func Migrate(cfg domain.DatabaseConfig, logger *logrus.Logger, direction MigrateDirection) error {
	runner, err := database.NewMigrationRunner(database.URL(cfg), cfg.MigrationsPath, logger)
	if err != nil {
		return fmt.Errorf("failed to create migration runner: %w", err)
	}
	defer runner.Close()

	switch direction {
	case MigrateUp:
		err = runner.Up()
	case MigrateDown:
		err = runner.Down()
	default:
		return fmt.Errorf("unknown migration direction: %s", direction)
	}
	if err != nil {
		return fmt.Errorf("migration %s failed: %w", direction, err)
	}
	return nil
}

// MigrationVersion reports the applied schema version.
func MigrationVersion(cfg domain.DatabaseConfig, logger *logrus.Logger) (uint, bool, error) {
	runner, err := database.NewMigrationRunner(database.URL(cfg), cfg.MigrationsPath, logger)
	if err != nil {
		return 0, false, fmt.Errorf("failed to create migration runner: %w", err)
	}
	defer runner.Close()
	return runner.Version()
}
