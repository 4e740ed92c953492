// Package bootstrap wires the service together: config, logger, database,
// events, pipeline collaborators, scheduler, and the HTTP server, in phases.
package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/amar74/n-be-sub001/internal/config"
	"github.com/amar74/n-be-sub001/internal/database"
	"github.com/amar74/n-be-sub001/internal/logger"
	"github.com/amar74/n-be-sub001/internal/metrics"
)

const (
	serviceName = "opportunity-ingestion"
	version     = "dev"
)

// Start runs the service until shutdown. Every phase failure aborts startup
// with a wrapped error; after the server is up, failures are handled inside
// the components.
func Start() error {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := CreateLogger(cfg)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	db, err := database.New(cfg, log)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("database close failed", logger.Error(closeErr))
		}
	}()

	publisher := SetupEventPublisher(cfg, log)
	m := metrics.New(nil)

	pipeline := BuildPipeline(cfg, db.DB(), publisher, m, log)

	if cfg.Scheduler.Enabled {
		pipeline.Scheduler.Start(context.Background())
		defer pipeline.Scheduler.Stop()
	} else {
		log.Warn("scheduler disabled; agents run only on manual trigger")
	}

	server := SetupHTTPServer(cfg, pipeline, log)

	log.Info("service starting",
		logger.String("service", serviceName),
		logger.Int("port", cfg.Server.Port),
	)
	if err := server.Run(context.Background()); err != nil {
		return fmt.Errorf("http server: %w", err)
	}

	log.Info("service exited")
	return nil
}

// CreateLogger builds the production logger with service identity fields.
func CreateLogger(cfg *config.Config) (logger.Logger, error) {
	logCfg := logger.Config{Level: "info"}
	if cfg.Debug {
		logCfg.Level = "debug"
		logCfg.Development = true
	}

	log, err := logger.New(logCfg)
	if err != nil {
		return nil, err
	}
	return log.With(
		logger.String("service", serviceName),
		logger.String("version", version),
	), nil
}
