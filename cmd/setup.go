package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	_ "github.com/kozaktomas/face-attendance/internal/database/mariadb"
	_ "github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/logging"
	"github.com/kozaktomas/face-attendance/internal/population"
)

// newLogger builds the logger from LOG_LEVEL/LOG_FORMAT and the persistent flags.
func newLogger(cmd *cobra.Command, cfg *config.Config) (*zap.Logger, error) {
	level := cfg.Log.Level
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		level = v
	}
	format := cfg.Log.Format
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		format = v
	}
	return logging.New(level, format)
}

// openBackend connects to DATABASE_URL with the registered driver.
func openBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*database.Backend, error) {
	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}
	backend, err := database.Open(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Database.Driver, err)
	}
	logger.Info("database connected", zap.String("driver", cfg.Database.Driver))
	return backend, nil
}

// persisterFor returns the population persister selected by POPULATION_BACKEND.
// backend may be nil for the file persister.
func persisterFor(cfg *config.Config, kind string, backend *database.Backend) (population.Persister, error) {
	switch kind {
	case "file":
		return population.NewFilePersister(cfg.Population.Path), nil
	case "postgres":
		if backend == nil || backend.Population == nil {
			return nil, fmt.Errorf("population backend %q needs a PostgreSQL database", kind)
		}
		return population.NewDatabasePersister(backend.Population), nil
	default:
		return nil, fmt.Errorf("unknown population backend %q", kind)
	}
}

// openPopulation creates and loads the population store.
func openPopulation(
	ctx context.Context, cfg *config.Config, backend *database.Backend, logger *zap.Logger,
) (*population.Store, error) {
	persister, err := persisterFor(cfg, cfg.Population.Backend, backend)
	if err != nil {
		return nil, err
	}
	store := population.NewStore(persister, logger.Named("population"),
		population.WithANNIndex(cfg.Recognition.ANNIndex))
	if err := store.Load(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// needsDatabase reports whether the command cannot work without DATABASE_URL.
func needsDatabase(cfg *config.Config) bool {
	return cfg.Population.Backend == "postgres"
}

// openOptionalBackend opens the database when DATABASE_URL is set. Without it the
// user directory is skipped and only the population file is touched.
func openOptionalBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*database.Backend, error) {
	if cfg.Database.URL == "" && !needsDatabase(cfg) {
		logger.Warn("DATABASE_URL not set, user directory will not be updated")
		return nil, nil
	}
	return openBackend(ctx, cfg, logger)
}

func closeBackend(backend *database.Backend, logger *zap.Logger) {
	if backend == nil || backend.Close == nil {
		return
	}
	if err := backend.Close(); err != nil {
		logger.Warn("failed to close database", zap.Error(err))
	}
}

// outputJSON writes data to stdout as indented JSON.
func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}
