package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kozaktomas/face-attendance/internal/config"
)

var populationCmd = &cobra.Command{
	Use:   "population",
	Short: "Population storage commands",
}

var populationMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy the population between the file and PostgreSQL",
	Long: `Copy every registered embedding from one population backend to the other.
The destination is replaced. Set POPULATION_BACKEND afterwards to use it.

Examples:
  # Move the gob file at POPULATION_PATH into PostgreSQL
  face-attendance population migrate --to postgres

  # Export PostgreSQL embeddings back to the file
  face-attendance population migrate --to file`,
	Args: cobra.NoArgs,
	RunE: runPopulationMigrate,
}

func init() {
	rootCmd.AddCommand(populationCmd)
	populationCmd.AddCommand(populationMigrateCmd)

	populationMigrateCmd.Flags().String("to", "postgres", "Destination backend: postgres or file")
}

func runPopulationMigrate(cmd *cobra.Command, args []string) error {
	to := mustGetString(cmd, "to")
	var from string
	switch to {
	case "postgres":
		from = "file"
	case "file":
		from = "postgres"
	default:
		return fmt.Errorf("--to must be postgres or file, got %q", to)
	}

	cfg := config.Load()
	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	backend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeBackend(backend, logger)

	src, err := persisterFor(cfg, from, backend)
	if err != nil {
		return err
	}
	dst, err := persisterFor(cfg, to, backend)
	if err != nil {
		return err
	}

	data, err := src.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to read %s population: %w", from, err)
	}
	logger.Info("population read", zap.String("from", from), zap.Int("embeddings", len(data.Identities)))

	if err := dst.Save(ctx, data); err != nil {
		return fmt.Errorf("failed to write %s population: %w", to, err)
	}

	fmt.Printf("Copied %d embedding(s) from %s to %s\n", len(data.Identities), from, to)
	return nil
}
