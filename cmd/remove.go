package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

var removeCmd = &cobra.Command{
	Use:   "remove NAME",
	Short: "Remove a person's face data and directory entry",
	Long: `Delete every embedding registered under NAME and, when DATABASE_URL is set,
the user directory row. Recorded attendance is kept.

Examples:
  face-attendance remove "Alice Novak"
  face-attendance remove bob --keep-user`,
	Args: cobra.ExactArgs(1),
	RunE: runRemove,
}

func init() {
	rootCmd.AddCommand(removeCmd)

	removeCmd.Flags().Bool("keep-user", false, "Only remove face data, keep the directory row")
}

func runRemove(cmd *cobra.Command, args []string) error {
	keepUser := mustGetBool(cmd, "keep-user")
	name := facematch.NormalizePersonID(args[0])

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	backend, err := openOptionalBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeBackend(backend, logger)

	pop, err := openPopulation(ctx, cfg, backend, logger)
	if err != nil {
		return err
	}

	removed, err := pop.Remove(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to remove face data: %w", err)
	}

	userDeleted := false
	if backend != nil && !keepUser {
		userDeleted, err = backend.Users.DeleteUser(ctx, name)
		if err != nil {
			return fmt.Errorf("face data removed but user directory update failed: %w", err)
		}
	}

	if removed == 0 && !userDeleted {
		return fmt.Errorf("nothing registered under %q", name)
	}

	fmt.Printf("Removed %d embedding(s) for %s\n", removed, name)
	if userDeleted {
		fmt.Println("User directory entry deleted")
	}
	return nil
}
