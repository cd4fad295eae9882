package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List registered users and their face data",
	Long: `List the user directory with the number of embeddings each user has.
Identities that have face data but no directory row are listed as well.

Examples:
  face-attendance users
  face-attendance users --json`,
	Args: cobra.NoArgs,
	RunE: runUsers,
}

func init() {
	rootCmd.AddCommand(usersCmd)

	usersCmd.Flags().Bool("json", false, "Output as JSON")
}

// UserStatus is one line of the users listing
type UserStatus struct {
	Name        string `json:"name"`
	Email       string `json:"email,omitempty"`
	Department  string `json:"department,omitempty"`
	Embeddings  int    `json:"embeddings"`
	InDirectory bool   `json:"in_directory"`
}

// mergeUsers joins directory rows with population counts, sorted by name.
func mergeUsers(users []database.User, counts map[string]int) []UserStatus {
	out := make([]UserStatus, 0, len(users)+len(counts))
	seen := make(map[string]bool, len(users))
	for _, u := range users {
		seen[u.Name] = true
		out = append(out, UserStatus{
			Name:        u.Name,
			Email:       u.Email,
			Department:  u.Department,
			Embeddings:  counts[u.Name],
			InDirectory: true,
		})
	}
	for id, n := range counts {
		if !seen[id] {
			out = append(out, UserStatus{Name: id, Embeddings: n})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func runUsers(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

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

	var users []database.User
	if backend != nil {
		users, err = backend.Users.ListUsers(ctx)
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}
	}

	statuses := mergeUsers(users, pop.Counts())
	if jsonOutput {
		return outputJSON(statuses)
	}

	if len(statuses) == 0 {
		fmt.Println("No users registered.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tEMAIL\tDEPARTMENT\tEMBEDDINGS\tSTATUS")
	for _, s := range statuses {
		status := "ok"
		switch {
		case s.Embeddings == 0:
			status = "no face data"
		case !s.InDirectory:
			status = "not in directory"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", s.Name, s.Email, s.Department, s.Embeddings, status)
	}
	return w.Flush()
}
