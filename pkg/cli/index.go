package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newReindexCommand(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the search representation of every document",
		Long: `Pages through all documents and rebuilds each representation with the
configured tokenizer. Use after switching tokenizer variants or dictionaries.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := env.app(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.Propagator.ReindexAll(cmd.Context())
			if err != nil {
				return fmt.Errorf("reindex failed: %w", err)
			}

			cmd.Printf("Reindexed %d/%d documents in %s\n", result.Rebuilt, result.Total, result.Duration.Round(time.Millisecond))
			if result.Failed > 0 {
				return fmt.Errorf("%d documents failed to rebuild and were marked stale", result.Failed)
			}
			return nil
		},
	}
}

func newRepairCommand(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "repair",
		Short: "Retry stale representations recorded by the tracker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := env.app(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.Repairer.Repair(cmd.Context())
			if err != nil {
				return fmt.Errorf("repair failed: %w", err)
			}

			cmd.Printf("Stale documents:  %d\n", result.Documents)
			cmd.Printf("Stale categories: %d\n", result.Categories)
			cmd.Printf("Repaired:         %d\n", result.Repaired)
			cmd.Printf("Remaining:        %d\n", result.Remaining)
			return nil
		},
	}
}

func newMigrateCommand(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the PostgreSQL schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := env.app(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.Postgres == nil {
				cmd.Println("Memory storage has no schema; nothing to migrate")
				return nil
			}
			if err := a.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			cmd.Println("Schema is up to date")
			return nil
		},
	}
}
