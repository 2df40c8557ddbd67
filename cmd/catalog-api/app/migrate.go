package app

import (
	"bufio"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matrixhub/catalog-server/database"
)

const (
	flagYes      = "yes"
	flagNumSteps = "num-steps"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tool",
		Long:  `Database migration tool for managing schema versions. Use with 'up' or 'down' subcommands.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Usage()
		},
	}

	cmd.PersistentFlags().BoolP(flagYes, "y", false, "Answer yes to all questions")
	cmd.PersistentFlags().UintP(flagNumSteps, "n", 0, "Number of steps to migrate down (0 = all)")
	addConfigFlags(cmd, true)

	cmd.AddCommand(newMigrateUpCmd())
	cmd.AddCommand(newMigrateDownCmd())
	return cmd
}

func newMigrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Example: `  # Apply pending migrations without prompting
  catalog-api migrate up --config config.yaml --yes`,
		RunE: runMigrateUp,
	}
}

func newMigrateDownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Revert migrations",
		Long: `Revert database migrations.

WARNING: reverting migrations drops catalog entities and stored credentials.`,
		Example: `  # Migrate down by 1 step
  catalog-api migrate down --config config.yaml --num-steps 1 --yes

  # Migrate down all the way (WARNING: destroys all data)
  catalog-api migrate down --config config.yaml --yes`,
		RunE: runMigrateDown,
	}
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	cfg, connString, err := loadDatabaseConfig(cmd)
	if err != nil {
		return err
	}

	prompt := fmt.Sprintf("About to apply migrations to database %s@%s:%d/%s. Continue?",
		cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)
	ok, err := confirmAction(cmd, prompt)
	if err != nil {
		return err
	}
	if !ok {
		slog.Info("Migration cancelled by user")
		return nil
	}

	slog.Info("Applying migrations")
	if err := database.MigrateUp(connString); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	reportVersion(connString, false)
	return nil
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	_, connString, err := loadDatabaseConfig(cmd)
	if err != nil {
		return err
	}

	numSteps, err := cmd.Flags().GetUint(flagNumSteps)
	if err != nil {
		return fmt.Errorf("failed to get %s flag: %w", flagNumSteps, err)
	}

	prompt := fmt.Sprintf("WARNING: This will migrate down %d step(s) and may result in data loss. Continue?", numSteps)
	if numSteps == 0 {
		prompt = "WARNING: This will migrate down ALL steps and may result in complete data loss. Continue?"
	}
	ok, err := confirmAction(cmd, prompt)
	if err != nil {
		return err
	}
	if !ok {
		slog.Info("Migration cancelled by user")
		return fmt.Errorf("migration cancelled by user")
	}

	if numSteps == 0 {
		slog.Warn("Migrating down all steps, this will remove the whole schema")
	} else {
		slog.Info("Migrating down", "steps", numSteps)
	}
	if err := database.MigrateDown(connString, numSteps); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	reportVersion(connString, numSteps == 0)
	return nil
}

// confirmAction asks prompt on the command output unless --yes was given.
// Only "y" and "yes" confirm.
func confirmAction(cmd *cobra.Command, prompt string) (bool, error) {
	yes, err := cmd.Flags().GetBool(flagYes)
	if err != nil {
		return false, fmt.Errorf("failed to get %s flag: %w", flagYes, err)
	}
	if yes {
		return true, nil
	}

	if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s (yes/no): ", prompt); err != nil {
		return false, err
	}
	scanner := bufio.NewScanner(cmd.InOrStdin())
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return false, fmt.Errorf("failed to read user input: %w", err)
		}
		return false, nil
	}

	switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func reportVersion(connString string, removedAll bool) {
	version, dirty, err := database.GetVersion(connString)
	switch {
	case err != nil:
		slog.Warn("Failed to get migration version", "error", err)
	case version == 0 && removedAll:
		slog.Info("Database schema has been completely removed")
	case dirty:
		slog.Warn("Current migration version is dirty, manual intervention may be required", "version", version)
	default:
		slog.Info("Migration completed successfully", "version", version)
	}
}
