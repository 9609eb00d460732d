package app

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"github.com/unbxd/feedsync/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Database migration tool",
	Long:  `Manage the schema of the run history database. Use with 'up' or 'down' subcommands.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Usage()
	},
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending database migrations",
	Long: `Apply pending migrations to the database named in the configuration file.
Without --num-steps every pending migration is applied.`,
	Args: cobra.NoArgs,
	RunE: runMigrateUp,
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Revert database migrations",
	Long: `Revert migrations of the run history database.
WARNING: This operation can result in data loss. Use with caution.

Examples:
  # Revert the last migration
  feedsync migrate down --config config.yaml --num-steps 1 --yes

  # Revert every migration (WARNING: destroys the run history)
  feedsync migrate down --config config.yaml --yes`,
	Args: cobra.NoArgs,
	RunE: runMigrateDown,
}

func init() {
	migrateCmd.PersistentFlags().BoolP("yes", "y", false, "Answer yes to all questions")
	migrateCmd.PersistentFlags().UintP("num-steps", "n", 0, "Number of steps to migrate (0 = all)")

	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
}

type migrationFlags struct {
	yes      bool
	numSteps int
}

func getMigrationFlags(cmd *cobra.Command) (*migrationFlags, error) {
	yes, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return nil, fmt.Errorf("failed to get yes flag: %w", err)
	}
	numSteps, err := cmd.Flags().GetUint("num-steps")
	if err != nil {
		return nil, fmt.Errorf("failed to get num-steps flag: %w", err)
	}
	if numSteps > math.MaxInt32 {
		return nil, fmt.Errorf("number of steps exceeds maximum allowed value")
	}
	return &migrationFlags{yes: yes, numSteps: int(numSteps)}, nil // #nosec G115 -- bounded above
}

// openMigrator loads the configuration and opens a migrator on its database
func openMigrator() (database.Migrator, string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, "", err
	}
	if cfg.Database == nil {
		return nil, "", fmt.Errorf("database configuration is required")
	}

	connString, err := cfg.Database.GetConnectionString()
	if err != nil {
		return nil, "", fmt.Errorf("failed to build connection string: %w", err)
	}

	m, err := database.NewFromConnectionString(connString)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create migrator: %w", err)
	}

	target := fmt.Sprintf("%s@%s:%d/%s", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)
	return m, target, nil
}

func closeMigrator(m database.Migrator) {
	srcErr, dbErr := m.Close()
	if err := errors.Join(srcErr, dbErr); err != nil {
		slog.Error("Error closing migrator", "error", err)
	}
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	flags, err := getMigrationFlags(cmd)
	if err != nil {
		return err
	}

	m, target, err := openMigrator()
	if err != nil {
		return err
	}
	defer closeMigrator(m)

	if !flags.yes {
		prompt := fmt.Sprintf("About to apply migrations to database %s. Continue?", target)
		if !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), prompt) {
			slog.Info("Migration cancelled by user")
			return nil
		}
	}

	slog.Info("Applying database migrations", "database", target)
	if flags.numSteps == 0 {
		err = m.Up()
	} else {
		err = m.Steps(flags.numSteps)
	}
	if err := reportMigration(err, "No migrations to apply - database is up to date"); err != nil {
		return err
	}

	displayMigrationVersion(m)
	return nil
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	flags, err := getMigrationFlags(cmd)
	if err != nil {
		return err
	}

	m, target, err := openMigrator()
	if err != nil {
		return err
	}
	defer closeMigrator(m)

	if !flags.yes {
		var prompt string
		if flags.numSteps == 0 {
			prompt = fmt.Sprintf("WARNING: This will revert ALL migrations of %s and delete the run history. Continue?", target)
		} else {
			prompt = fmt.Sprintf("WARNING: This will revert %d migration(s) of %s and may result in data loss. Continue?",
				flags.numSteps, target)
		}
		if !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), prompt) {
			slog.Info("Migration cancelled")
			return fmt.Errorf("migration cancelled by user")
		}
	}

	if flags.numSteps == 0 {
		slog.Warn("Migrating down all steps - this will remove all schema!")
		err = m.Down()
	} else {
		slog.Info("Migrating down", "steps", flags.numSteps)
		err = m.Steps(-flags.numSteps)
	}
	if err := reportMigration(err, "No migrations to revert - database is already at the oldest version"); err != nil {
		return err
	}

	displayMigrationVersion(m)
	return nil
}

func reportMigration(err error, msg string) error {
	if err == nil {
		slog.Info("Migration completed successfully")
		return nil
	}
	if errors.Is(err, migrate.ErrNoChange) {
		slog.Info(msg)
		return nil
	}
	return fmt.Errorf("migration failed: %w", err)
}

func displayMigrationVersion(m database.Migrator) {
	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		slog.Info("Database has no migrations applied")
	case err != nil:
		slog.Warn("Unable to get migration version", "error", err)
	case dirty:
		slog.Warn("Database is in a dirty state", "version", version)
	default:
		slog.Info("Current migration version", "version", version)
	}
}

// confirm asks a yes/no question and reports whether the answer was yes
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s (yes/no): ", prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "yes" || answer == "y"
}
