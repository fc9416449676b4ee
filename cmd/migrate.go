package cmd

import (
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
)

var (
	migrateCmd = &cobra.Command{
		RunE:  runMigration,
		Use:   "migrate",
		Short: "to run db migration files under db/migrations directory",
	}
	migrateRollback bool
	migrateStatus   bool
	migrateDir      string
)

func init() {
	migrateCmd.Flags().BoolVarP(&migrateRollback, "rollback", "r", false, "to rollback the latest version of sql migration")
	migrateCmd.Flags().BoolVar(&migrateStatus, "status", false, "print applied and pending migrations")
	migrateCmd.MarkFlagsMutuallyExclusive("rollback", "status")
	migrateCmd.PersistentFlags().StringVarP(&migrateDir, "dir", "d", "db/migrations", "sql migrations directory")
}

func migrationCommand() string {
	switch {
	case migrateRollback:
		return "down"
	case migrateStatus:
		return "status"
	}
	return "up"
}

func runMigration(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	db, err := goose.OpenDBWithDriver("pgx", cfg.Database.Source)
	if err != nil {
		return fmt.Errorf("goose: open db: %w", err)
	}
	defer db.Close()
	goose.SetTableName("schema_migrations")

	command := migrationCommand()
	if err := goose.RunContext(cmd.Context(), command, db, migrateDir); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}
