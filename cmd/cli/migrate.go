package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/axellelanca/shortlink/cmd"
	"github.com/axellelanca/shortlink/internal/database"
	"github.com/axellelanca/shortlink/internal/logger"
)

// MigrateCmd represents the 'migrate' command
// This command handles database schema creation and updates
var MigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Executes database migrations to create or update tables.",
	Long: `This command connects to the configured database (SQLite, PostgreSQL or
libSQL) and creates or updates the 'links' table and its indexes.`,
	RunE: func(c *cobra.Command, args []string) error {
		cfg := cmd.Cfg
		db, err := database.Open(c.Context(), cfg.Database, logger.NewGormLogger(cfg.Log.GormLevel, cfg.Log.SlowQueryThreshold))
		if err != nil {
			return err
		}
		defer database.Close(db)

		if err := database.Migrate(db); err != nil {
			return err
		}

		fmt.Fprintln(c.OutOrStdout(), "Database migrations executed successfully.")
		return nil
	},
}

func init() {
	cmd.RootCmd.AddCommand(MigrateCmd)
}
