package cmd

import (
	"fmt"
	"os"

	"docindex/internal/application/common/slogger"

	"github.com/spf13/cobra"
)

// newMigrateCmd creates and returns the migrate command.
func newMigrateCmd() *cobra.Command {
	var schemaFile string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Long: `Apply the SQL schema to the configured database. This creates the
docindex schema with the files, file_embeddings, companies and
project_stats tables if they do not already exist.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, schemaFile)
		},
	}

	cmd.Flags().StringVar(&schemaFile, "schema-file", "migrations/schema.sql", "Path to the schema SQL file")
	return cmd
}

func init() {
	rootCmd.AddCommand(newMigrateCmd())
}

func runMigrate(cmd *cobra.Command, schemaFile string) error {
	cfg := GetConfig()
	slogger.Configure(cfg.Log.Level, cfg.Log.Format)
	ctx := cmd.Context()

	schema, err := os.ReadFile(schemaFile)
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}

	pool, err := setupDatabaseConnection(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup database connection: %w", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, string(schema)); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	slogger.Info(ctx, "Schema applied", slogger.Fields{"file": schemaFile})
	return nil
}
