package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/youssefsiam38/ctxoffload/internal/config"
	"github.com/youssefsiam38/ctxoffload/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the PostgreSQL object table",
	Long: `Create the table used by the postgres blob backend if it does not exist.

Examples:
  CTXOFFLOAD_DATABASE_URL=postgres://localhost/agent ctxoffload migrate
  ctxoffload migrate --backend postgres --config prod.yaml`,
	Args: cobra.NoArgs,
	RunE: migrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func migrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Storage.Backend != config.BackendPostgres {
		return fmt.Errorf("migrate requires the postgres backend, got %s", cfg.Storage.Backend)
	}

	d, closer, err := openDriver(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer closer()

	backend := storage.NewSQLBackend(d, cfg.Database.Table)
	if err := backend.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}

	table := cfg.Database.Table
	if table == "" {
		table = storage.DefaultObjectTable
	}
	fmt.Printf("Table %s is ready.\n", table)
	return nil
}
