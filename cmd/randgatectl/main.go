package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/randgate/backend/internal/config"
	"github.com/randgate/backend/internal/repository"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "randgatectl",
		Short: "Operator tooling for the randgate bot",
		Long: `randgatectl manages the randgate entitlement database and admin tokens.
It reads the same .env, RANDGATE_CONFIG file and environment as the server.`,
		SilenceUsage: true,
	}
	root.AddCommand(newMigrateCmd(), newTokenCmd(), newStatusCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// openStore loads tooling config and opens the entitlement database.
func openStore(ctx context.Context) (*config.Config, *sql.DB, error) {
	cfg, err := config.LoadTooling()
	if err != nil {
		return nil, nil, err
	}
	db, err := repository.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("database error: %w", err)
	}
	return cfg, db, nil
}
