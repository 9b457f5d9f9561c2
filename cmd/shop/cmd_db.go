package main

import (
	"github.com/spf13/cobra"

	"github.com/farmshop/storefront/pkg/app"
)

// shop migrate
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run all pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.Migrate(cmd.OutOrStdout())
	},
}

// shop migrate:rollback
var migrateRollbackCmd = &cobra.Command{
	Use:   "migrate:rollback",
	Short: "Roll back the last batch of migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.Rollback(cmd.OutOrStdout())
	},
}

// shop migrate:status
var migrateStatusCmd = &cobra.Command{
	Use:   "migrate:status",
	Short: "Show the status of each migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.MigrateStatus(cmd.OutOrStdout())
	},
}

// shop seed
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the sample catalog and the seeded admin",
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.Seed(cmd.Context(), cmd.OutOrStdout())
	},
}
