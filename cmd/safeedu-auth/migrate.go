package main

import (
	"github.com/spf13/cobra"

	"github.com/safeedu/go-auth/repository"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the account tables",
		Long:  `Create the student, citizen, admin and phone number tables when they do not exist.`,
		RunE:  runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	provider, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	settings := provider.Settings()

	db, err := repository.Open(settings.DatabaseDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	logger.Info("running migrations")
	if err := repository.CreateSchema(cmd.Context(), db); err != nil {
		return err
	}

	cmd.Println("Migrations completed successfully")
	return nil
}
