package main

import (
	"github.com/spf13/cobra"

	auth "github.com/safeedu/go-auth"
	"github.com/safeedu/go-auth/config"
	"github.com/safeedu/go-auth/repository"
)

// Global flags available to all subcommands.
var (
	configFile string
	logLevel   string
	logFormat  string
)

// NewRootCmd creates the root command for the auth service CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "safeedu-auth",
		Short: "Authentication service for students, citizens and administrators",
		Long: `safeedu-auth issues RS256 access and refresh tokens for student,
citizen and administrator accounts and gates requests by role.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSeedAdminCmd())

	return cmd
}

// loadConfig resolves the configuration for cmd and the logger it should use
func loadConfig(cmd *cobra.Command) (*config.Provider, auth.Logger, error) {
	logger := NewSlogLogger(cmd.ErrOrStderr(), logLevel, logFormat)

	provider, err := config.New(
		config.WithFile(configFile),
		config.WithFlags(cmd.Flags()),
		config.WithLogger(logger),
	)
	if err != nil {
		return nil, nil, err
	}
	return provider, logger, nil
}

// openRepository connects to the configured database
func openRepository(cmd *cobra.Command, settings config.Settings) (auth.RepositoryManager, func() error, error) {
	db, err := repository.Open(settings.DatabaseDSN)
	if err != nil {
		return nil, nil, err
	}

	if err := db.PingContext(cmd.Context()); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	return auth.NewRepositoryManager(db), db.Close, nil
}
