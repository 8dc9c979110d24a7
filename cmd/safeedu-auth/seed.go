package main

import (
	"github.com/spf13/cobra"

	auth "github.com/safeedu/go-auth"
)

// NewSeedAdminCmd creates the seed-admin subcommand.
func NewSeedAdminCmd() *cobra.Command {
	var msg auth.SeedAdminMessage

	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Register an administrator allowed to use Google sign-in",
		Long: `Register an administrator by email. Running the command again with
the same email leaves the existing administrator untouched.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeedAdmin(cmd, msg)
		},
	}

	cmd.Flags().StringVar(&msg.Email, "email", "", "administrator email")
	cmd.Flags().StringVar(&msg.FirstName, "first-name", "", "administrator first name")
	cmd.Flags().StringVar(&msg.LastName, "last-name", "", "administrator last name")
	cmd.Flags().StringVar(&msg.PhoneNumber, "phone", "", "administrator phone number")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func runSeedAdmin(cmd *cobra.Command, msg auth.SeedAdminMessage) error {
	provider, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	repo, closeDB, err := openRepository(cmd, provider.Settings())
	if err != nil {
		return err
	}
	defer closeDB()

	admin, err := auth.NewSeedAdminHandler(repo).Execute(cmd.Context(), msg)
	if err != nil {
		logger.Error("seed admin failed", "email", msg.Email, "error", err)
		return err
	}

	cmd.Printf("admin %s registered with id %s\n", admin.Email, admin.ID)
	return nil
}
