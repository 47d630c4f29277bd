package cmd

import (
	"fmt"

	"github.com/nickromney-org/release-notifier/pkg/types"
	"github.com/spf13/cobra"
)

var (
	serverID string
	user     types.User
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register this installation with the update server",
	Example: `  release-notifier register --server-id 6f1c0d2e -c 4.2.0 \
    --username admin --email admin@example.com --organization "Example Health"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		id := resolveServerID()
		if id == "" {
			return fmt.Errorf("server id is required (use --server-id or server_id in the config file)")
		}
		if user.Username == "" {
			return fmt.Errorf("--username is required")
		}

		svc, err := newService()
		if err != nil {
			return err
		}

		if err := svc.Register(cmd.Context(), id, currentVersion, user); err != nil {
			return err
		}

		green.Fprintf(cmd.OutOrStdout(), "✅ Registered %s with %s\n", user.Username, svc.Endpoints().RegistrationURL)
		return nil
	},
}

func init() {
	addServerIDFlag(registerCmd)

	flags := registerCmd.Flags()
	flags.StringVar(&user.Username, "username", "", "user name (required)")
	flags.StringVar(&user.Email, "email", "", "email address")
	flags.StringVar(&user.FirstName, "first-name", "", "first name")
	flags.StringVar(&user.LastName, "last-name", "", "last name")
	flags.StringVar(&user.Organization, "organization", "", "organization")
	flags.StringVar(&user.Industry, "industry", "", "industry")
	flags.StringVar(&user.PhoneNumber, "phone", "", "phone number")
	flags.StringVar(&user.Description, "description", "", "free text description")

	rootCmd.AddCommand(registerCmd)
}

func addServerIDFlag(cmd *cobra.Command) {
	cmd.Flags().StringVar(&serverID, "server-id", "", "server identifier (defaults to server_id from the config)")
}

func resolveServerID() string {
	if serverID != "" {
		return serverID
	}
	return cfg.ServerID
}
