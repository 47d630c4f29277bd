package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of unseen releases (0 when the check fails)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if currentVersion == "" {
			return fmt.Errorf("current version is required (use -c, e.g. -c 4.2.0)")
		}

		svc, err := newService()
		if err != nil {
			return err
		}

		archived := loadArchived(cmd.Context())
		fmt.Fprintln(cmd.OutOrStdout(), svc.NotificationCount(cmd.Context(), currentVersion, archived))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(countCmd)
}
