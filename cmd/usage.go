package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var (
	usageData     string
	usageDataFile string
	usageServer   bool
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Send anonymous usage statistics",
	Example: `  release-notifier usage --server-id 6f1c0d2e -c 4.2.0 --server --data '{"channels":12}'

  # Read the payload from stdin
  collect-stats | release-notifier usage --server-id 6f1c0d2e -c 4.2.0 --data-file -`,
	RunE: func(cmd *cobra.Command, args []string) error {
		id := resolveServerID()
		if id == "" {
			return fmt.Errorf("server id is required (use --server-id or server_id in the config file)")
		}

		data, err := readUsageData(cmd.InOrStdin(), cmd.Flags().Changed("data"))
		if err != nil {
			return err
		}
		if data == nil {
			return fmt.Errorf("no usage data given (use --data or --data-file)")
		}

		svc, err := newService()
		if err != nil {
			return err
		}

		if !svc.ReportUsage(cmd.Context(), id, currentVersion, usageServer, data) {
			return fmt.Errorf("usage statistics were not accepted by %s", svc.Endpoints().UsageURL)
		}

		green.Fprintln(cmd.OutOrStdout(), "✅ Usage statistics sent")
		return nil
	},
}

func init() {
	addServerIDFlag(usageCmd)

	usageCmd.Flags().StringVar(&usageData, "data", "", "usage statistics payload")
	usageCmd.Flags().StringVar(&usageDataFile, "data-file", "", "read the payload from a file (- for stdin)")
	usageCmd.Flags().BoolVar(&usageServer, "server", false, "statistics were collected server-side")
	usageCmd.MarkFlagsMutuallyExclusive("data", "data-file")

	rootCmd.AddCommand(usageCmd)
}

// readUsageData returns the payload, or nil when none was given
func readUsageData(stdin io.Reader, dataSet bool) (*string, error) {
	switch usageDataFile {
	case "":
		if !dataSet {
			return nil, nil
		}
		return &usageData, nil
	case "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read usage data from stdin: %w", err)
		}
		payload := string(data)
		return &payload, nil
	default:
		data, err := os.ReadFile(usageDataFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read usage data: %w", err)
		}
		payload := string(data)
		return &payload, nil
	}
}
