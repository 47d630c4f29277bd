package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/nickromney-org/release-notifier/internal/browser"
	"github.com/nickromney-org/release-notifier/internal/notification"
	"github.com/nickromney-org/release-notifier/internal/version"
	"github.com/nickromney-org/release-notifier/pkg/types"
	"github.com/spf13/cobra"
)

var (
	jsonOutput  bool
	ciOutput    bool
	quiet       bool
	verbose     bool
	openBrowser bool

	// launchers is swapped out in tests
	launchers = browser.DefaultLaunchers
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "List releases newer than the running version",
	RunE:  runCheck,
}

func init() {
	addCheckFlags(checkCmd)
	rootCmd.AddCommand(checkCmd)
}

func addCheckFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().BoolVar(&ciOutput, "ci", false, "format output for CI/GitHub Actions")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "quiet output (suppress release table)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "include release notes")
	cmd.Flags().BoolVar(&openBrowser, "open", false, "open the releases page when updates are available")
}

// notificationView is a notification plus its archive state
type notificationView struct {
	types.Notification
	Archived bool `json:"archived"`
}

// checkResult is everything a check reports
type checkResult struct {
	CurrentVersion string             `json:"current_version"`
	ValidVersion   bool               `json:"valid_version"`
	FeedURL        string             `json:"feed_url"`
	Total          int                `json:"total"`
	Unseen         int                `json:"unseen"`
	Notifications  []notificationView `json:"notifications"`
	CheckedAt      time.Time          `json:"checked_at"`
}

func newCheckResult(current, feedURL string, notifications []types.Notification, archived map[int64]struct{}) checkResult {
	_, valid := version.Parse(current)

	views := make([]notificationView, 0, len(notifications))
	for _, n := range notifications {
		_, seen := archived[n.ID]
		views = append(views, notificationView{Notification: n, Archived: seen})
	}

	return checkResult{
		CurrentVersion: current,
		ValidVersion:   valid,
		FeedURL:        feedURL,
		Total:          len(notifications),
		Unseen:         notification.CountUnseen(notifications, archived),
		Notifications:  views,
		CheckedAt:      time.Now().UTC(),
	}
}

func runCheck(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	// Show version if requested
	if showVersion {
		printVersion(out)
		return nil
	}

	if currentVersion == "" {
		return fmt.Errorf("current version is required (use -c, e.g. -c 4.2.0)")
	}

	svc, err := newService()
	if err != nil {
		return err
	}

	notifications, err := svc.Notifications(cmd.Context(), currentVersion)
	if err != nil {
		return fmt.Errorf("failed to check for updates: %w", err)
	}

	archived := loadArchived(cmd.Context())
	result := newCheckResult(currentVersion, svc.Endpoints().FeedURL, notifications, archived)

	switch {
	case jsonOutput:
		if err := outputJSON(out, result); err != nil {
			return err
		}
	case ciOutput:
		outputCI(out, result)
	default:
		outputTerminal(out, result)
	}

	if openBrowser && result.Unseen > 0 {
		openReleasesPage()
	}

	return nil
}

// loadArchived reads archived ids without creating the database. Failures
// are logged and treated as an empty archive.
func loadArchived(ctx context.Context) map[int64]struct{} {
	if _, err := os.Stat(cfg.ArchivePath); errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	store, err := openArchive()
	if err != nil {
		log.WithError(err).Warn("failed to open archive, treating every notification as unseen")
		return nil
	}
	defer store.Close()

	ids, err := store.IDs(ctx)
	if err != nil {
		log.WithError(err).Warn("failed to read archive, treating every notification as unseen")
		return nil
	}
	return ids
}

func openReleasesPage() {
	page, ok := cfg.ReleasesPageURL()
	if !ok {
		log.Warn("feed is not a GitHub repository, nothing to open")
		return
	}
	if err := browser.Open(page, launchers()...); err != nil {
		log.WithError(err).WithField("url", page).Warn("failed to open browser")
	}
}

func outputJSON(w io.Writer, result checkResult) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func outputCI(w io.Writer, result checkResult) {
	// Always print the unseen count first (for script compatibility)
	fmt.Fprintln(w, result.Unseen)

	if !result.ValidVersion {
		fmt.Fprintf(w, "::warning title=Update check skipped::%s is not a semantic version\n", result.CurrentVersion)
		return
	}

	for _, n := range result.Notifications {
		if n.Archived {
			continue
		}
		fmt.Fprintf(w, "::notice title=Update available::%s released %s\n", n.Name, formatPublished(n.Date, time.Now()))
	}
}

func outputTerminal(w io.Writer, result checkResult) {
	printStatus(w, result)

	if !quiet {
		printReleaseTable(w, result)
	}
}

func printStatus(w io.Writer, result checkResult) {
	switch {
	case !result.ValidVersion:
		yellow.Fprintf(w, "⚠️  %q is not a semantic version (MAJOR.MINOR.PATCH), update check skipped\n", result.CurrentVersion)
	case result.Total == 0:
		green.Fprintf(w, "✅ Version %s is up to date\n", result.CurrentVersion)
	case result.Unseen == 0:
		green.Fprintf(w, "✅ Version %s: %s, all archived\n", result.CurrentVersion, pluralReleases(result.Total))
	default:
		yellow.Fprintf(w, "⬆️  Version %s: %s available (%d unseen)\n", result.CurrentVersion, pluralReleases(result.Total), result.Unseen)
	}
}

func printReleaseTable(w io.Writer, result checkResult) {
	if len(result.Notifications) == 0 {
		return
	}

	now := time.Now()

	fmt.Fprintln(w)
	cyan.Fprintln(w, "📋 Available Updates")
	cyan.Fprintln(w, strings.Repeat("─", 64))
	fmt.Fprintf(w, "%-12s %-34s %s\n", "ID", "Release", "Published")

	for _, n := range result.Notifications {
		line := fmt.Sprintf("%-12d %-34s %s", n.ID, n.Name, formatPublished(n.Date, now))
		if n.Archived {
			grey.Fprintln(w, line+"  (archived)")
		} else {
			bold.Fprintln(w, line)
		}

		if verbose && n.Content != "" {
			for _, contentLine := range strings.Split(strings.TrimSpace(n.Content), "\n") {
				fmt.Fprintf(w, "    %s\n", contentLine)
			}
		}
	}

	grey.Fprintf(w, "\nChecked at: %s\n", result.CheckedAt.Format("2 Jan 2006 15:04:05 MST"))
}

func pluralReleases(n int) string {
	if n == 1 {
		return "1 new release"
	}
	return fmt.Sprintf("%d new releases", n)
}
