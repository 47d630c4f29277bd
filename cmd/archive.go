package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/nickromney-org/release-notifier/internal/archive"
	"github.com/spf13/cobra"
)

var (
	archiveList   bool
	archiveRemove bool
	archiveAll    bool
)

var archiveCmd = &cobra.Command{
	Use:   "archive [id...]",
	Short: "Mark notifications as seen so they no longer count as unseen",
	Example: `  # Archive two notifications
  release-notifier archive 248000000 246624609

  # Archive everything newer than the running version
  release-notifier archive --all -c 4.2.0

  # Show archived ids
  release-notifier archive --list`,
	RunE: runArchive,
}

func init() {
	archiveCmd.Flags().BoolVarP(&archiveList, "list", "l", false, "list archived ids")
	archiveCmd.Flags().BoolVar(&archiveRemove, "remove", false, "unarchive the given ids")
	archiveCmd.Flags().BoolVar(&archiveAll, "all", false, "archive every current notification (requires -c)")
	rootCmd.AddCommand(archiveCmd)
}

// openArchive opens the configured archive, creating its directory
func openArchive() (*archive.Store, error) {
	if dir := filepath.Dir(cfg.ArchivePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create archive directory: %w", err)
		}
	}
	return archive.Open(cfg.ArchivePath)
}

func runArchive(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	ids, err := parseIDs(args)
	if err != nil {
		return err
	}

	if archiveAll {
		if currentVersion == "" {
			return fmt.Errorf("--all requires the current version (use -c)")
		}
		svc, err := newService()
		if err != nil {
			return err
		}
		notifications, err := svc.Notifications(ctx, currentVersion)
		if err != nil {
			return fmt.Errorf("failed to check for updates: %w", err)
		}
		for _, n := range notifications {
			ids = append(ids, n.ID)
		}
	}

	store, err := openArchive()
	if err != nil {
		return err
	}
	defer store.Close()

	switch {
	case archiveRemove:
		if err := store.Unarchive(ctx, ids...); err != nil {
			return err
		}
		green.Fprintf(out, "✅ Unarchived %d notification(s)\n", len(ids))
	case len(ids) > 0:
		if err := store.Archive(ctx, ids...); err != nil {
			return err
		}
		green.Fprintf(out, "✅ Archived %d notification(s)\n", len(ids))
	case !archiveList:
		return fmt.Errorf("nothing to archive: pass ids, --all or --list")
	}

	if archiveList {
		archived, err := store.IDs(ctx)
		if err != nil {
			return err
		}
		sorted := make([]int64, 0, len(archived))
		for id := range archived {
			sorted = append(sorted, id)
		}
		slices.Sort(sorted)
		for _, id := range sorted {
			fmt.Fprintln(out, id)
		}
	}

	return nil
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid notification id %q: %w", arg, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
