package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/nickromney-org/release-notifier/internal/connect"
	"github.com/spf13/cobra"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Check periodically and print releases as they appear",
	RunE: func(cmd *cobra.Command, args []string) error {
		if currentVersion == "" {
			return fmt.Errorf("current version is required (use -c, e.g. -c 4.2.0)")
		}
		if watchInterval <= 0 {
			return fmt.Errorf("--interval must be positive, got %s", watchInterval)
		}

		svc, err := newService()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		watch(ctx, cmd.OutOrStdout(), svc, watchInterval)
		return nil
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 30*time.Minute, "time between checks")
	rootCmd.AddCommand(watchCmd)
}

// watch checks immediately and then on every tick until ctx is done
func watch(ctx context.Context, w io.Writer, svc *connect.Service, interval time.Duration) {
	announced := make(map[int64]struct{})

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		watchOnce(ctx, w, svc, announced)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// watchOnce prints unseen notifications not yet announced. Failures are
// logged and retried on the next tick.
func watchOnce(ctx context.Context, w io.Writer, svc *connect.Service, announced map[int64]struct{}) int {
	notifications, err := svc.Notifications(ctx, currentVersion)
	if err != nil {
		log.WithError(err).Warn("update check failed, retrying on next tick")
		return 0
	}

	archived := loadArchived(ctx)
	printed := 0
	for _, n := range notifications {
		if _, ok := archived[n.ID]; ok {
			continue
		}
		if _, ok := announced[n.ID]; ok {
			continue
		}
		announced[n.ID] = struct{}{}
		yellow.Fprintf(w, "⬆️  %s (%d) published %s\n", n.Name, n.ID, formatPublished(n.Date, time.Now()))
		printed++
	}

	log.WithField("new", printed).Debug("update check complete")
	return printed
}
