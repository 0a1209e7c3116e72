package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yhsiang/shopledger/internal/logging"
	"github.com/yhsiang/shopledger/internal/sync/scheduler"
)

// NewWatchCommand creates the watch command: periodic syncing plus the
// live change feed, until interrupted.
func NewWatchCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Sync continuously until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(context.Background(),
				os.Interrupt, syscall.SIGTERM)
			defer stop()

			sched := scheduler.New(a.engine, &scheduler.Config{
				SyncInterval:  opts.cfg.Sync.SyncInterval,
				DrainInterval: opts.cfg.Sync.DrainInterval,
				SyncTimeout:   opts.cfg.Sync.SyncTimeout,
			})
			sched.Start(ctx)
			defer sched.Stop()

			if unsubscribe, err := a.engine.Watch(ctx); err != nil {
				logging.Warn("Change feed unavailable, relying on periodic sync",
					map[string]interface{}{"error": err.Error()})
			} else {
				defer unsubscribe()
			}

			// Kick off an initial pass instead of waiting one interval.
			sched.TriggerSync(ctx)

			fmt.Fprintln(cmd.OutOrStdout(), "Watching for changes. Press Ctrl+C to stop.")
			<-ctx.Done()
			return nil
		},
	}
}
