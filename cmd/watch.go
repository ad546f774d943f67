package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron"
	"github.com/spf13/cobra"
	"k8s.io/klog"

	"github.com/bcaldwell/homeparser/pkg/config"
	"github.com/bcaldwell/homeparser/pkg/watcher"
)

var noInitialScan bool

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Watch a directory tree and import files as they change",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		watchConfig := config.CurrentWatchConfig()

		root := watchConfig.Path
		if len(args) == 1 {
			root = args[0]
		}

		debounce, err := watchConfig.DebounceDuration()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		ingester, cleanup := newIngester()
		defer cleanup()

		w, err := watcher.New(root, func(ctx context.Context, path string) {
			ingester.Ingest(ctx, path)
		}, watcher.Options{Workers: watchConfig.Workers, Debounce: debounce})
		if err != nil {
			return err
		}

		rescan := func() {
			if _, err := ingester.Scan(ctx, root); err != nil {
				klog.Errorf("failed to scan %s: %v", root, err)
			}
		}

		if !noInitialScan {
			rescan()
		}

		if watchConfig.RescanSchedule != "" {
			c := cron.New()
			if err := c.AddFunc(watchConfig.RescanSchedule, rescan); err != nil {
				return err
			}

			c.Start()
			defer c.Stop()
		}

		return w.Run(ctx)
	},
}

func init() {
	watchCmd.Flags().BoolVar(&noInitialScan, "no-initial-scan", false, "only import files changed after startup")
	rootCmd.AddCommand(watchCmd)
}
