package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bcaldwell/homeparser/pkg/config"
	"github.com/bcaldwell/homeparser/pkg/ingest"
)

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Import every file below a directory once",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := config.CurrentWatchConfig().Path
		if len(args) == 1 {
			root = args[0]
		}

		ingester, cleanup := newIngester()
		defer cleanup()

		outcomes, err := ingester.Scan(cmd.Context(), root)
		if err != nil {
			return err
		}

		var accepted, skipped int
		for _, o := range outcomes {
			if o.Status == ingest.Ignored {
				continue
			}
			printOutcome(cmd.OutOrStdout(), o)
			accepted += o.Result.Accepted
			skipped += o.Result.Skipped
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%d files, %d entries added, %d already existed\n", len(outcomes), accepted, skipped)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
