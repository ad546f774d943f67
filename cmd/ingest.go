package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest FILE...",
	Short: "Import files once",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ingester, cleanup := newIngester()
		defer cleanup()

		for _, arg := range args {
			path, err := filepath.Abs(arg)
			if err != nil {
				return err
			}

			printOutcome(cmd.OutOrStdout(), ingester.Ingest(cmd.Context(), path))
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
