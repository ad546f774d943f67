package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"k8s.io/klog"

	"github.com/bcaldwell/homeparser/pkg/config"
	"github.com/bcaldwell/homeparser/pkg/homebank"
	"github.com/bcaldwell/homeparser/pkg/ledger"
	"github.com/bcaldwell/homeparser/pkg/postgresutils"
)

const exportDateLayout = "2006-01-02"

var (
	exportParser string
	exportFrom   string
	exportTo     string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write stored entries as a HomeBank CSV import file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := exportOptions(exportParser, exportFrom, exportTo)
		if err != nil {
			return err
		}

		db, err := postgresutils.CreatePostgresClient(cmd.Context())
		if db != nil {
			defer db.Close()
		}
		if err != nil {
			return fmt.Errorf("couldn't connect to DB: %w", err)
		}

		entries, err := ledger.NewBunStore(db, config.CurrentSqlConfig().Table).List(cmd.Context(), opts)
		if err != nil {
			return err
		}

		var out io.Writer = cmd.OutOrStdout()
		if exportOutput != "" && exportOutput != "-" {
			f, err := os.Create(exportOutput)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}

		if err := homebank.Write(out, entries); err != nil {
			return fmt.Errorf("failed to write export: %w", err)
		}

		klog.Infof("exported %d entries", len(entries))
		return nil
	},
}

// exportOptions parses the --from and --to dates. --to is inclusive on the command line.
func exportOptions(parser, from, to string) (ledger.ListOptions, error) {
	opts := ledger.ListOptions{Parser: parser}

	if from != "" {
		t, err := time.Parse(exportDateLayout, from)
		if err != nil {
			return opts, fmt.Errorf("invalid --from %q: %w", from, err)
		}
		opts.From = t
	}

	if to != "" {
		t, err := time.Parse(exportDateLayout, to)
		if err != nil {
			return opts, fmt.Errorf("invalid --to %q: %w", to, err)
		}
		opts.To = t.AddDate(0, 0, 1)
	}

	return opts, nil
}

func init() {
	exportCmd.Flags().StringVar(&exportParser, "parser", "", "only export entries read by this parser")
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "first date to export, YYYY-MM-DD")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "last date to export, YYYY-MM-DD")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "file to write, stdout when empty")
	rootCmd.AddCommand(exportCmd)
}
