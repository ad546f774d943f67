package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"k8s.io/klog"

	"github.com/bcaldwell/homeparser/pkg/config"
	"github.com/bcaldwell/homeparser/pkg/ledger"
	"github.com/bcaldwell/homeparser/pkg/postgresutils"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database and entries table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := postgresutils.CreatePostgresClient(cmd.Context())
		if db != nil {
			defer db.Close()
		}
		if err != nil {
			return fmt.Errorf("couldn't connect to DB: %w", err)
		}

		table := config.CurrentSqlConfig().Table
		if err := ledger.NewBunStore(db, table).Migrate(cmd.Context()); err != nil {
			return err
		}

		klog.Infof("table %s is ready", table)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
