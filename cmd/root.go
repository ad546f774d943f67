package cmd

import (
	"context"
	"flag"
	"os"

	"github.com/spf13/cobra"
	"k8s.io/klog"

	"github.com/bcaldwell/homeparser/pkg/config"
)

var (
	configFile  string
	secretsFile string
)

var rootCmd = &cobra.Command{
	Use:   "homeparser",
	Short: "Import bank and card exports into postgres",
	Long: `homeparser reads delimited transaction exports dropped into a directory tree.
Every directory holds a config.yml describing the columns of the files next to it.
Parsed lines are written to postgres once, re-importing a file only adds new lines.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.ReadConfig(config.ConfigEnvVar, configFile, secretsFile)
	},
}

func Execute() {
	err := rootCmd.ExecuteContext(context.Background())
	klog.Flush()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./config.yml", "configuration file")
	rootCmd.PersistentFlags().StringVar(&secretsFile, "secrets", "./secrets.ejson", "ejson secrets file")

	klogFlags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(klogFlags)
	rootCmd.PersistentFlags().AddGoFlagSet(klogFlags)
}
