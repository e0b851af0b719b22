package main

import (
	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "0.1.0"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "paygate",
	Short: "Payment webhook gateway",
	Long: `paygate authenticates payment processor webhooks, derives correlation
identifiers from the event, and forwards each event exactly once to an
idempotent ingestion function.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml or /etc/paygate/config.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(signCmd)
	rootCmd.AddCommand(dlqCmd)
}
