package main

import (
	"fmt"

	gojson "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/telhawk-systems/paygate/internal/config"
	"github.com/telhawk-systems/paygate/internal/dlq"
	"github.com/telhawk-systems/paygate/internal/logging"
)

var dlqListLimit int

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Inspect failed delivery records",
}

var dlqListCmd = &cobra.Command{
	Use:   "list",
	Short: "List failed delivery records, oldest first",
	Long: `Prints the failure records kept by the file backend as a JSON array.
Records hold identifiers and the downstream verdict, never the payload.`,
	Args: cobra.NoArgs,
	RunE: runDLQList,
}

var dlqStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show failure record backend statistics",
	Args:  cobra.NoArgs,
	RunE:  runDLQStats,
}

func init() {
	dlqListCmd.Flags().IntVar(&dlqListLimit, "limit", 100, "maximum number of records to print")

	dlqCmd.AddCommand(dlqListCmd)
	dlqCmd.AddCommand(dlqStatsCmd)
}

func runDLQList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.DLQ.Backend != dlq.BackendFile && cfg.DLQ.Backend != "" {
		return fmt.Errorf("dlq list reads the file backend; configured backend is %s", cfg.DLQ.Backend)
	}

	queue, err := dlq.NewFileQueue(cfg.DLQ.BasePath, cliLogger(cmd, cfg))
	if err != nil {
		return err
	}

	records, err := queue.List(dlqListLimit)
	if err != nil {
		return err
	}
	return printJSON(cmd, records)
}

func runDLQStats(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := cliLogger(cmd, cfg)

	var queue dlq.Writer
	switch cfg.DLQ.Backend {
	case dlq.BackendJetStream:
		q, err := dlq.DialJetStream(cmd.Context(), cfg.DLQ.NatsURL, logger)
		if err != nil {
			return err
		}
		queue = q
	case dlq.BackendFile, "":
		q, err := dlq.NewFileQueue(cfg.DLQ.BasePath, logger)
		if err != nil {
			return err
		}
		queue = q
	default:
		return fmt.Errorf("unknown dlq backend: %s (supported: file, jetstream)", cfg.DLQ.Backend)
	}
	defer queue.Close()

	return printJSON(cmd, queue.Stats(cmd.Context()))
}

func cliLogger(cmd *cobra.Command, cfg *config.Config) *logging.Logger {
	return logging.NewWithWriter(cmd.ErrOrStderr(), logging.ParseLevel(cfg.Logging.Level), "text")
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	out, err := gojson.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
