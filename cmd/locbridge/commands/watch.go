package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dyluth/locbridge/internal/filter"
	"github.com/dyluth/locbridge/internal/printer"
	"github.com/dyluth/locbridge/internal/watch"
	"github.com/spf13/cobra"
)

var (
	watchOutputFormat string
	watchType         string
	watchSlot         int
	watchFailed       bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream seed events as they happen",
	Long: `Stream teach, set and current pose events published by a running bridge.

Output Formats:
  default - Human-readable colored lines
  jsonl   - Line-delimited JSON for programmatic processing

Examples:
  locbridge watch
  locbridge watch --failed
  locbridge watch --type 'seed_*' --output jsonl > events.jsonl`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format (default or jsonl)")
	watchCmd.Flags().StringVar(&watchType, "type", "", "Filter by event type (glob pattern)")
	watchCmd.Flags().IntVar(&watchSlot, "slot", -2, "Filter by slot (-1 for the current pose)")
	watchCmd.Flags().BoolVar(&watchFailed, "failed", false, "Only show rejected or failed actions")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	format, err := watch.ParseOutputFormat(watchOutputFormat)
	if err != nil {
		return reported(printer.Error("invalid output format", err.Error(), []string{"Valid formats: default, jsonl"}))
	}

	criteria := &filter.Criteria{TypeGlob: watchType, FailedOnly: watchFailed}
	if cmd.Flags().Changed("slot") {
		criteria.Slot = &watchSlot
	}
	if err := criteria.Validate(); err != nil {
		return reported(printer.Error("invalid --type pattern", err.Error(), nil))
	}

	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bbClient, err := connectBlackboard(ctx, cfg)
	if err != nil {
		return err
	}
	defer bbClient.Close()

	if err := watch.StreamEvents(ctx, bbClient, format, criteria, printer.Out, printer.Err); err != nil {
		return fmt.Errorf("watch failed: %w", err)
	}
	return nil
}
