package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/dyluth/locbridge/internal/filter"
	"github.com/dyluth/locbridge/internal/printer"
	"github.com/dyluth/locbridge/internal/timespec"
	"github.com/dyluth/locbridge/internal/watch"
	"github.com/spf13/cobra"
)

var (
	eventsOutputFormat string
	eventsSince        string
	eventsUntil        string
	eventsType         string
	eventsSlot         int
	eventsFailed       bool
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List recorded seed events",
	Long: `List the seed event history kept in Redis.

Time Filters:
  --since  - Show events after this time
  --until  - Show events before this time

Examples:
  # Everything in the last hour
  locbridge events --since 1h

  # Failed sets for slot 4 as JSONL
  locbridge events --type set_failed --slot 4 --output jsonl | jq .error`,
	RunE: runEvents,
}

func init() {
	eventsCmd.Flags().StringVarP(&eventsOutputFormat, "output", "o", "default", "Output format: default or jsonl")
	eventsCmd.Flags().StringVar(&eventsSince, "since", "", "Show events after time (now, duration or RFC3339)")
	eventsCmd.Flags().StringVar(&eventsUntil, "until", "", "Show events before time (now, duration or RFC3339)")
	eventsCmd.Flags().StringVar(&eventsType, "type", "", "Filter by event type (glob pattern)")
	eventsCmd.Flags().IntVar(&eventsSlot, "slot", -2, "Filter by slot (-1 for the current pose)")
	eventsCmd.Flags().BoolVar(&eventsFailed, "failed", false, "Only show rejected or failed actions")
	rootCmd.AddCommand(eventsCmd)
}

func runEvents(cmd *cobra.Command, args []string) error {
	format, err := watch.ParseOutputFormat(eventsOutputFormat)
	if err != nil {
		return reported(printer.Error("invalid output format", err.Error(), []string{"Valid formats: default, jsonl"}))
	}

	sinceMS, untilMS, err := timespec.ParseRange(eventsSince, eventsUntil, time.Now())
	if err != nil {
		return reported(printer.Error(
			"invalid time filter",
			err.Error(),
			[]string{"Use duration format like '1h30m' or RFC3339 like '2026-03-02T13:00:00Z'"},
		))
	}

	criteria := &filter.Criteria{
		SinceTimestampMs: sinceMS,
		UntilTimestampMs: untilMS,
		TypeGlob:         eventsType,
		FailedOnly:       eventsFailed,
	}
	if cmd.Flags().Changed("slot") {
		criteria.Slot = &eventsSlot
	}
	if err := criteria.Validate(); err != nil {
		return reported(printer.Error("invalid --type pattern", err.Error(), nil))
	}

	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}

	ctx := context.Background()
	bbClient, err := connectBlackboard(ctx, cfg)
	if err != nil {
		return err
	}
	defer bbClient.Close()

	if err := watch.ListEvents(ctx, bbClient, cfg.Instance, format, criteria, printer.Out); err != nil {
		return fmt.Errorf("failed to list events: %w", err)
	}
	return nil
}
