package watch

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dyluth/locbridge/pkg/blackboard"
	"github.com/fatih/color"
)

// OutputFormat selects how events are written.
type OutputFormat string

const (
	// OutputFormatDefault is a human-readable table or colored line stream.
	OutputFormatDefault OutputFormat = "default"
	// OutputFormatJSONL is one JSON object per line.
	OutputFormatJSONL OutputFormat = "jsonl"
)

// ParseOutputFormat accepts "default", "jsonl" and "json" (an alias for jsonl).
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch s {
	case "", "default":
		return OutputFormatDefault, nil
	case "jsonl", "json":
		return OutputFormatJSONL, nil
	}
	return "", fmt.Errorf("unknown format: %s", s)
}

var (
	okColor   = color.New(color.FgGreen)
	failColor = color.New(color.FgRed)
	zeroColor = color.New(color.FgCyan)
)

// FormatTable writes events as a table and returns the number written.
func FormatTable(w io.Writer, events []*blackboard.SeedEvent, instanceName string) int {
	if len(events) == 0 {
		fmt.Fprintf(w, "No seed events found for instance '%s'\n", instanceName)
		return 0
	}

	fmt.Fprintf(w, "Seed events for instance '%s':\n\n", instanceName)
	fmt.Fprintf(w, "%-23s %-14s %-5s %10s %10s %8s  %s\n",
		"TIME", "TYPE", "SLOT", "X", "Y", "YAW", "DETAIL")
	fmt.Fprintf(w, "%-23s %-14s %-5s %10s %10s %8s  %s\n",
		"-----------------------", "--------------", "-----", "----------", "----------", "--------", "----------------------------------------")

	for _, e := range events {
		fmt.Fprintf(w, "%-23s %-14s %-5s %10.3f %10.3f %8.4f  %s\n",
			formatTime(e.TimestampMs),
			e.Type,
			formatSlot(e.Slot),
			e.X, e.Y, e.Yaw,
			formatDetail(e),
		)
	}

	noun := "event"
	if len(events) != 1 {
		noun = "events"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(events), noun)
	return len(events)
}

// FormatJSONL writes each event as a single JSON line.
func FormatJSONL(w io.Writer, events []*blackboard.SeedEvent) error {
	for _, e := range events {
		if err := writeJSONLine(w, e); err != nil {
			return err
		}
	}
	return nil
}

func writeJSONLine(w io.Writer, e *blackboard.SeedEvent) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal seed event to JSON: %w", err)
	}
	if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
		return fmt.Errorf("failed to write JSONL output: %w", err)
	}
	return nil
}

// FormatLine renders one event for the live stream.
func FormatLine(e *blackboard.SeedEvent) string {
	ts := time.UnixMilli(e.TimestampMs).Format("15:04:05.000")
	pose := fmt.Sprintf("x=%.3f y=%.3f yaw=%.4f", e.X, e.Y, e.Yaw)

	switch e.Type {
	case blackboard.EventTaught:
		return okColor.Sprintf("[%s] 📍 Taught slot %d: %s", ts, e.Slot, pose)
	case blackboard.EventSeedSet:
		return okColor.Sprintf("[%s] 🎯 Seed set from slot %d: %s%s", ts, e.Slot, pose, formatFlags(e))
	case blackboard.EventTeachRejected:
		return failColor.Sprintf("[%s] ❌ Teach rejected for slot %d: %s", ts, e.Slot, e.Error)
	case blackboard.EventSetFailed:
		return failColor.Sprintf("[%s] ❌ Seed set failed for slot %d: %s", ts, e.Slot, e.Error)
	case blackboard.EventSeedZero:
		return zeroColor.Sprintf("[%s] ↻ Current pose: %s", ts, pose)
	}
	return fmt.Sprintf("[%s] %s slot %d: %s", ts, e.Type, e.Slot, pose)
}

func formatTime(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Format("2006-01-02 15:04:05.000")
}

func formatSlot(slot int) string {
	if slot == blackboard.CurrentPoseSlot {
		return "cur"
	}
	return fmt.Sprintf("%d", slot)
}

func formatDetail(e *blackboard.SeedEvent) string {
	if e.Error != "" {
		if len(e.Error) > 40 {
			return e.Error[:37] + "..."
		}
		return e.Error
	}
	if e.Type == blackboard.EventSeedSet {
		if f := formatFlags(e); f != "" {
			return f[1:]
		}
	}
	return "-"
}

func formatFlags(e *blackboard.SeedEvent) string {
	s := ""
	if e.Enforce {
		s += " enforce"
	}
	if e.Uncertain {
		s += " uncertain"
	}
	return s
}
