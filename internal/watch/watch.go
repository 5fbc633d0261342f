// Package watch lists and streams the bridge's seed events.
package watch

import (
	"context"
	"fmt"
	"io"

	"github.com/dyluth/locbridge/internal/filter"
	"github.com/dyluth/locbridge/pkg/blackboard"
)

// Lister reads the seed event history.
type Lister interface {
	ListSeedEvents(ctx context.Context, sinceMs, untilMs int64) ([]*blackboard.SeedEvent, error)
}

// Subscriber opens a live seed event subscription.
type Subscriber interface {
	SubscribeSeedEvents(ctx context.Context) (*blackboard.Subscription, error)
}

// ListEvents writes the history matching criteria in the requested format.
func ListEvents(ctx context.Context, l Lister, instanceName string, format OutputFormat, criteria *filter.Criteria, w io.Writer) error {
	events, err := l.ListSeedEvents(ctx, criteria.SinceTimestampMs, criteria.UntilTimestampMs)
	if err != nil {
		return fmt.Errorf("failed to list seed events: %w", err)
	}

	matched := events[:0]
	for _, e := range events {
		if criteria.Matches(e) {
			matched = append(matched, e)
		}
	}

	if format == OutputFormatJSONL {
		return FormatJSONL(w, matched)
	}
	FormatTable(w, matched, instanceName)
	return nil
}

// StreamEvents writes matching events as they are published until ctx is
// cancelled or the subscription ends. Malformed messages are reported to
// errW and skipped.
func StreamEvents(ctx context.Context, s Subscriber, format OutputFormat, criteria *filter.Criteria, w, errW io.Writer) error {
	sub, err := s.SubscribeSeedEvents(ctx)
	if err != nil {
		return err
	}
	defer sub.Close()

	if format == OutputFormatDefault {
		fmt.Fprintln(w, "Watching seed events (Ctrl+C to stop)...")
	}

	errs := sub.Errors()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			fmt.Fprintf(errW, "warning: %v\n", err)
		case e, ok := <-sub.Events():
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("seed event subscription closed")
			}
			if !criteria.Matches(e) {
				continue
			}
			if format == OutputFormatJSONL {
				if err := writeJSONLine(w, e); err != nil {
					return err
				}
				continue
			}
			fmt.Fprintln(w, FormatLine(e))
		}
	}
}
