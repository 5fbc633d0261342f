// Package filter selects seed events for the events and watch commands.
package filter

import (
	"path/filepath"

	"github.com/dyluth/locbridge/pkg/blackboard"
)

// Criteria defines filtering criteria for seed events.
// All filters are ANDed together; zero values match everything.
type Criteria struct {
	SinceTimestampMs int64  // 0 = no lower bound
	UntilTimestampMs int64  // 0 = no upper bound
	TypeGlob         string // glob over the event type, e.g. "set*"
	Slot             *int   // exact slot, nil = any
	FailedOnly       bool
}

// Matches returns true if the event matches all filter criteria.
func (c *Criteria) Matches(e *blackboard.SeedEvent) bool {
	if c.SinceTimestampMs > 0 && e.TimestampMs < c.SinceTimestampMs {
		return false
	}
	if c.UntilTimestampMs > 0 && e.TimestampMs > c.UntilTimestampMs {
		return false
	}

	if c.TypeGlob != "" {
		matched, err := filepath.Match(c.TypeGlob, string(e.Type))
		if err != nil || !matched {
			return false
		}
	}

	if c.Slot != nil && e.Slot != *c.Slot {
		return false
	}

	if c.FailedOnly && !e.Failed() {
		return false
	}

	return true
}

// HasFilters returns true if any filters are active.
func (c *Criteria) HasFilters() bool {
	return c.SinceTimestampMs > 0 ||
		c.UntilTimestampMs > 0 ||
		c.TypeGlob != "" ||
		c.Slot != nil ||
		c.FailedOnly
}

// Validate reports a malformed type glob.
func (c *Criteria) Validate() error {
	if c.TypeGlob == "" {
		return nil
	}
	_, err := filepath.Match(c.TypeGlob, "")
	return err
}
