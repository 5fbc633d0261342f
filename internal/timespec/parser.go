// Package timespec turns --since/--until values into millisecond timestamps.
package timespec

import (
	"fmt"
	"time"
)

// Parse resolves spec against now. A spec is "now", an RFC3339 timestamp,
// or a non-negative Go duration read as that long before now.
func Parse(spec string, now time.Time) (int64, error) {
	switch spec {
	case "":
		return 0, fmt.Errorf("empty time specification")
	case "now":
		return now.UnixMilli(), nil
	}

	if t, err := time.Parse(time.RFC3339, spec); err == nil {
		return t.UnixMilli(), nil
	}

	d, err := time.ParseDuration(spec)
	switch {
	case err != nil:
		return 0, fmt.Errorf("invalid time specification %q: want \"now\", a duration such as 90m, or an RFC3339 timestamp", spec)
	case d < 0:
		return 0, fmt.Errorf("negative duration %q: durations count back from now", spec)
	}
	return now.Add(-d).UnixMilli(), nil
}

// ParseRange resolves the two ends of an event window. An empty flag yields 0,
// which callers treat as unbounded.
func ParseRange(since, until string, now time.Time) (sinceMS, untilMS int64, err error) {
	if since != "" {
		if sinceMS, err = Parse(since, now); err != nil {
			return 0, 0, fmt.Errorf("invalid --since: %w", err)
		}
	}
	if until != "" {
		if untilMS, err = Parse(until, now); err != nil {
			return 0, 0, fmt.Errorf("invalid --until: %w", err)
		}
	}
	if sinceMS != 0 && untilMS != 0 && sinceMS >= untilMS {
		return 0, 0, fmt.Errorf("--since must be before --until")
	}
	return sinceMS, untilMS, nil
}
