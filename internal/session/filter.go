package session

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FilterOptions specifies criteria for filtering journal entries.
type FilterOptions struct {
	Since time.Duration // Entries newer than now-since (0=all)
	Popup string        // Exact match on popup target id
	Kind  Kind          // Exact match on kind
	Limit int           // Most recent results kept (0=unlimited)
	Now   time.Time     // Reference time for Since; zero means time.Now()
}

// Filter filters journal entries based on the provided options.
func Filter(entries []Entry, opts FilterOptions) []Entry {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	result := make([]Entry, 0, len(entries))

	for _, e := range entries {
		if opts.Since > 0 && e.At.Before(now.Add(-opts.Since)) {
			continue
		}
		if opts.Popup != "" && e.Popup != opts.Popup {
			continue
		}
		if opts.Kind != "" && e.Kind != opts.Kind {
			continue
		}
		result = append(result, e)
	}

	// Journals are oldest first; keep the tail
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[len(result)-opts.Limit:]
	}

	return result
}

// ParseDuration parses a duration string with extended formats.
// Supports: 48h, 7d, 1w, 0 (all time)
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)

	// 0 means no filter (all time)
	if s == "0" || s == "" {
		return 0, nil
	}

	// Handle day suffix (7d -> 168h)
	if daysStr, found := strings.CutSuffix(s, "d"); found {
		days, err := strconv.Atoi(daysStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}

	// Handle week suffix (1w -> 168h)
	if weeksStr, found := strings.CutSuffix(s, "w"); found {
		weeks, err := strconv.Atoi(weeksStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		return time.Duration(weeks) * 7 * 24 * time.Hour, nil
	}

	return time.ParseDuration(s)
}
