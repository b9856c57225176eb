// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package interval partitions a date range into contiguous spans for
// chunked searching. Preprint-server search endpoints truncate large
// result sets, so the crawl stage queries one bounded span at a time;
// the partition guarantees every day in the range lands in exactly one
// span.
package interval

import (
	"fmt"
	"time"
)

// DateLayout is the ISO date format used throughout the pipeline.
const DateLayout = "2006-01-02"

// EarliestStart is the default lower bound when no start date is given.
// It predates every preprint server.
const EarliestStart = "1970-01-01"

// Span is a date interval. Both endpoints are inclusive: a one-day span
// has Start == End.
type Span struct {
	Start time.Time
	End   time.Time
}

// Key returns the span as "start,end" in ISO dates. It identifies the
// span in the cache, so its format must stay stable across releases.
func (s Span) Key() string {
	return s.Start.Format(DateLayout) + "," + s.End.Format(DateLayout)
}

// String returns the span as "start..end" for progress output.
func (s Span) String() string {
	return s.Start.Format(DateLayout) + ".." + s.End.Format(DateLayout)
}

// Days returns the number of days the span covers, counting both endpoints.
func (s Span) Days() int {
	return int(s.End.Sub(s.Start)/(24*time.Hour)) + 1
}

// RangeError reports an invalid partition request.
type RangeError struct {
	Start  string
	End    string
	Days   int
	Reason string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("invalid date range [%s, %s] interval %d: %s", e.Start, e.End, e.Days, e.Reason)
}

// ParseDate parses an ISO date (YYYY-MM-DD) in UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return t, nil
}

// Today returns the current UTC date at midnight.
func Today() time.Time {
	return time.Now().UTC().Truncate(24 * time.Hour)
}

// Partition splits [start, end] into consecutive spans of at most days
// days each. Spans are contiguous and non-overlapping: each span starts
// the day after the previous one ends, and the final span is truncated
// at end. Both bounds are inclusive ISO dates.
func Partition(start, end string, days int) ([]Span, error) {
	if days < 1 {
		return nil, &RangeError{Start: start, End: end, Days: days, Reason: "interval must be at least one day"}
	}
	from, err := ParseDate(start)
	if err != nil {
		return nil, &RangeError{Start: start, End: end, Days: days, Reason: err.Error()}
	}
	to, err := ParseDate(end)
	if err != nil {
		return nil, &RangeError{Start: start, End: end, Days: days, Reason: err.Error()}
	}
	if to.Before(from) {
		return nil, &RangeError{Start: start, End: end, Days: days, Reason: "end date precedes start date"}
	}

	var spans []Span
	for cur := from; !cur.After(to); cur = cur.AddDate(0, 0, days) {
		last := cur.AddDate(0, 0, days-1)
		if last.After(to) {
			last = to
		}
		spans = append(spans, Span{Start: cur, End: last})
	}
	return spans, nil
}
