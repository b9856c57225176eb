// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package crawl

import (
	"context"
	"fmt"

	"github.com/pdiddy/toolsweep/internal/cache"
	"github.com/pdiddy/toolsweep/internal/interval"
)

// Result holds the consolidated output of a crawled range.
type Result struct {
	// DOIs lists every identifier found, in span order (oldest span
	// first) with each DOI at its first appearance. The order is
	// deterministic for a given cache state.
	DOIs []string

	// Missing lists spans with no cache entry, from interrupted or
	// failed crawls. Their results are absent from DOIs.
	Missing []interval.Span

	// Spans is the number of spans the range partitioned into.
	Spans int
}

// Complete reports whether every span contributed a cache entry.
func (r Result) Complete() bool {
	return len(r.Missing) == 0
}

// Aggregate reads the cached entries for a partitioned range and
// concatenates them chronologically, deduplicating DOIs that appear in
// several spans. It performs no searches: uncrawled spans are reported
// in Missing, never fetched.
func Aggregate(ctx context.Context, store *cache.Store, query string, spans []interval.Span) (Result, error) {
	entries, err := store.SpanEntries(ctx, query, spans)
	if err != nil {
		return Result{}, fmt.Errorf("reading cached spans: %w", err)
	}

	seen := make(map[string]bool)
	result := Result{Spans: len(spans)}

	for _, entry := range entries {
		if !entry.OK {
			result.Missing = append(result.Missing, entry.Span)
			continue
		}
		for _, doi := range entry.DOIs {
			if seen[doi] {
				continue
			}
			seen[doi] = true
			result.DOIs = append(result.DOIs, doi)
		}
	}
	return result, nil
}
