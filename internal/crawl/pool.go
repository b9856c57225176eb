// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package crawl drives the span search worker pool and aggregates its
// cached results. Each date span is an independent unit of work: it is
// searched, retried on transient failures, and cached on its own, so
// one bad span never poisons the rest of the range.
package crawl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pdiddy/toolsweep/internal/cache"
	"github.com/pdiddy/toolsweep/internal/interval"
	"github.com/pdiddy/toolsweep/internal/search"
)

// backoffBase controls the retry backoff for transient search failures.
// Tests override this to avoid real sleeps.
var backoffBase = time.Second

// Pool searches date spans concurrently and records completed spans in
// the cache.
type Pool struct {
	Searcher search.Searcher
	Store    *cache.Store

	// Workers is the number of concurrent span searches (default 4).
	Workers int

	// MaxAttempts bounds search attempts per span on transient
	// failures (default 3). Permanent failures are never retried.
	MaxAttempts int
}

// Summary holds counts from a crawl run.
type Summary struct {
	Searched   int
	Cached     int
	Failed     int
	Incomplete int
	DOIs       int

	// FailedSpans lists the spans that exhausted their attempts,
	// ordered by start date. They stay uncached and will be retried by
	// the next run.
	FailedSpans []interval.Span
}

// Total returns the number of spans processed.
func (s Summary) Total() int {
	return s.Searched + s.Cached + s.Failed + s.Incomplete
}

// HasFailures reports whether any span failed or was left incomplete.
func (s Summary) HasFailures() bool {
	return s.Failed > 0 || s.Incomplete > 0
}

// Run searches every span that has no cache entry yet, printing
// per-span status to w. Spans with existing entries are never
// re-queried: restarting an interrupted crawl costs zero searches for
// the work already done. Run returns a non-nil error only when the
// context is cancelled or the cache breaks; span failures land in the
// summary instead.
func (p *Pool) Run(ctx context.Context, query string, spans []interval.Span, w io.Writer) (Summary, error) {
	workers := p.Workers
	if workers <= 0 {
		workers = 4
	}
	if workers > len(spans) {
		workers = len(spans)
	}
	if len(spans) == 0 {
		return Summary{}, nil
	}

	var searched, cached, failed, doiCount atomic.Int32
	var mu sync.Mutex
	var failedSpans []interval.Span

	progress := func(format string, args ...any) {
		mu.Lock()
		fmt.Fprintf(w, format, args...)
		mu.Unlock()
	}

	workChan := make(chan interval.Span, len(spans))
	for _, sp := range spans {
		workChan <- sp
	}
	close(workChan)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sp := range workChan {
				if ctx.Err() != nil {
					return
				}

				dois, ok, err := p.Store.SearchEntry(ctx, query, sp)
				if err != nil {
					progress("failed:  %s (%v)\n", sp, err)
					mu.Lock()
					failedSpans = append(failedSpans, sp)
					mu.Unlock()
					failed.Add(1)
					continue
				}
				if ok {
					progress("cached:  %s (%d DOIs)\n", sp, len(dois))
					cached.Add(1)
					doiCount.Add(int32(len(dois)))
					continue
				}

				dois, err = p.searchWithRetry(ctx, query, sp)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					progress("failed:  %s (%v)\n", sp, err)
					mu.Lock()
					failedSpans = append(failedSpans, sp)
					mu.Unlock()
					failed.Add(1)
					continue
				}

				if err := p.Store.PutSearchEntry(ctx, query, sp, dois); err != nil {
					progress("failed:  %s (%v)\n", sp, err)
					mu.Lock()
					failedSpans = append(failedSpans, sp)
					mu.Unlock()
					failed.Add(1)
					continue
				}

				progress("fetched: %s (%d DOIs)\n", sp, len(dois))
				searched.Add(1)
				doiCount.Add(int32(len(dois)))
			}
		}()
	}
	wg.Wait()

	sort.Slice(failedSpans, func(i, j int) bool {
		return failedSpans[i].Start.Before(failedSpans[j].Start)
	})

	summary := Summary{
		Searched:    int(searched.Load()),
		Cached:      int(cached.Load()),
		Failed:      int(failed.Load()),
		DOIs:        int(doiCount.Load()),
		FailedSpans: failedSpans,
	}
	summary.Incomplete = len(spans) - summary.Searched - summary.Cached - summary.Failed

	if ctx.Err() != nil {
		return summary, ctx.Err()
	}

	fmt.Fprintf(w, "\nCrawl summary: %d fetched, %d cached, %d failed (total: %d)\n",
		summary.Searched, summary.Cached, summary.Failed, summary.Total())
	slog.Info("crawl complete", "query", query,
		"fetched", summary.Searched, "cached", summary.Cached,
		"failed", summary.Failed, "dois", summary.DOIs)

	return summary, nil
}

// searchWithRetry runs one span search, retrying transient failures
// with exponential backoff. Permanent failures and context
// cancellation return immediately.
func (p *Pool) searchWithRetry(ctx context.Context, query string, sp interval.Span) ([]string, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		dois, err := p.Searcher.Search(ctx, query, sp)
		if err == nil {
			return dois, nil
		}
		lastErr = err

		if search.IsPermanent(err) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt == maxAttempts {
			break
		}

		backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
		slog.Debug("span search failed, backing off",
			"span", sp.String(), "attempt", attempt, "backoff", backoff, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return nil, fmt.Errorf("after %d attempts: %w", maxAttempts, lastErr)
}
