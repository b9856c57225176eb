// Package extract turns article text into schema-checked analysis
// artifacts. Each DOI walks a bounded loop: fetch content, prompt the
// model, parse the reply, validate against the contract, and either
// write the artifact or re-prompt with the violations until the
// attempt budget runs out. Every DOI ends in exactly one terminal
// state, recorded both on disk and in the cache index.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"go.yaml.in/yaml/v3"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/toolsweep/internal/article"
	"github.com/pdiddy/toolsweep/internal/cache"
	"github.com/pdiddy/toolsweep/internal/schema"
	"github.com/pdiddy/toolsweep/pkg/types"
)

// Artifact file names inside a DOI's cache directory.
const (
	MetaFile     = "meta.yaml"
	AnalysisFile = "analysis.json"
	FailureFile  = "failure.json"
)

// Fetcher resolves a DOI into article metadata plus the text block the
// model reads. Implemented by article.Client; tests supply fakes.
type Fetcher interface {
	Fetch(ctx context.Context, doi string) (*types.Article, string, error)
}

// State is the terminal point a DOI's extraction reached.
type State string

const (
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateSkipped   State = "skipped"
)

// Outcome is the terminal result for one DOI.
type Outcome struct {
	DOI      string
	State    State
	Attempts int

	// Reason describes a failure in one line, empty otherwise.
	Reason string

	// Violations holds the last rejected attempt's problems when the
	// attempt budget ran out.
	Violations []schema.Violation
}

// Summary holds counts from a batch extraction run.
type Summary struct {
	Succeeded  int
	Skipped    int
	Failed     int
	Incomplete int
}

// Total returns the number of DOIs the run covered.
func (s Summary) Total() int {
	return s.Succeeded + s.Skipped + s.Failed + s.Incomplete
}

// HasFailures reports whether any DOI did not end with an artifact.
func (s Summary) HasFailures() bool {
	return s.Failed > 0 || s.Incomplete > 0
}

// Engine extracts structured tool-usage artifacts for DOIs and records
// every outcome in the cache.
type Engine struct {
	Fetcher  Fetcher
	Model    Completer
	Contract schema.Contract
	Store    *cache.Store

	// MaxAttempts bounds schema-rejected completions per DOI before a
	// failure record is written (default 3).
	MaxAttempts int

	// ModelRetries bounds retries of transient model errors per
	// completion (default 3).
	ModelRetries int

	// Concurrency is the number of DOIs in flight during Run
	// (default 2).
	Concurrency int
}

// Run extracts every DOI with bounded concurrency, writing one
// progress line per DOI to w. Per-DOI failures are reported in the
// summary, not the error; the error is non-nil only when the context
// was cancelled, in which case DOIs that never reached a terminal
// state are counted incomplete and a later run picks them up.
func (e *Engine) Run(ctx context.Context, dois []string, w io.Writer) (Summary, error) {
	concurrency := e.Concurrency
	if concurrency <= 0 {
		concurrency = 2
	}

	var mu sync.Mutex
	var summary Summary

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, doi := range dois {
		doi := doi
		g.Go(func() error {
			if gctx.Err() != nil {
				mu.Lock()
				summary.Incomplete++
				mu.Unlock()
				return nil
			}

			out, err := e.Extract(gctx, doi)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Incomplete++
				return nil
			}
			switch out.State {
			case StateSkipped:
				summary.Skipped++
				fmt.Fprintf(w, "skipped: %s\n", out.DOI)
			case StateSucceeded:
				summary.Succeeded++
				fmt.Fprintf(w, "extracted: %s (attempt %d)\n", out.DOI, out.Attempts)
			case StateFailed:
				summary.Failed++
				fmt.Fprintf(w, "failed: %s (%s)\n", out.DOI, out.Reason)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return summary, err
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}

	fmt.Fprintf(w, "\nExtraction summary: %d extracted, %d skipped, %d failed (total: %d)\n",
		summary.Succeeded, summary.Skipped, summary.Failed, summary.Total())
	slog.Info("extraction complete",
		"extracted", summary.Succeeded, "skipped", summary.Skipped, "failed", summary.Failed)
	return summary, nil
}

// Extract walks one DOI to a terminal state. The returned error is
// non-nil only when the context was cancelled before a terminal state
// was reached; every other path ends in a recorded outcome. A DOI
// whose artifact already exists is skipped untouched.
func (e *Engine) Extract(ctx context.Context, rawDOI string) (Outcome, error) {
	maxAttempts := e.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	doi, err := article.ParseDOI(rawDOI)
	if err != nil {
		// No directory to file a record under; index only.
		return e.fail(ctx, Outcome{DOI: rawDOI, Reason: fmt.Sprintf("malformed DOI: %v", err)}, "")
	}
	dir := doi.Dir()

	if e.Store.HasArtifact(dir, AnalysisFile) {
		return Outcome{DOI: doi.String(), State: StateSkipped}, nil
	}

	// A pending row marks work in flight; a crash leaves it behind with
	// no artifact, so the next run retries the DOI.
	if err := e.Store.MarkExtraction(ctx, doi.String(), types.StatusPending, 0, ""); err != nil {
		slog.Warn("indexing extraction", "doi", doi.String(), "error", err)
	}

	art, input, err := e.Fetcher.Fetch(ctx, doi.String())
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		// Unresolvable content is permanent for this DOI.
		return e.fail(ctx, Outcome{DOI: doi.String(), Reason: fmt.Sprintf("content resolution: %v", err)}, dir)
	}

	if data, err := yaml.Marshal(art); err == nil {
		if err := e.Store.WriteArtifact(dir, MetaFile, data); err != nil {
			slog.Warn("writing article metadata", "doi", doi.String(), "error", err)
		}
	}

	var violations []schema.Violation
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		system, err := Instructions(e.Contract, violations)
		if err != nil {
			return e.fail(ctx, Outcome{DOI: doi.String(), Attempts: attempt - 1, Reason: fmt.Sprintf("rendering instructions: %v", err)}, dir)
		}

		reply, err := e.complete(ctx, system, input)
		if err != nil {
			if ctx.Err() != nil {
				return Outcome{}, ctx.Err()
			}
			return e.fail(ctx, Outcome{DOI: doi.String(), Attempts: attempt, Reason: fmt.Sprintf("model: %v", err)}, dir)
		}

		obj, err := ParseObject(reply)
		if err != nil {
			// A reply with no parsable object is rejected like any
			// other contract breach and re-prompted.
			violations = []schema.Violation{{
				Field:  "(document)",
				Rule:   schema.RuleWrongType,
				Detail: err.Error(),
			}}
			continue
		}

		violations = e.Contract.Validate(obj)
		if len(violations) > 0 {
			slog.Debug("attempt rejected",
				"doi", doi.String(), "attempt", attempt, "violations", len(violations))
			continue
		}

		data, err := json.MarshalIndent(obj, "", "  ")
		if err != nil {
			return e.fail(ctx, Outcome{DOI: doi.String(), Attempts: attempt, Reason: fmt.Sprintf("encoding artifact: %v", err)}, dir)
		}
		if err := e.Store.WriteArtifact(dir, AnalysisFile, data); err != nil {
			return e.fail(ctx, Outcome{DOI: doi.String(), Attempts: attempt, Reason: fmt.Sprintf("writing artifact: %v", err)}, dir)
		}
		if err := e.Store.MarkExtraction(ctx, doi.String(), types.StatusSucceeded, attempt, ""); err != nil {
			slog.Warn("indexing extraction", "doi", doi.String(), "error", err)
		}
		return Outcome{DOI: doi.String(), State: StateSucceeded, Attempts: attempt}, nil
	}

	return e.fail(ctx, Outcome{
		DOI:        doi.String(),
		Attempts:   maxAttempts,
		Reason:     fmt.Sprintf("schema violations after %d attempts", maxAttempts),
		Violations: violations,
	}, dir)
}

// fail records a terminal failure: a failure record in the DOI's
// directory when one exists, and a row in the extraction index either
// way.
func (e *Engine) fail(ctx context.Context, out Outcome, dir string) (Outcome, error) {
	out.State = StateFailed

	rec := types.FailureRecord{
		DOI:      out.DOI,
		Reason:   out.Reason,
		Attempts: out.Attempts,
		FailedAt: time.Now().UTC(),
	}
	for _, v := range out.Violations {
		rec.Violations = append(rec.Violations, v.String())
	}

	if dir != "" {
		if data, err := json.MarshalIndent(rec, "", "  "); err == nil {
			if err := e.Store.WriteArtifact(dir, FailureFile, data); err != nil {
				slog.Warn("writing failure record", "doi", out.DOI, "error", err)
			}
		}
	}
	if err := e.Store.MarkExtraction(ctx, out.DOI, types.StatusFailed, out.Attempts, out.Reason); err != nil {
		slog.Warn("indexing extraction", "doi", out.DOI, "error", err)
	}
	return out, nil
}

// backoffBase controls the base duration for exponential backoff on
// transient model errors. Tests override this to avoid real sleeps.
var backoffBase = time.Second

// complete calls the model with exponential backoff on transient
// errors.
func (e *Engine) complete(ctx context.Context, system, user string) (string, error) {
	maxRetries := e.ModelRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		reply, err := e.Model.Complete(ctx, system, user)
		if err == nil {
			return reply, nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("after %d retries: %w", maxRetries, lastErr)
}

// ParseObject pulls the JSON object out of a model reply. Replies
// wrapped in code fences or prose survive: everything outside the
// outermost braces is discarded.
func ParseObject(reply string) (map[string]any, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return nil, errors.New("reply contains no JSON object")
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(reply[start:end+1]), &obj); err != nil {
		return nil, fmt.Errorf("reply is not valid JSON: %v", err)
	}
	return obj, nil
}
