// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// RunKind distinguishes the pipeline stages recorded in the run log.
type RunKind string

const (
	RunCrawl   RunKind = "crawl"
	RunExtract RunKind = "extract"
)

// RunRecord is one row of the run log kept in the cache database. Runs are
// bookkeeping only; resumability derives from the cache entries themselves.
type RunRecord struct {
	// ID is a generated unique identifier for the run.
	ID string `json:"id" yaml:"id"`

	// Kind is the stage this run executed.
	Kind RunKind `json:"kind" yaml:"kind"`

	// Query is the crawl query, empty for extract runs over explicit DOIs.
	Query string `json:"query,omitempty" yaml:"query,omitempty"`

	// StartDate and EndDate bound the crawled range (YYYY-MM-DD).
	StartDate string `json:"start_date,omitempty" yaml:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty" yaml:"end_date,omitempty"`

	// IntervalDays is the chunk size the range was partitioned with.
	IntervalDays int `json:"interval_days,omitempty" yaml:"interval_days,omitempty"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at" yaml:"started_at"`

	// FinishedAt is when the run completed; zero while still in flight.
	FinishedAt time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`

	// Succeeded and Failed count the run's work items (spans for crawl
	// runs, DOIs for extract runs).
	Succeeded int `json:"succeeded" yaml:"succeeded"`
	Failed    int `json:"failed" yaml:"failed"`
}
