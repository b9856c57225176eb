// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// ExtractionStatus tracks where a DOI sits in the extraction index.
type ExtractionStatus string

const (
	StatusPending   ExtractionStatus = "pending"
	StatusSucceeded ExtractionStatus = "succeeded"
	StatusFailed    ExtractionStatus = "failed"
)

// FailureRecord is the durable account of one DOI whose extraction ended
// in failure. It is written next to where the artifact would have gone so
// successes and failures are never conflated.
type FailureRecord struct {
	// DOI identifies the failed article.
	DOI string `json:"doi" yaml:"doi"`

	// Reason is a one-line description of the terminal failure.
	Reason string `json:"reason" yaml:"reason"`

	// Attempts is the number of model calls spent before giving up.
	// Zero when the failure happened before any model call.
	Attempts int `json:"attempts" yaml:"attempts"`

	// Violations lists the schema violations from the last rejected
	// attempt, empty for non-validation failures.
	Violations []string `json:"violations,omitempty" yaml:"violations,omitempty"`

	// FailedAt is when the terminal state was reached.
	FailedAt time.Time `json:"failed_at" yaml:"failed_at"`
}
