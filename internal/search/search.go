// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search queries preprint servers for DOIs matching a query
// within a date span. Backends implement the Searcher interface per the
// Strategy pattern so the crawl worker pool stays independent of any
// one server's quirks.
package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/pdiddy/toolsweep/internal/interval"
)

// Searcher queries a single preprint server. Search returns the DOIs of
// all results posted within the span, in the order the server listed
// them, without duplicates.
type Searcher interface {
	Name() string
	Search(ctx context.Context, query string, span interval.Span) ([]string, error)
}

// PermanentError marks a search failure that retrying cannot fix, such
// as a rejected query. The crawl pool fails the span immediately
// instead of burning retry attempts on it.
type PermanentError struct {
	Status int
	Msg    string
}

func (e *PermanentError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (HTTP %d)", e.Msg, e.Status)
	}
	return e.Msg
}

// IsPermanent reports whether err is (or wraps) a PermanentError.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
