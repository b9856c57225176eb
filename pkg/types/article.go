// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the data records shared between pipeline stages.
package types

import "time"

// Article holds the resolved metadata for one DOI. Records are written as
// meta.yaml into the per-DOI cache directory and joined back during sweep
// consolidation.
type Article struct {
	// DOI is the canonical identifier, e.g. "10.1101/2023.01.02.522634".
	DOI string `json:"doi" yaml:"doi"`

	// Title is the article title.
	Title string `json:"title" yaml:"title"`

	// Authors lists author display names in publication order.
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// Date is the publication (or posting) date.
	Date time.Time `json:"date,omitempty" yaml:"date,omitempty"`

	// Server names the preprint server that hosts the article
	// ("biorxiv" or "medrxiv"), empty for journal records.
	Server string `json:"server,omitempty" yaml:"server,omitempty"`

	// Journal is the container title for published records.
	Journal string `json:"journal,omitempty" yaml:"journal,omitempty"`

	// Abstract is the article abstract, used as extraction input.
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// PublishedDOI points at the journal version of a preprint, when the
	// hosting server reports one. Empty for terminal records.
	PublishedDOI string `json:"published_doi,omitempty" yaml:"published_doi,omitempty"`

	// Chain lists every DOI walked while resolving this record,
	// preprint first.
	Chain []string `json:"chain,omitempty" yaml:"chain,omitempty"`
}
