// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package article resolves DOIs to article records with abstracts. It
// looks preprints up on the bioRxiv details API, falls back to
// Crossref for everything else, and follows preprint-to-journal
// publication links so the extraction stage sees the final version of
// a paper.
package article

import (
	"fmt"
	"strings"
)

// DOI is a parsed document identifier, split at the first slash into
// registrant prefix and suffix.
type DOI struct {
	prefix string
	suffix string
}

// linkPrefixes are the decorations stripped before parsing. Search
// listings and metadata records mix bare DOIs with URL and "doi:"
// forms freely.
var linkPrefixes = []string{
	"https://doi.org/",
	"http://doi.org/",
	"https://dx.doi.org/",
	"http://dx.doi.org/",
	"doi.org/",
	"doi:",
}

// ParseDOI parses a DOI in bare, URL, or "doi:" form.
func ParseDOI(raw string) (DOI, error) {
	s := strings.TrimSpace(raw)
	for _, p := range linkPrefixes {
		if rest, ok := strings.CutPrefix(s, p); ok {
			s = rest
			break
		}
	}

	prefix, suffix, ok := strings.Cut(s, "/")
	if !ok || suffix == "" {
		return DOI{}, fmt.Errorf("malformed DOI %q: missing suffix", raw)
	}
	if !strings.HasPrefix(prefix, "10.") || len(prefix) < 4 {
		return DOI{}, fmt.Errorf("malformed DOI %q: prefix must start with \"10.\"", raw)
	}
	return DOI{prefix: prefix, suffix: suffix}, nil
}

// String returns the canonical bare form, "prefix/suffix".
func (d DOI) String() string {
	return d.prefix + "/" + d.suffix
}

// Prefix returns the registrant prefix (e.g. "10.1101").
func (d DOI) Prefix() string {
	return d.prefix
}

// Suffix returns the part after the first slash.
func (d DOI) Suffix() string {
	return d.suffix
}

// Dir returns the DOI's artifact directory relative to the cache root:
// prefix/suffix with any further slashes in the suffix flattened to
// underscores, so one DOI maps to exactly one directory.
func (d DOI) Dir() string {
	return d.prefix + "/" + strings.ReplaceAll(d.suffix, "/", "_")
}
