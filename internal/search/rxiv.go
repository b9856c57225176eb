// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/toolsweep/internal/httputil"
	"github.com/pdiddy/toolsweep/internal/interval"
)

// rxivBaseURL is the bioRxiv search frontend. Declared as a var so
// tests can substitute an httptest server.
var rxivBaseURL = "https://www.biorxiv.org"

// maxSearchPages bounds pagination per span. With 75 results per page
// this allows 3000 DOIs; spans that dense should be crawled with a
// smaller interval instead.
const maxSearchPages = 40

// doiPattern matches a DOI anywhere in text or in a doi.org link.
var doiPattern = regexp.MustCompile(`10\.\d{4,9}/[-._;()/:a-zA-Z0-9]+`)

// RxivBackend searches bioRxiv and medRxiv through the shared Highwire
// search frontend. There is no search API; the backend requests the
// condensed result listing and scrapes DOIs out of the HTML.
type RxivBackend struct {
	Client     *http.Client
	UserAgent  string
	MaxRetries int
}

// Name returns the backend identifier.
func (b *RxivBackend) Name() string { return "biorxiv" }

// Search pages through the condensed result listing for the span and
// returns every DOI found, in listing order. Pagination stops when a
// page contributes no DOI that earlier pages did not already list; the
// frontend repeats the final page for out-of-range page numbers, so
// "nothing new" is the only reliable end marker.
func (b *RxivBackend) Search(ctx context.Context, query string, span interval.Span) ([]string, error) {
	seen := make(map[string]bool)
	var dois []string

	for page := 0; page < maxSearchPages; page++ {
		pageDOIs, err := b.fetchPage(ctx, query, span, page)
		if err != nil {
			return nil, err
		}

		added := 0
		for _, doi := range pageDOIs {
			if seen[doi] {
				continue
			}
			seen[doi] = true
			dois = append(dois, doi)
			added++
		}
		if added == 0 {
			break
		}
	}
	return dois, nil
}

func (b *RxivBackend) fetchPage(ctx context.Context, query string, span interval.Span, page int) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.pageURL(query, span, page), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if b.UserAgent != "" {
		req.Header.Set("User-Agent", b.UserAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, b.Client, req, b.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("bioRxiv search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && !httputil.Retryable(resp.StatusCode) {
			return nil, &PermanentError{Status: resp.StatusCode, Msg: "bioRxiv rejected the search"}
		}
		return nil, fmt.Errorf("bioRxiv search returned HTTP %d", resp.StatusCode)
	}

	return parseResultPage(resp.Body)
}

// pageURL builds the Highwire condensed search URL. Filters ride inside
// the path as space-separated "name:value" terms, not query parameters;
// only the page number goes in the query string.
func (b *RxivBackend) pageURL(query string, span interval.Span, page int) string {
	terms := []string{
		query,
		"jcode:medrxiv||biorxiv",
		"limit_from:" + span.Start.Format(interval.DateLayout),
		"limit_to:" + span.End.Format(interval.DateLayout),
		"numresults:75",
		"sort:relevance-rank",
		"format_result:condensed",
	}

	u := rxivBaseURL + "/search/" + url.PathEscape(strings.Join(terms, " "))
	if page > 0 {
		u += fmt.Sprintf("?page=%d", page)
	}
	return u
}

// parseResultPage extracts DOIs from a condensed result listing. The
// listing carries each DOI twice, as a doi.org link and as cite
// metadata text; scanning both survives either one changing.
func parseResultPage(body io.Reader) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parsing search results: %w", err)
	}

	seen := make(map[string]bool)
	var dois []string
	record := func(text string) {
		m := doiPattern.FindString(text)
		if m == "" {
			return
		}
		doi := strings.TrimRight(m, ".,;)")
		if !seen[doi] {
			seen[doi] = true
			dois = append(dois, doi)
		}
	}

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if strings.Contains(href, "doi.org/") {
			record(href)
		}
	})
	doc.Find(".highwire-cite-metadata-doi").Each(func(_ int, sel *goquery.Selection) {
		record(sel.Text())
	})

	return dois, nil
}
