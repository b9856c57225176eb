// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package article

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/pdiddy/toolsweep/internal/httputil"
	"github.com/pdiddy/toolsweep/pkg/types"
)

// API bases, declared as vars so tests can substitute httptest servers.
var (
	rxivAPIBase     = "https://api.biorxiv.org"
	crossrefAPIBase = "https://api.crossref.org/works/"
)

// ErrNotFound means no metadata source knows the DOI.
var ErrNotFound = errors.New("article not found")

// rxivServers are the preprint servers sharing the details API, in
// lookup order.
var rxivServers = []string{"biorxiv", "medrxiv"}

// Client fetches article metadata and abstracts.
type Client struct {
	HTTP      *http.Client
	UserAgent string

	// MaxRetries bounds HTTP retries per request (0 means the
	// httputil default).
	MaxRetries int

	// MaxHops bounds how many published-version links Resolve follows
	// (default 3).
	MaxHops int
}

// Details looks a DOI up on the bioRxiv details API, trying each
// preprint server in turn. When a preprint has several versions the
// latest one is returned. ErrNotFound means no server knows the DOI.
func (c *Client) Details(ctx context.Context, doi DOI) (*types.Article, error) {
	for _, server := range rxivServers {
		art, err := c.detailsFrom(ctx, server, doi)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return art, nil
	}
	return nil, fmt.Errorf("%s on %s: %w", doi, strings.Join(rxivServers, " or "), ErrNotFound)
}

func (c *Client) detailsFrom(ctx context.Context, server string, doi DOI) (*types.Article, error) {
	url := fmt.Sprintf("%s/details/%s/%s", rxivAPIBase, server, doi)
	resp, err := c.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("bioRxiv details request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bioRxiv details returned HTTP %d", resp.StatusCode)
	}

	var dr rxivResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return nil, fmt.Errorf("parsing bioRxiv details: %w", err)
	}
	if len(dr.Collection) == 0 {
		return nil, ErrNotFound
	}

	// Entries are ordered oldest first; the last one is the latest
	// version of the preprint.
	entry := dr.Collection[len(dr.Collection)-1]

	art := &types.Article{
		DOI:      doi.String(),
		Title:    strings.TrimSpace(entry.Title),
		Abstract: strings.TrimSpace(entry.Abstract),
		Server:   server,
	}
	if entry.Server != "" {
		art.Server = entry.Server
	}
	for _, a := range strings.Split(entry.Authors, ";") {
		if name := strings.TrimSpace(a); name != "" {
			art.Authors = append(art.Authors, name)
		}
	}
	if t, err := time.Parse("2006-01-02", entry.Date); err == nil {
		art.Date = t
	}
	// "NA" is the API's spelling for "not published anywhere yet".
	if entry.Published != "" && entry.Published != "NA" {
		art.PublishedDOI = entry.Published
	}
	return art, nil
}

// CrossrefWork looks a DOI up on the Crossref works API. It covers the
// journal-article end of a publication chain, which the preprint
// servers know nothing about.
func (c *Client) CrossrefWork(ctx context.Context, doi DOI) (*types.Article, error) {
	resp, err := c.get(ctx, crossrefAPIBase+doi.String())
	if err != nil {
		return nil, fmt.Errorf("Crossref request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s on Crossref: %w", doi, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Crossref returned HTTP %d", resp.StatusCode)
	}

	var cr crossrefResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, fmt.Errorf("parsing Crossref response: %w", err)
	}

	art := &types.Article{
		DOI:      doi.String(),
		Abstract: stripJATS(cr.Message.Abstract),
	}
	if len(cr.Message.Title) > 0 {
		art.Title = cr.Message.Title[0]
	}
	if len(cr.Message.ContainerTitle) > 0 {
		art.Journal = cr.Message.ContainerTitle[0]
	}
	for _, a := range cr.Message.Author {
		if name := strings.TrimSpace(a.Given + " " + a.Family); name != "" {
			art.Authors = append(art.Authors, name)
		}
	}
	if len(cr.Message.Created.DateParts) > 0 && len(cr.Message.Created.DateParts[0]) >= 3 {
		parts := cr.Message.Created.DateParts[0]
		art.Date = time.Date(parts[0], time.Month(parts[1]), parts[2], 0, 0, 0, 0, time.UTC)
	}
	return art, nil
}

// Resolve looks a DOI up and follows its published-version links to
// the end of the chain. The returned article is the final version;
// Chain records every DOI visited, starting with the argument. A
// dangling link (a published DOI no source knows) stops the walk and
// returns the last article that resolved.
func (c *Client) Resolve(ctx context.Context, doi DOI) (*types.Article, error) {
	maxHops := c.MaxHops
	if maxHops <= 0 {
		maxHops = 3
	}

	current := doi
	var chain []string
	var resolved *types.Article

	for hop := 0; ; hop++ {
		art, err := c.lookup(ctx, current)
		if err != nil {
			if errors.Is(err, ErrNotFound) && resolved != nil {
				return resolved, nil
			}
			return nil, err
		}

		chain = append(chain, current.String())
		art.Chain = slices.Clone(chain)
		resolved = art

		if art.PublishedDOI == "" || hop >= maxHops {
			return resolved, nil
		}
		next, err := ParseDOI(art.PublishedDOI)
		if err != nil || slices.Contains(chain, next.String()) {
			return resolved, nil
		}
		current = next
	}
}

// lookup tries the preprint servers first, then Crossref.
func (c *Client) lookup(ctx context.Context, doi DOI) (*types.Article, error) {
	art, err := c.Details(ctx, doi)
	if errors.Is(err, ErrNotFound) {
		return c.CrossrefWork(ctx, doi)
	}
	return art, err
}

// Fetch resolves a raw DOI string and renders the text block handed to
// the extraction model. It fails when the DOI cannot be parsed, no
// source knows it, or the resolved article has no abstract; all three
// are permanent for that DOI.
func (c *Client) Fetch(ctx context.Context, rawDOI string) (*types.Article, string, error) {
	doi, err := ParseDOI(rawDOI)
	if err != nil {
		return nil, "", err
	}

	art, err := c.Resolve(ctx, doi)
	if err != nil {
		return nil, "", err
	}
	if art.Abstract == "" {
		return nil, "", fmt.Errorf("no abstract available for %s", doi)
	}
	return art, inputText(art), nil
}

// inputText renders the article fields the model analyzes.
func inputText(art *types.Article) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", art.Title)
	fmt.Fprintf(&b, "Authors: %s\n", strings.Join(art.Authors, ", "))
	if !art.Date.IsZero() {
		fmt.Fprintf(&b, "Date: %s\n", art.Date.Format("2006-01-02"))
	}
	fmt.Fprintf(&b, "\nAbstract:\n%s\n", art.Abstract)
	return b.String()
}

func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	return httputil.DoWithRetry(ctx, client, req, c.MaxRetries)
}

var (
	jatsTitleRe = regexp.MustCompile(`(?s)<jats:title[^>]*>.*?</jats:title>`)
	xmlTagRe    = regexp.MustCompile(`<[^>]*>`)
)

// stripJATS flattens the JATS XML markup Crossref abstracts arrive in.
func stripJATS(s string) string {
	s = jatsTitleRe.ReplaceAllString(s, "")
	s = xmlTagRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// bioRxiv details API JSON structures.
type rxivResponse struct {
	Collection []rxivEntry `json:"collection"`
}

type rxivEntry struct {
	DOI       string `json:"doi"`
	Title     string `json:"title"`
	Authors   string `json:"authors"`
	Date      string `json:"date"`
	Version   string `json:"version"`
	Category  string `json:"category"`
	Abstract  string `json:"abstract"`
	Published string `json:"published"`
	Server    string `json:"server"`
}

// Crossref works API JSON structures.
type crossrefResponse struct {
	Message crossrefWork `json:"message"`
}

type crossrefWork struct {
	Title          []string         `json:"title"`
	Abstract       string           `json:"abstract"`
	Author         []crossrefAuthor `json:"author"`
	Created        crossrefDate     `json:"created"`
	ContainerTitle []string         `json:"container-title"`
}

type crossrefAuthor struct {
	Given  string `json:"given"`
	Family string `json:"family"`
}

type crossrefDate struct {
	DateParts [][]int `json:"date-parts"`
}
