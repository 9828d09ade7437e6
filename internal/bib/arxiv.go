// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bib

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/pdiddy/paper-crawler/internal/httputil"
	"github.com/pdiddy/paper-crawler/pkg/types"
)

// arXiv endpoints. Declared as vars so tests can substitute httptest servers.
var (
	arxivAPIBase    = "https://export.arxiv.org/api/query"
	arxivSourceBase = "https://export.arxiv.org/e-print/"
)

// byTitleCandidates is how many results a title lookup fetches before
// matching on normalized titles.
const byTitleCandidates = 3

// ArxivBackend implements the full Searcher contract against the arXiv
// Atom API and e-print source archive.
type ArxivBackend struct {
	Client *http.Client
	Cfg    types.BibConfig
}

var _ Searcher = (*ArxivBackend)(nil)

// Name returns the backend identifier used in node source tags.
func (b *ArxivBackend) Name() string { return "arxiv" }

// ByQuery searches arXiv for the keyword query and returns up to maxResults
// identifiers, most relevant first. A non-zero cutoff restricts results to
// submissions at or before that date.
func (b *ArxivBackend) ByQuery(ctx context.Context, query string, maxResults int, cutoff time.Time) ([]string, error) {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return nil, fmt.Errorf("empty arXiv query")
	}

	search := "all:" + strings.Join(terms, "+")
	if !cutoff.IsZero() {
		search += fmt.Sprintf("+AND+submittedDate:[190001010000+TO+%s2359]", cutoff.Format("200601021504"))
	}

	feed, err := b.fetchFeed(ctx, fmt.Sprintf(
		"%s?search_query=%s&start=0&max_results=%d&sortBy=relevance&sortOrder=descending",
		arxivAPIBase, url.PathEscape(search), maxResults))
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, entry := range feed.Entries {
		if id := extractArxivID(entry.ID); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// ByID fetches full paper details for one identifier. A miss is (nil, nil).
func (b *ArxivBackend) ByID(ctx context.Context, id string) (*Paper, error) {
	feed, err := b.fetchFeed(ctx, fmt.Sprintf("%s?id_list=%s&max_results=1", arxivAPIBase, url.QueryEscape(id)))
	if err != nil {
		return nil, err
	}
	if len(feed.Entries) == 0 {
		return nil, nil
	}
	return entryToPaper(feed.Entries[0]), nil
}

// ByTitle resolves a cited title to a paper. It searches the title field
// and accepts the first candidate whose normalized title matches exactly;
// anything else is a miss (nil, nil).
func (b *ArxivBackend) ByTitle(ctx context.Context, title string) (*Paper, error) {
	want := NormalizeTitle(title)
	if want == "" {
		return nil, nil
	}

	search := `ti:"` + strings.Join(strings.Fields(title), "+") + `"`
	feed, err := b.fetchFeed(ctx, fmt.Sprintf("%s?search_query=%s&start=0&max_results=%d",
		arxivAPIBase, url.PathEscape(search), byTitleCandidates))
	if err != nil {
		return nil, err
	}

	for _, entry := range feed.Entries {
		if NormalizeTitle(entry.Title) == want {
			return entryToPaper(entry), nil
		}
	}
	return nil, nil
}

// Sections downloads the paper's LaTeX source and extracts the cited titles
// per section using citePattern. An unavailable or unparseable source
// yields an empty map, which the engine treats as a content-fetch failure.
func (b *ArxivBackend) Sections(ctx context.Context, id string, citePattern *regexp.Regexp) (map[string][]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, arxivSourceBase+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("creating source request: %w", err)
	}
	req.Header.Set("User-Agent", b.Cfg.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, b.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("fetching source for %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return map[string][]string{}, nil
	}

	src, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading source for %s: %w", id, err)
	}

	return ParseSections(string(src), citePattern), nil
}

// fetchFeed performs an arXiv API request and decodes the Atom feed.
func (b *ArxivBackend) fetchFeed(ctx context.Context, reqURL string) (*arxivFeed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", b.Cfg.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, b.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arXiv API returned HTTP %d", resp.StatusCode)
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("parsing arXiv response: %w", err)
	}
	return &feed, nil
}

func entryToPaper(entry arxivEntry) *Paper {
	return &Paper{
		Title:    strings.Join(strings.Fields(entry.Title), " "),
		ArxivID:  StripVersion(extractArxivID(entry.ID)),
		Abstract: strings.TrimSpace(entry.Summary),
		Source:   "arxiv",
	}
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID        string `xml:"id"`
	Title     string `xml:"title"`
	Summary   string `xml:"summary"`
	Published string `xml:"published"`
}

// extractArxivID pulls the arXiv ID from the entry's <id> URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" -> "2301.07041v1").
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	return idURL[idx+len(prefix):]
}
