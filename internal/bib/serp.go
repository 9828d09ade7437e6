// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bib

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/pdiddy/paper-crawler/internal/httputil"
	"github.com/pdiddy/paper-crawler/pkg/types"
)

// serpAPIBase is the SerpAPI search endpoint. Declared as a var so tests
// can substitute an httptest server.
var serpAPIBase = "https://serpapi.com/search"

// absURLRe pulls an arXiv identifier out of an abs/ or pdf/ result link.
var absURLRe = regexp.MustCompile(`arxiv\.org/(?:abs|pdf)/([0-9]{4}\.[0-9]{4,5}(?:v\d+)?)`)

// SerpBackend discovers arXiv identifiers through a SerpAPI Google search
// restricted to arxiv.org. It only discovers; pair it with an ArxivBackend
// through Composite for content lookups.
type SerpBackend struct {
	Client *http.Client
	APIKey string
	Cfg    types.BibConfig
}

var _ Discoverer = (*SerpBackend)(nil)

// Name returns the backend identifier used in node source tags.
func (b *SerpBackend) Name() string { return "google" }

// ByQuery runs a site-restricted Google search and returns the arXiv
// identifiers found in the result links, in rank order, up to maxResults.
// A non-zero cutoff is applied with Google's before: operator.
func (b *SerpBackend) ByQuery(ctx context.Context, query string, maxResults int, cutoff time.Time) ([]string, error) {
	q := query + " site:arxiv.org"
	if !cutoff.IsZero() {
		q += " before:" + cutoff.Format("2006-01-02")
	}

	params := url.Values{
		"engine":  {"google"},
		"q":       {q},
		"num":     {fmt.Sprintf("%d", maxResults)},
		"api_key": {b.APIKey},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serpAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", b.Cfg.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, b.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("SerpAPI request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("SerpAPI returned HTTP %d", resp.StatusCode)
	}

	var sr serpResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("parsing SerpAPI response: %w", err)
	}

	var ids []string
	seen := make(map[string]bool)
	for _, r := range sr.OrganicResults {
		m := absURLRe.FindStringSubmatch(r.Link)
		if m == nil || seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		ids = append(ids, m[1])
		if len(ids) >= maxResults {
			break
		}
	}
	return ids, nil
}

// SerpAPI JSON structures.
type serpResponse struct {
	OrganicResults []serpResult `json:"organic_results"`
}

type serpResult struct {
	Link  string `json:"link"`
	Title string `json:"title"`
}
