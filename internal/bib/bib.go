// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package bib looks up papers in bibliographic services: keyword discovery,
// identifier and title lookup, and section-citation extraction. The crawl
// engine depends only on the interfaces here; arXiv and SerpAPI backends
// implement them.
package bib

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode"
)

// Paper is a resolved bibliographic record. Sections maps section name to
// the ordered titles cited in it and stays nil until extracted.
type Paper struct {
	Title    string              `json:"title"`
	ArxivID  string              `json:"arxiv_id"`
	Abstract string              `json:"abstract"`
	Sections map[string][]string `json:"sections,omitempty"`
	Source   string              `json:"source"`
}

// Discoverer finds candidate paper identifiers for a keyword query.
// Results are ordered by the backend's own ranking and restricted to papers
// published at or before cutoff (zero cutoff means unrestricted).
type Discoverer interface {
	ByQuery(ctx context.Context, query string, maxResults int, cutoff time.Time) ([]string, error)
}

// Searcher is the full bibliographic contract the crawl engine consumes.
// Lookup misses are reported as (nil, nil), not errors.
type Searcher interface {
	Discoverer
	ByID(ctx context.Context, id string) (*Paper, error)
	ByTitle(ctx context.Context, title string) (*Paper, error)
	Sections(ctx context.Context, id string, citePattern *regexp.Regexp) (map[string][]string, error)
}

// Composite routes keyword discovery to one backend and everything else to
// another. The usual pairing is SerpAPI discovery over arXiv content.
type Composite struct {
	Discovery Discoverer
	Content   Searcher
}

var _ Searcher = (*Composite)(nil)

func (c *Composite) ByQuery(ctx context.Context, query string, maxResults int, cutoff time.Time) ([]string, error) {
	return c.Discovery.ByQuery(ctx, query, maxResults, cutoff)
}

func (c *Composite) ByID(ctx context.Context, id string) (*Paper, error) {
	return c.Content.ByID(ctx, id)
}

func (c *Composite) ByTitle(ctx context.Context, title string) (*Paper, error) {
	return c.Content.ByTitle(ctx, title)
}

func (c *Composite) Sections(ctx context.Context, id string, citePattern *regexp.Regexp) (map[string][]string, error) {
	return c.Content.Sections(ctx, id, citePattern)
}

// versionRe matches a trailing arXiv version suffix like "v2".
var versionRe = regexp.MustCompile(`v\d+$`)

// StripVersion removes the version suffix from an arXiv identifier
// ("2301.07041v2" becomes "2301.07041").
func StripVersion(id string) string {
	return versionRe.ReplaceAllString(id, "")
}

// NormalizeTitle returns a lowercased, punctuation-stripped version of a
// title, for matching lookups against backend results.
func NormalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
