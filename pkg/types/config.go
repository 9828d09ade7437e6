// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by backends that make network
// requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "paper-crawler/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// CrawlConfig holds the knobs of the graph-expansion engine. All values are
// externally supplied; the engine never re-derives defaults.
type CrawlConfig struct {
	// ExpandLayers is the number of citation-expansion rounds after the
	// seed search. Depth of the final tree is at most ExpandLayers.
	ExpandLayers int `json:"expand_layers" yaml:"expand_layers"`

	// SearchQueries caps how many search queries the planner keeps from
	// the oracle's output.
	SearchQueries int `json:"search_queries" yaml:"search_queries"`

	// SearchPapers caps how many identifiers each search query requests
	// from the discovery backend.
	SearchPapers int `json:"search_papers" yaml:"search_papers"`

	// ExpandPapers caps how many pending nodes are expanded per layer
	// after the unbounded seed layer.
	ExpandPapers int `json:"expand_papers" yaml:"expand_papers"`

	// ThreadsNum is the worker count for the content-fetch and expansion
	// pools. The inner citation-resolution pool runs at three times this.
	ThreadsNum int `json:"threads_num" yaml:"threads_num"`

	// EndDate is the publication cutoff (YYYYMMDD). Papers at or before
	// this date are eligible; later ones are excluded from discovery.
	EndDate string `json:"end_date" yaml:"end_date"`

	// PromptsPath is the YAML file holding the named prompt-template set.
	PromptsPath string `json:"prompts_path" yaml:"prompts_path"`
}

// CutoffTime parses EndDate into a time.Time. A zero time is returned when
// EndDate is empty, which backends treat as no cutoff.
func (c CrawlConfig) CutoffTime() (time.Time, error) {
	if c.EndDate == "" {
		return time.Time{}, nil
	}
	return time.Parse("20060102", c.EndDate)
}

// OracleConfig holds settings for one oracle role (crawler or selector).
// BaseURL points at any OpenAI-compatible chat-completions endpoint, so
// self-hosted models work.
type OracleConfig struct {
	// Model is the model identifier served at BaseURL.
	Model string `json:"model" yaml:"model"`

	// BaseURL is the API base (e.g. "http://localhost:8000/v1"). Empty
	// means the library default.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// APIKey authenticates against the endpoint.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
}

// BibConfig holds settings for the bibliographic backends.
type BibConfig struct {
	HTTPConfig `yaml:",inline"`

	// SerpAPIKey enables the SerpAPI discovery backend when set; with an
	// empty key discovery falls back to the arXiv API.
	SerpAPIKey string `json:"serpapi_key,omitempty" yaml:"serpapi_key,omitempty"`
}

// StoreConfig holds settings for the run archive.
type StoreConfig struct {
	// RunsDir is the directory containing the runs database and exports.
	RunsDir string `json:"runs_dir" yaml:"runs_dir"`
}

// Config groups all component configurations for the CLI.
type Config struct {
	Crawl    CrawlConfig  `json:"crawl" yaml:"crawl"`
	Crawler  OracleConfig `json:"crawler" yaml:"crawler"`
	Selector OracleConfig `json:"selector" yaml:"selector"`
	Bib      BibConfig    `json:"bib" yaml:"bib"`
	Store    StoreConfig  `json:"store" yaml:"store"`
}
