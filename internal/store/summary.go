// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-crawler/pkg/types"
)

// RunSummary is the on-disk YAML digest of a crawl run: the query, the
// configuration that produced it, and the recall lists. The full tree lives
// in the archive; the summary is for a researcher skimming results.
type RunSummary struct {
	RunID     string            `yaml:"run_id"`
	Query     string            `yaml:"query"`
	Config    types.CrawlConfig `yaml:"config"`
	Nodes     int               `yaml:"nodes"`
	TouchIDs  []string          `yaml:"touch_ids"`
	Crawled   []string          `yaml:"crawler_recall_papers"`
	Recall    []string          `yaml:"recall_papers"`
	Timestamp time.Time         `yaml:"timestamp"`
}

// WriteRunSummary saves a YAML summary of a finished run to path.
func WriteRunSummary(path string, run *Run, cfg types.CrawlConfig) error {
	root := run.Tree
	summary := RunSummary{
		RunID:     run.ID,
		Query:     run.Query,
		Config:    cfg,
		Nodes:     run.Nodes,
		TouchIDs:  root.RootStrings(types.ExtraTouchIDs),
		Crawled:   root.RootStrings(types.ExtraCrawlerRecall),
		Recall:    root.RootStrings(types.ExtraRecall),
		Timestamp: run.CreatedAt,
	}

	data, err := yaml.Marshal(&summary)
	if err != nil {
		return fmt.Errorf("marshaling run summary: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadRunSummary loads a previously written run summary.
func ReadRunSummary(path string) (*RunSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading run summary: %w", err)
	}
	var summary RunSummary
	if err := yaml.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("parsing run summary: %w", err)
	}
	return &summary, nil
}
