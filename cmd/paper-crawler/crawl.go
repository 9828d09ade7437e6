// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-crawler/internal/bib"
	"github.com/pdiddy/paper-crawler/internal/crawl"
	"github.com/pdiddy/paper-crawler/internal/oracle"
	"github.com/pdiddy/paper-crawler/internal/store"
	"github.com/pdiddy/paper-crawler/pkg/types"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Build a citation tree for a research query",
	Long: `Crawl plans search queries for the research question, discovers seed papers,
and expands the most relevant ones through their section citations. The
finished tree is archived and can optionally be exported as a JSON record.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		query, _ := cmd.Flags().GetString("query")
		if query == "" {
			return fmt.Errorf("query is empty: provide a research question with --query")
		}

		cfg := loadConfig()
		applyCrawlFlags(cmd, &cfg.Crawl)

		prompts, err := oracle.LoadPromptSet(cfg.Crawl.PromptsPath)
		if err != nil {
			return err
		}

		crawler := oracle.NewChatOracle(cfg.Crawler)
		selector := oracle.NewChatOracle(cfg.Selector)

		client := &http.Client{Timeout: cfg.Bib.Timeout}
		var backend bib.Searcher
		arxiv := &bib.ArxivBackend{Client: client, Cfg: cfg.Bib}
		if cfg.Bib.SerpAPIKey != "" {
			backend = &bib.Composite{
				Discovery: &bib.SerpBackend{Client: client, APIKey: cfg.Bib.SerpAPIKey, Cfg: cfg.Bib},
				Content:   arxiv,
			}
		} else {
			backend = arxiv
		}

		engine, err := crawl.New(query, cfg.Crawl, prompts, crawler, selector, backend, os.Stderr)
		if err != nil {
			return err
		}

		root, err := engine.Run(cmd.Context())
		if err != nil {
			return err
		}

		s, err := store.Open(cfg.Store)
		if err != nil {
			return err
		}
		defer s.Close()

		run, err := s.Save(cmd.Context(), cfg.Crawl, root)
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "run %s: %d nodes, %d touched, %d recalled\n",
			run.ID, run.Nodes, run.Touched, run.Recall)

		if out, _ := cmd.Flags().GetString("output"); out != "" {
			if err := s.ExportJSON(cmd.Context(), run.ID, out); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "tree written to %s\n", out)
		}
		if summaryPath, _ := cmd.Flags().GetString("summary"); summaryPath != "" {
			if err := store.WriteRunSummary(summaryPath, run, cfg.Crawl); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "summary written to %s\n", summaryPath)
		}
		return nil
	},
}

// applyCrawlFlags overrides config values with any flags the user set.
func applyCrawlFlags(cmd *cobra.Command, cfg *types.CrawlConfig) {
	if cmd.Flags().Changed("expand-layers") {
		cfg.ExpandLayers, _ = cmd.Flags().GetInt("expand-layers")
	}
	if cmd.Flags().Changed("search-queries") {
		cfg.SearchQueries, _ = cmd.Flags().GetInt("search-queries")
	}
	if cmd.Flags().Changed("search-papers") {
		cfg.SearchPapers, _ = cmd.Flags().GetInt("search-papers")
	}
	if cmd.Flags().Changed("expand-papers") {
		cfg.ExpandPapers, _ = cmd.Flags().GetInt("expand-papers")
	}
	if cmd.Flags().Changed("threads") {
		cfg.ThreadsNum, _ = cmd.Flags().GetInt("threads")
	}
	if cmd.Flags().Changed("end-date") {
		cfg.EndDate, _ = cmd.Flags().GetString("end-date")
	}
	if cmd.Flags().Changed("prompts") {
		cfg.PromptsPath, _ = cmd.Flags().GetString("prompts")
	}
}

func init() {
	crawlCmd.Flags().String("query", "", "research question to crawl")
	crawlCmd.Flags().Int("expand-layers", 2, "citation-expansion rounds after the seed search")
	crawlCmd.Flags().Int("search-queries", 5, "maximum planned search queries")
	crawlCmd.Flags().Int("search-papers", 10, "papers requested per search query")
	crawlCmd.Flags().Int("expand-papers", 20, "papers expanded per layer after the seed layer")
	crawlCmd.Flags().Int("threads", 20, "worker count for fetch and expansion pools")
	crawlCmd.Flags().String("end-date", "", "publication cutoff (YYYYMMDD)")
	crawlCmd.Flags().String("prompts", "", "prompt-template YAML file")
	crawlCmd.Flags().String("output", "", "write the tree record JSON to this path")
	crawlCmd.Flags().String("summary", "", "write a YAML run summary to this path")

	rootCmd.AddCommand(crawlCmd)
}
