// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the paper-crawler CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/paper-crawler/internal/secrets"
	"github.com/pdiddy/paper-crawler/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// secretDefault returns fallback when set, otherwise the secret value for
// key if one was loaded.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedSecrets[key]; ok {
		return v
	}
	return ""
}

// rootCmd is the base command for the paper-crawler CLI.
var rootCmd = &cobra.Command{
	Use:   "paper-crawler",
	Short: "Relevance-ranked citation graph crawler for research queries",
	Long: `paper-crawler answers a research query by building a citation tree: it plans
search queries with a crawler model, discovers seed papers, scores them with a
selector model, and recursively expands the most relevant ones through their
section citations, up to a fixed number of hops.

Finished runs are archived in a local SQLite database and can be listed,
inspected, and exported as JSON tree records.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./paper-crawler.yaml or ~/.config/paper-crawler/config.yaml)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("paper-crawler")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "paper-crawler"))
		}
	}

	viper.SetEnvPrefix("PAPER_CRAWLER")
	viper.AutomaticEnv()

	viper.SetDefault("crawl.expand_layers", 2)
	viper.SetDefault("crawl.search_queries", 5)
	viper.SetDefault("crawl.search_papers", 10)
	viper.SetDefault("crawl.expand_papers", 20)
	viper.SetDefault("crawl.threads_num", 20)
	viper.SetDefault("crawl.end_date", time.Now().Format("20060102"))
	viper.SetDefault("crawl.prompts_path", "prompts/agent_prompts.yaml")
	viper.SetDefault("bib.timeout", 30*time.Second)
	viper.SetDefault("bib.user_agent", "paper-crawler/0.1")
	viper.SetDefault("store.runs_dir", "runs")

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig assembles the typed configuration from viper state, with API
// keys falling back to the .secrets/ directory.
func loadConfig() types.Config {
	cfg := types.Config{
		Crawl: types.CrawlConfig{
			ExpandLayers:  viper.GetInt("crawl.expand_layers"),
			SearchQueries: viper.GetInt("crawl.search_queries"),
			SearchPapers:  viper.GetInt("crawl.search_papers"),
			ExpandPapers:  viper.GetInt("crawl.expand_papers"),
			ThreadsNum:    viper.GetInt("crawl.threads_num"),
			EndDate:       viper.GetString("crawl.end_date"),
			PromptsPath:   viper.GetString("crawl.prompts_path"),
		},
		Crawler: types.OracleConfig{
			Model:   viper.GetString("crawler.model"),
			BaseURL: viper.GetString("crawler.base_url"),
			APIKey:  secretDefault("openai-api-key", viper.GetString("crawler.api_key")),
		},
		Selector: types.OracleConfig{
			Model:   viper.GetString("selector.model"),
			BaseURL: viper.GetString("selector.base_url"),
			APIKey:  secretDefault("openai-api-key", viper.GetString("selector.api_key")),
		},
		Bib: types.BibConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("bib.timeout"),
				UserAgent: viper.GetString("bib.user_agent"),
			},
			SerpAPIKey: secretDefault("serpapi-api-key", viper.GetString("bib.serpapi_key")),
		},
		Store: types.StoreConfig{
			RunsDir: viper.GetString("store.runs_dir"),
		},
	}
	return cfg
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
