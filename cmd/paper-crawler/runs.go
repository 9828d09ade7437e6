// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-crawler/internal/store"
	"github.com/pdiddy/paper-crawler/pkg/types"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect archived crawl runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := store.Open(loadConfig().Store)
		if err != nil {
			return err
		}
		defer s.Close()

		runs, err := s.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stdout, "No runs archived.")
			return nil
		}

		fmt.Fprintf(os.Stdout, "%-36s  %-19s  %-6s  %-7s  %-6s  %s\n",
			"ID", "Created", "Nodes", "Touched", "Recall", "Query")
		for _, run := range runs {
			query := run.Query
			if len(query) > 50 {
				query = query[:47] + "..."
			}
			fmt.Fprintf(os.Stdout, "%-36s  %-19s  %-6d  %-7d  %-6d  %s\n",
				run.ID, run.CreatedAt.Format(time.DateTime), run.Nodes, run.Touched, run.Recall, query)
		}
		return nil
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run's recall lists and tree shape",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := store.Open(loadConfig().Store)
		if err != nil {
			return err
		}
		defer s.Close()

		run, err := s.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "query:   %s\n", run.Query)
		fmt.Fprintf(os.Stdout, "created: %s\n", run.CreatedAt.Format(time.DateTime))
		fmt.Fprintf(os.Stdout, "nodes:   %d\n", run.Nodes)
		fmt.Fprintf(os.Stdout, "touched: %d\n", run.Touched)

		recalled := run.Tree.RootStrings(types.ExtraRecall)
		fmt.Fprintf(os.Stdout, "recalled papers (%d):\n", len(recalled))
		for _, title := range recalled {
			fmt.Fprintf(os.Stdout, "  %s\n", title)
		}

		depths := map[int]int{}
		run.Tree.Walk(func(n *types.PaperNode) {
			if n.Depth >= 0 {
				depths[n.Depth]++
			}
		})
		for depth := 0; ; depth++ {
			count, ok := depths[depth]
			if !ok {
				break
			}
			fmt.Fprintf(os.Stdout, "depth %d: %d papers\n", depth, count)
		}
		return nil
	},
}

var runsExportCmd = &cobra.Command{
	Use:   "export <run-id> <path>",
	Short: "Export a run's tree record as JSON",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := store.Open(loadConfig().Store)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.ExportJSON(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "tree written to %s\n", args[1])
		return nil
	},
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete a run from the archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := store.Open(loadConfig().Store)
		if err != nil {
			return err
		}
		defer s.Close()
		return s.Delete(cmd.Context(), args[0])
	},
}

func init() {
	runsCmd.AddCommand(runsListCmd, runsShowCmd, runsExportCmd, runsDeleteCmd)
	rootCmd.AddCommand(runsCmd)
}
