// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package crawl builds a relevance-ranked, depth-bounded citation tree for
// a research query. The engine plans search queries with a text oracle,
// discovers seed papers in parallel, and expands the best-scoring nodes
// layer by layer through their section citations.
//
// Shared state (the visited-id set, the pending-expansion queue, the tree
// and its recall lists) lives behind coarse locks that are never held
// across a backend or oracle call, so a stalled external request blocks
// only its own worker. Failures never abort the run: a worker that loses a
// dedup race, misses a lookup, or gets an oracle error drops its batch and
// the tree simply covers less.
package crawl

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pdiddy/paper-crawler/internal/bib"
	"github.com/pdiddy/paper-crawler/internal/oracle"
	"github.com/pdiddy/paper-crawler/pkg/types"
)

// recallThreshold separates relevant papers from merely crawled ones.
const recallThreshold = 0.5

// Bracket markers the oracles use in their output, and the citation pattern
// handed to the backend for section extraction.
var (
	searchRe           = regexp.MustCompile(`(?s)Search\](.*?)\[`)
	expandRe           = regexp.MustCompile(`(?s)Expand\](.*?)\[`)
	defaultCitePattern = regexp.MustCompile(`~?\\cite[tp]?\{([^}]*)\}`)
)

// Crawler runs one citation crawl. Construct with New and call Run once.
type Crawler struct {
	userQuery string
	cfg       types.CrawlConfig
	cutoff    time.Time

	prompts *oracle.PromptSet
	text    oracle.TextOracle
	score   oracle.ScoreOracle
	backend bib.Searcher

	citePattern *regexp.Regexp

	root    *types.PaperNode
	visited *visitedSet
	queue   *pendingQueue

	// mu guards the tree (child maps, extra maps) and the recall lists.
	mu            sync.Mutex
	crawlerRecall []string
	recall        []string

	w io.Writer
}

// New builds a Crawler for one user query. The writer receives progress and
// warning lines; pass io.Discard to silence it.
func New(userQuery string, cfg types.CrawlConfig, prompts *oracle.PromptSet,
	text oracle.TextOracle, score oracle.ScoreOracle, backend bib.Searcher, w io.Writer) (*Crawler, error) {

	cutoff, err := cfg.CutoffTime()
	if err != nil {
		return nil, fmt.Errorf("invalid end_date %q: %w", cfg.EndDate, err)
	}
	if w == nil {
		w = io.Discard
	}

	return &Crawler{
		userQuery:   userQuery,
		cfg:         cfg,
		cutoff:      cutoff,
		prompts:     prompts,
		text:        text,
		score:       score,
		backend:     backend,
		citePattern: defaultCitePattern,
		root:        types.NewRoot(userQuery),
		visited:     newVisitedSet(),
		queue:       newPendingQueue(),
		w:           w,
	}, nil
}

// Run executes the crawl: query planning, seed search, then expand_layers
// rounds of citation expansion. It returns the root of the citation tree
// with the bookkeeping lists filled in. Run never fails on external errors;
// they degrade to reduced coverage.
func (c *Crawler) Run(ctx context.Context) (*types.PaperNode, error) {
	queries := c.planQueries(ctx)
	fmt.Fprintf(c.w, "planned %d search queries\n", len(queries))

	c.searchPhase(ctx, queries)
	fmt.Fprintf(c.w, "seed search done: %d papers pending\n", c.queue.Len())

	for depth := 0; depth < c.cfg.ExpandLayers; depth++ {
		c.expandLayer(ctx, depth)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.root.Extra[types.ExtraTouchIDs] = c.visited.IDs()
	c.root.Extra[types.ExtraCrawlerRecall] = append([]string(nil), c.crawlerRecall...)
	c.root.Extra[types.ExtraRecall] = append([]string(nil), c.recall...)
	return c.root, nil
}

// planQueries asks the text oracle for search queries and extracts the
// bracketed "Search]...[" segments, truncated to the configured count.
// An oracle failure or an output with no markers yields no queries.
func (c *Crawler) planQueries(ctx context.Context) []string {
	prompt, err := c.prompts.GenerateQuery(c.userQuery)
	if err != nil {
		fmt.Fprintf(c.w, "warning: query prompt: %v\n", err)
		return nil
	}

	text, err := c.text.Generate(ctx, prompt)
	if err != nil {
		fmt.Fprintf(c.w, "warning: query planning failed: %v\n", err)
		return nil
	}

	return ParseQueries(text, c.cfg.SearchQueries)
}

// ParseQueries extracts up to max search queries from planner output.
func ParseQueries(text string, max int) []string {
	var queries []string
	for _, m := range searchRe.FindAllStringSubmatch(text, -1) {
		q := strings.TrimSpace(m[1])
		if q == "" {
			continue
		}
		queries = append(queries, q)
		if max > 0 && len(queries) >= max {
			break
		}
	}
	return queries
}

// searchPhase runs one worker per search query and waits for all of them.
func (c *Crawler) searchPhase(ctx context.Context, queries []string) {
	var wg sync.WaitGroup
	for _, q := range queries {
		wg.Add(1)
		go func(query string) {
			defer wg.Done()
			c.searchQuery(ctx, query)
		}(q)
	}
	wg.Wait()
}

// searchQuery is one search worker: discover identifiers for the query,
// claim and fetch the unseen ones, score the batch with one oracle call,
// then attach depth-0 nodes under the query's child list.
func (c *Crawler) searchQuery(ctx context.Context, query string) {
	c.mu.Lock()
	c.root.Child[query] = []*types.PaperNode{}
	c.mu.Unlock()

	ids, err := c.backend.ByQuery(ctx, query, c.cfg.SearchPapers, c.cutoff)
	if err != nil {
		fmt.Fprintf(c.w, "warning: search %q failed: %v\n", query, err)
		return
	}

	var papers []*bib.Paper
	for _, raw := range ids {
		id := bib.StripVersion(raw)
		if id == "" || !c.visited.Claim(id) {
			continue
		}
		paper, err := c.backend.ByID(ctx, id)
		if err != nil || paper == nil {
			continue
		}
		papers = append(papers, paper)
	}
	if len(papers) == 0 {
		return
	}

	scores, ok := c.scorePapers(ctx, papers)
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, p := range papers {
		c.recordRecall(p.Title, scores[i])
		node := types.NewPaper(p.Title, p.ArxivID, 0, p.Abstract, p.Sections,
			types.SourceSearchPrefix+p.Source, scores[i])
		c.root.Child[query] = append(c.root.Child[query], node)
		c.queue.Push(node)
	}
	fmt.Fprintf(c.w, "search %q: %d papers\n", query, len(papers))
}

// scorePapers issues one scoring call for a batch of papers. A scoring
// failure drops the whole batch and is the caller's worker aborting, not
// the run.
func (c *Crawler) scorePapers(ctx context.Context, papers []*bib.Paper) ([]float64, bool) {
	prompts := make([]string, 0, len(papers))
	for _, p := range papers {
		prompt, err := c.prompts.GetSelected(p.Title, p.Abstract, c.userQuery)
		if err != nil {
			fmt.Fprintf(c.w, "warning: selection prompt: %v\n", err)
			return nil, false
		}
		prompts = append(prompts, prompt)
	}

	scores, err := c.score.Score(ctx, prompts)
	if err != nil {
		fmt.Fprintf(c.w, "warning: scoring failed, dropping %d papers: %v\n", len(papers), err)
		return nil, false
	}
	if len(scores) != len(papers) {
		fmt.Fprintf(c.w, "warning: scorer returned %d scores for %d papers\n", len(scores), len(papers))
		return nil, false
	}
	return scores, true
}

// recordRecall appends bookkeeping for one scored title. Callers hold c.mu.
func (c *Crawler) recordRecall(title string, score float64) {
	c.crawlerRecall = append(c.crawlerRecall, title)
	if score > recallThreshold {
		c.recall = append(c.recall, title)
	}
}

// Root returns the tree root. Only call after Run has returned.
func (c *Crawler) Root() *types.PaperNode {
	return c.root
}

// sectionNames returns a node's section names in sorted order, for stable
// prompt rendering.
func sectionNames(n *types.PaperNode) []string {
	names := make([]string, 0, len(n.Sections))
	for name := range n.Sections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
