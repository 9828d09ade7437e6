// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package crawl

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/paper-crawler/internal/bib"
	"github.com/pdiddy/paper-crawler/internal/oracle"
	"github.com/pdiddy/paper-crawler/pkg/types"
)

// --- test doubles ---

// mockText returns a fixed planner output and echoes a fixed expansion
// choice for every batched prompt.
type mockText struct {
	planOutput   string
	planErr      error
	expandOutput string
	batchErr     error
}

func (m *mockText) Generate(_ context.Context, _ string) (string, error) {
	return m.planOutput, m.planErr
}

func (m *mockText) GenerateBatch(_ context.Context, prompts []string) ([]string, error) {
	if m.batchErr != nil {
		return nil, m.batchErr
	}
	out := make([]string, len(prompts))
	for i := range out {
		out[i] = m.expandOutput
	}
	return out, nil
}

// mockScore scores each prompt by the first title substring it contains,
// falling back to a default.
type mockScore struct {
	byTitle      map[string]float64
	defaultScore float64
	err          error
}

func (m *mockScore) Score(_ context.Context, prompts []string) ([]float64, error) {
	if m.err != nil {
		return nil, m.err
	}
	scores := make([]float64, len(prompts))
	for i, p := range prompts {
		scores[i] = m.defaultScore
		for title, s := range m.byTitle {
			if strings.Contains(p, title) {
				scores[i] = s
				break
			}
		}
	}
	return scores, nil
}

// mockBackend serves canned bibliographic data.
type mockBackend struct {
	queries  map[string][]string            // query -> ids
	papers   map[string]*bib.Paper          // id -> paper
	titles   map[string]*bib.Paper          // title -> paper
	sections map[string]map[string][]string // id -> extracted sections
}

func (m *mockBackend) ByQuery(_ context.Context, query string, maxResults int, _ time.Time) ([]string, error) {
	ids := m.queries[query]
	if len(ids) > maxResults {
		ids = ids[:maxResults]
	}
	return ids, nil
}

func (m *mockBackend) ByID(_ context.Context, id string) (*bib.Paper, error) {
	return m.papers[id], nil
}

func (m *mockBackend) ByTitle(_ context.Context, title string) (*bib.Paper, error) {
	return m.titles[title], nil
}

func (m *mockBackend) Sections(_ context.Context, id string, _ *regexp.Regexp) (map[string][]string, error) {
	if s, ok := m.sections[id]; ok {
		return s, nil
	}
	return map[string][]string{}, nil
}

func testPrompts(t *testing.T) *oracle.PromptSet {
	t.Helper()
	ps, err := oracle.ParsePromptSet([]byte(`
generate_query: "plan searches for {{.UserQuery}}"
get_selected: "score [{{.Title}}] against {{.UserQuery}}"
select_section: "pick sections of [{{.Title}}] from {{.Sections}}"
`))
	if err != nil {
		t.Fatalf("ParsePromptSet: %v", err)
	}
	return ps
}

func paper(title, id string) *bib.Paper {
	return &bib.Paper{Title: title, ArxivID: id, Abstract: "abstract of " + title, Source: "arxiv"}
}

func testCfg() types.CrawlConfig {
	return types.CrawlConfig{
		ExpandLayers:  0,
		SearchQueries: 5,
		SearchPapers:  10,
		ExpandPapers:  20,
		ThreadsNum:    4,
	}
}

func newTestCrawler(t *testing.T, cfg types.CrawlConfig, text *mockText, score *mockScore, backend bib.Searcher) *Crawler {
	t.Helper()
	c, err := New("test query", cfg, testPrompts(t), text, score, backend, io.Discard)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

// --- query planning ---

func TestParseQueries(t *testing.T) {
	tests := []struct {
		name string
		text string
		max  int
		want []string
	}{
		{"two queries", "Search]alpha[ then Search]beta[", 5, []string{"alpha", "beta"}},
		{"truncated", "Search]a[Search]b[Search]c[", 2, []string{"a", "b"}},
		{"multiline body", "Search]graph\nneural networks[", 5, []string{"graph\nneural networks"}},
		{"no markers", "nothing to see", 5, nil},
		{"empty segment skipped", "Search]  [Search]real[", 5, []string{"real"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseQueries(tt.text, tt.max)
			if len(got) != len(tt.want) {
				t.Fatalf("ParseQueries() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("query %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

// --- seed search ---

func TestSearchDeduplicatesAcrossQueries(t *testing.T) {
	backend := &mockBackend{
		queries: map[string][]string{
			"q1": {"A", "B"},
			"q2": {"B", "C"},
		},
		papers: map[string]*bib.Paper{
			"A": paper("Paper A", "A"),
			"B": paper("Paper B", "B"),
			"C": paper("Paper C", "C"),
		},
	}
	text := &mockText{planOutput: "Search]q1[ Search]q2["}
	score := &mockScore{defaultScore: 0.9}

	cfg := testCfg()
	cfg.SearchPapers = 2
	c := newTestCrawler(t, cfg, text, score, backend)

	root, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	touched := root.RootStrings(types.ExtraTouchIDs)
	if len(touched) != 3 {
		t.Fatalf("touch_ids = %v, want 3 entries", touched)
	}
	want := map[string]bool{"A": true, "B": true, "C": true}
	for _, id := range touched {
		if !want[id] {
			t.Errorf("unexpected touch id %q", id)
		}
	}

	// B must appear exactly once across the whole tree.
	seen := map[string]int{}
	root.Walk(func(n *types.PaperNode) {
		if n.ArxivID != "" {
			seen[n.ArxivID]++
		}
	})
	for id, count := range seen {
		if count != 1 {
			t.Errorf("arxiv id %s appears %d times, want 1", id, count)
		}
	}
	if len(seen) != 3 {
		t.Errorf("distinct papers = %d, want 3", len(seen))
	}
}

func TestSearchVersionSuffixStripped(t *testing.T) {
	backend := &mockBackend{
		queries: map[string][]string{"q1": {"2301.07041v2"}},
		papers:  map[string]*bib.Paper{"2301.07041": paper("Paper A", "2301.07041")},
	}
	text := &mockText{planOutput: "Search]q1["}
	c := newTestCrawler(t, testCfg(), text, &mockScore{defaultScore: 0.9}, backend)

	root, _ := c.Run(context.Background())
	touched := root.RootStrings(types.ExtraTouchIDs)
	if len(touched) != 1 || touched[0] != "2301.07041" {
		t.Errorf("touch_ids = %v, want [2301.07041]", touched)
	}
}

func TestSearchSeedsAreDepthZero(t *testing.T) {
	backend := &mockBackend{
		queries: map[string][]string{"q1": {"A"}},
		papers:  map[string]*bib.Paper{"A": paper("Paper A", "A")},
	}
	text := &mockText{planOutput: "Search]q1["}
	c := newTestCrawler(t, testCfg(), text, &mockScore{defaultScore: 0.6}, backend)

	root, _ := c.Run(context.Background())
	seeds := root.Child["q1"]
	if len(seeds) != 1 {
		t.Fatalf("len(child[q1]) = %d, want 1", len(seeds))
	}
	if seeds[0].Depth != 0 {
		t.Errorf("seed depth = %d, want 0", seeds[0].Depth)
	}
	if seeds[0].Source != "Search:arxiv" {
		t.Errorf("seed source = %q, want Search:arxiv", seeds[0].Source)
	}
}

func TestRecallThreshold(t *testing.T) {
	backend := &mockBackend{
		queries: map[string][]string{"q1": {"A", "B"}},
		papers: map[string]*bib.Paper{
			"A": paper("Relevant Paper", "A"),
			"B": paper("Marginal Paper", "B"),
		},
	}
	text := &mockText{planOutput: "Search]q1["}
	score := &mockScore{byTitle: map[string]float64{
		"Relevant Paper": 0.9,
		"Marginal Paper": 0.3,
	}}
	c := newTestCrawler(t, testCfg(), text, score, backend)

	root, _ := c.Run(context.Background())
	crawled := root.RootStrings(types.ExtraCrawlerRecall)
	recalled := root.RootStrings(types.ExtraRecall)

	if len(crawled) != 2 {
		t.Errorf("crawler_recall_papers = %v, want 2 entries", crawled)
	}
	if len(recalled) != 1 || recalled[0] != "Relevant Paper" {
		t.Errorf("recall_papers = %v, want [Relevant Paper]", recalled)
	}
}

func TestScoringFailureDropsWorkerBatch(t *testing.T) {
	backend := &mockBackend{
		queries: map[string][]string{"q1": {"A"}},
		papers:  map[string]*bib.Paper{"A": paper("Paper A", "A")},
	}
	text := &mockText{planOutput: "Search]q1["}
	score := &mockScore{err: fmt.Errorf("oracle down")}
	c := newTestCrawler(t, testCfg(), text, score, backend)

	root, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run should not fail on oracle errors: %v", err)
	}
	if len(root.Child["q1"]) != 0 {
		t.Errorf("nodes attached despite scoring failure: %v", root.Child["q1"])
	}
	// The id was still claimed before scoring.
	if touched := root.RootStrings(types.ExtraTouchIDs); len(touched) != 1 {
		t.Errorf("touch_ids = %v, want the claimed id", touched)
	}
}

func TestPlannerFailureYieldsEmptyTree(t *testing.T) {
	text := &mockText{planErr: fmt.Errorf("oracle down")}
	c := newTestCrawler(t, testCfg(), text, &mockScore{}, &mockBackend{})

	root, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(root.Child) != 0 {
		t.Errorf("child map = %v, want empty", root.Child)
	}
}

// --- expansion ---

func TestExpandAttachesResolvedCitations(t *testing.T) {
	seed := paper("Seed Paper", "A")
	seed.Sections = map[string][]string{"Related Work": {"P", "Q"}}

	backend := &mockBackend{
		queries: map[string][]string{"q1": {"A"}},
		papers:  map[string]*bib.Paper{"A": seed},
		titles: map[string]*bib.Paper{
			"P": paper("P", "p1"),
			// Q is a lookup miss.
		},
	}
	text := &mockText{
		planOutput:   "Search]q1[",
		expandOutput: "Expand]Related Work[",
	}
	score := &mockScore{defaultScore: 0.7}

	cfg := testCfg()
	cfg.ExpandLayers = 1
	c := newTestCrawler(t, cfg, text, score, backend)

	root, _ := c.Run(context.Background())
	node := root.Child["q1"][0]

	if len(node.Child) != 1 {
		t.Fatalf("child keys = %d, want exactly 1", len(node.Child))
	}
	children := node.Child["Related Work"]
	if len(children) != 1 {
		t.Fatalf("children under Related Work = %d, want 1 (P resolves, Q misses)", len(children))
	}
	child := children[0]
	if child.Title != "P" || child.Depth != 1 {
		t.Errorf("child = %q depth %d, want P at depth 1", child.Title, child.Depth)
	}
	if child.Source != "Expand:arxiv" {
		t.Errorf("child source = %q, want Expand:arxiv", child.Source)
	}
	if got := node.ExpandStatus(); got != types.StatusSuccess {
		t.Errorf("parent expand status = %q, want %q", got, types.StatusSuccess)
	}
}

func TestExpandUnknownSectionIgnored(t *testing.T) {
	seed := paper("Seed Paper", "A")
	seed.Sections = map[string][]string{"Methods": {"P"}}

	backend := &mockBackend{
		queries: map[string][]string{"q1": {"A"}},
		papers:  map[string]*bib.Paper{"A": seed},
		titles:  map[string]*bib.Paper{"P": paper("P", "p1")},
	}
	text := &mockText{
		planOutput:   "Search]q1[",
		expandOutput: "Expand]Nonexistent Section[",
	}

	cfg := testCfg()
	cfg.ExpandLayers = 1
	c := newTestCrawler(t, cfg, text, &mockScore{defaultScore: 0.9}, backend)

	root, _ := c.Run(context.Background())
	node := root.Child["q1"][0]
	if len(node.Child) != 0 {
		t.Errorf("children attached for unknown section: %v", node.Child)
	}
	if got := node.ExpandStatus(); got != types.StatusNotExpanded {
		t.Errorf("expand status = %q, want %q", got, types.StatusNotExpanded)
	}
}

func TestFetchErrorIsTerminal(t *testing.T) {
	// Seed has no section data and the backend extracts nothing.
	backend := &mockBackend{
		queries:  map[string][]string{"q1": {"A"}},
		papers:   map[string]*bib.Paper{"A": paper("Seed Paper", "A")},
		sections: map[string]map[string][]string{},
	}
	text := &mockText{planOutput: "Search]q1[", expandOutput: "Expand]Anything["}

	cfg := testCfg()
	cfg.ExpandLayers = 2
	c := newTestCrawler(t, cfg, text, &mockScore{defaultScore: 0.9}, backend)

	root, _ := c.Run(context.Background())
	node := root.Child["q1"][0]
	if got := node.ExpandStatus(); got != types.StatusFetchError {
		t.Errorf("expand status = %q, want %q", got, types.StatusFetchError)
	}
	if len(node.Child) != 0 {
		t.Errorf("fetch-error node gained children: %v", node.Child)
	}
}

func TestFetchFillsMissingSections(t *testing.T) {
	backend := &mockBackend{
		queries: map[string][]string{"q1": {"A"}},
		papers:  map[string]*bib.Paper{"A": paper("Seed Paper", "A")},
		sections: map[string]map[string][]string{
			"A": {"Related Work": {"P"}},
		},
		titles: map[string]*bib.Paper{"P": paper("P", "p1")},
	}
	text := &mockText{planOutput: "Search]q1[", expandOutput: "Expand]Related Work["}

	cfg := testCfg()
	cfg.ExpandLayers = 1
	c := newTestCrawler(t, cfg, text, &mockScore{defaultScore: 0.9}, backend)

	root, _ := c.Run(context.Background())
	node := root.Child["q1"][0]
	if len(node.Sections) == 0 {
		t.Fatal("sections not filled from backend")
	}
	if len(node.Child["Related Work"]) != 1 {
		t.Errorf("children = %v, want P under Related Work", node.Child)
	}
}

// --- invariants over a deep crawl ---

func TestDepthAndScoreInvariants(t *testing.T) {
	seed := paper("Seed Paper", "A")
	seed.Sections = map[string][]string{"Related Work": {"Mid Paper"}}
	mid := paper("Mid Paper", "M")
	mid.Sections = map[string][]string{"Background": {"Leaf Paper"}}

	backend := &mockBackend{
		queries: map[string][]string{"q1": {"A"}},
		papers:  map[string]*bib.Paper{"A": seed},
		titles: map[string]*bib.Paper{
			"Mid Paper":  mid,
			"Leaf Paper": paper("Leaf Paper", "L"),
		},
	}
	text := &mockText{
		planOutput:   "Search]q1[",
		expandOutput: "Expand]Related Work[ Expand]Background[",
	}

	cfg := testCfg()
	cfg.ExpandLayers = 2
	c := newTestCrawler(t, cfg, text, &mockScore{defaultScore: 0.8}, backend)

	root, _ := c.Run(context.Background())

	if root.Count() != 4 {
		t.Fatalf("tree nodes = %d, want root + 3 papers", root.Count())
	}

	var checkDepth func(n *types.PaperNode)
	checkDepth = func(n *types.PaperNode) {
		for _, children := range n.Child {
			for _, child := range children {
				if child.Depth != n.Depth+1 {
					t.Errorf("node %q depth %d under parent depth %d", child.Title, child.Depth, n.Depth)
				}
				if child.SelectScore < 0 || child.SelectScore > 1 {
					t.Errorf("node %q score %f out of [0,1]", child.Title, child.SelectScore)
				}
				checkDepth(child)
			}
		}
	}
	checkDepth(root)

	// touch_ids covers every distinct non-empty arxiv id.
	distinct := map[string]bool{}
	root.Walk(func(n *types.PaperNode) {
		if n.ArxivID != "" {
			distinct[n.ArxivID] = true
		}
	})
	if touched := root.RootStrings(types.ExtraTouchIDs); len(touched) < len(distinct) {
		t.Errorf("touch_ids has %d entries, fewer than %d distinct ids", len(touched), len(distinct))
	}
}
