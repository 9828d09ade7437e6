// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package crawl

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/paper-crawler/internal/bib"
	"github.com/pdiddy/paper-crawler/pkg/types"
)

// innerPoolFactor scales the citation-resolution pool relative to the
// configured thread count. Title lookups are the cheapest, most numerous
// calls in a layer, so they get the widest pool.
const innerPoolFactor = 3

// expandTask pairs a candidate node with its rendered section-selection
// prompt, staged between the fetch pool and the batched generation call.
type expandTask struct {
	node   *types.PaperNode
	prompt string
}

// expandLayer runs one breadth-first expansion round: select candidates
// from the pending queue, fetch section data, ask the oracle which sections
// to follow, then resolve and attach the cited papers.
func (c *Crawler) expandLayer(ctx context.Context, depth int) {
	candidates := c.queue.NextLayer(depth, c.cfg.ExpandPapers)
	fmt.Fprintf(c.w, "layer %d: expanding %d papers\n", depth, len(candidates))
	if len(candidates) == 0 {
		return
	}

	staged := c.fetchContent(ctx, candidates)
	if len(staged) == 0 {
		return
	}

	prompts := make([]string, len(staged))
	for i, t := range staged {
		prompts[i] = t.prompt
	}

	generations, err := c.text.GenerateBatch(ctx, prompts)
	if err != nil {
		fmt.Fprintf(c.w, "warning: layer %d generation failed, dropping %d papers: %v\n",
			depth, len(staged), err)
		return
	}
	if len(generations) != len(staged) {
		fmt.Fprintf(c.w, "warning: layer %d: %d generations for %d papers\n",
			depth, len(generations), len(staged))
		return
	}

	g := new(errgroup.Group)
	g.SetLimit(c.poolSize(1))
	for i, t := range staged {
		i, t := i, t
		g.Go(func() error {
			c.expandNode(ctx, t.node, generations[i])
			return nil
		})
	}
	g.Wait()
}

// fetchContent runs the content-fetch pool over this layer's candidates.
// Nodes without section data get it from the backend; an empty extraction
// marks the node fetch-error and drops it for good. Survivors are staged
// with their section-selection prompt.
func (c *Crawler) fetchContent(ctx context.Context, candidates []*types.PaperNode) []expandTask {
	var stagedMu sync.Mutex
	var staged []expandTask

	g := new(errgroup.Group)
	g.SetLimit(c.poolSize(1))
	for _, node := range candidates {
		node := node
		g.Go(func() error {
			if len(node.Sections) == 0 {
				sections, err := c.backend.Sections(ctx, node.ArxivID, c.citePattern)
				if err != nil || len(sections) == 0 {
					c.setStatus(node, types.StatusFetchError)
					return nil
				}
				c.mu.Lock()
				node.Sections = sections
				c.mu.Unlock()
			}
			c.setStatus(node, types.StatusNotExpanded)

			prompt, err := c.prompts.SelectSection(c.userQuery, node.Title, node.Abstract, sectionNames(node))
			if err != nil {
				fmt.Fprintf(c.w, "warning: section prompt for %s: %v\n", node.ArxivID, err)
				return nil
			}

			stagedMu.Lock()
			staged = append(staged, expandTask{node: node, prompt: prompt})
			stagedMu.Unlock()
			return nil
		})
	}
	g.Wait()
	return staged
}

// citeRef is one (section, cited title) pair awaiting resolution.
type citeRef struct {
	section string
	title   string
}

// resolvedRef is a citation that won the dedup race, ready for scoring.
type resolvedRef struct {
	section string
	paper   *bib.Paper
}

// expandNode processes one (node, generation) pair: parse the oracle's
// chosen sections, resolve their citations through the inner title-search
// pool, score the survivors in one call, and attach them as children.
func (c *Crawler) expandNode(ctx context.Context, node *types.PaperNode, generation string) {
	refs := c.collectRefs(node, generation)
	if len(refs) == 0 {
		return
	}

	// Fresh lock per batch; it only guards this node's accumulation, so
	// racing expansions of other nodes never contend on it.
	var batchMu sync.Mutex
	var prompts []string
	var resolved []resolvedRef

	g := new(errgroup.Group)
	g.SetLimit(c.poolSize(innerPoolFactor))
	for _, ref := range refs {
		ref := ref
		g.Go(func() error {
			paper, err := c.backend.ByTitle(ctx, ref.title)
			if err != nil || paper == nil || paper.ArxivID == "" {
				return nil
			}
			if !c.visited.Claim(paper.ArxivID) {
				return nil
			}
			prompt, err := c.prompts.GetSelected(paper.Title, paper.Abstract, c.userQuery)
			if err != nil {
				return nil
			}
			batchMu.Lock()
			prompts = append(prompts, prompt)
			resolved = append(resolved, resolvedRef{section: ref.section, paper: paper})
			batchMu.Unlock()
			return nil
		})
	}
	g.Wait()

	if len(resolved) == 0 {
		return
	}

	scores, err := c.score.Score(ctx, prompts)
	if err != nil || len(scores) != len(resolved) {
		fmt.Fprintf(c.w, "warning: scoring citations of %s failed: %v\n", node.ArxivID, err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, r := range resolved {
		c.recordRecall(r.paper.Title, scores[i])
		child := types.NewPaper(r.paper.Title, r.paper.ArxivID, node.Depth+1,
			r.paper.Abstract, r.paper.Sections, types.SourceExpandPrefix+r.paper.Source, scores[i])
		node.Child[r.section] = append(node.Child[r.section], child)
		node.Extra[types.ExtraExpand] = types.StatusSuccess
		c.queue.Push(child)
	}
}

// collectRefs parses the oracle's bracketed "Expand]...[" section choices,
// keeps the ones the node actually has, and flattens their citation lists.
// Unknown section names and marker-free output both yield nothing.
func (c *Crawler) collectRefs(node *types.PaperNode, generation string) []citeRef {
	var refs []citeRef
	for _, m := range expandRe.FindAllStringSubmatch(generation, -1) {
		section := strings.TrimSpace(m[1])
		titles, ok := node.Sections[section]
		if !ok {
			continue
		}
		for _, title := range titles {
			refs = append(refs, citeRef{section: section, title: title})
		}
	}
	return refs
}

// setStatus records a node's expansion status under the tree lock.
func (c *Crawler) setStatus(node *types.PaperNode, status string) {
	c.mu.Lock()
	node.Extra[types.ExtraExpand] = status
	c.mu.Unlock()
}

// poolSize returns the worker count for a pool, scaled by factor and never
// below one.
func (c *Crawler) poolSize(factor int) int {
	n := c.cfg.ThreadsNum * factor
	if n < 1 {
		n = 1
	}
	return n
}
