// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the paper-crawler engine.
package types

import (
	"encoding/json"
	"fmt"
)

// Source tags recorded on tree nodes. Search and Expand tags carry the
// backend name after the colon (e.g. "Search:arxiv").
const (
	SourceRoot         = "Root"
	SourceSearchPrefix = "Search:"
	SourceExpandPrefix = "Expand:"
)

// Keys used in the root node's Extra map.
const (
	ExtraTouchIDs      = "touch_ids"
	ExtraCrawlerRecall = "crawler_recall_papers"
	ExtraRecall        = "recall_papers"
)

// ExtraExpand is the per-node expansion status key. A node starts with the
// key unset, moves to StatusFetchError or StatusNotExpanded during content
// fetch, and to StatusSuccess once at least one child is attached.
const ExtraExpand = "expand"

// Expansion status values.
const (
	StatusFetchError  = "fetch-error"
	StatusNotExpanded = "not-expanded"
	StatusSuccess     = "success"
)

// PaperNode is one node of the citation tree. The root node represents the
// user query (Depth -1, empty ArxivID); depth-0 nodes are search seeds and
// deeper nodes are citation hops. Child lists are keyed by search query
// directly under the root and by section name everywhere else.
//
// The JSON form of a PaperNode is the tree's serialized record: marshaling
// the root produces the full recursive record, and unmarshaling it rebuilds
// an equivalent tree.
type PaperNode struct {
	Title       string                  `json:"title"`
	ArxivID     string                  `json:"arxiv_id"`
	Depth       int                     `json:"depth"`
	Child       map[string][]*PaperNode `json:"child"`
	Abstract    string                  `json:"abstract"`
	Sections    map[string][]string     `json:"sections"`
	Source      string                  `json:"source"`
	SelectScore float64                 `json:"select_score"`
	Extra       map[string]any          `json:"extra"`
}

// NewRoot creates the query node that anchors a crawl. Its Extra map carries
// the global bookkeeping lists that workers append to during the run.
func NewRoot(userQuery string) *PaperNode {
	return &PaperNode{
		Title:  userQuery,
		Depth:  -1,
		Child:  map[string][]*PaperNode{},
		Source: SourceRoot,
		Extra: map[string]any{
			ExtraTouchIDs:      []string{},
			ExtraCrawlerRecall: []string{},
			ExtraRecall:        []string{},
		},
	}
}

// NewPaper creates a scored paper node at the given depth. Child and Extra
// maps are allocated so callers can attach children and status without nil
// checks.
func NewPaper(title, arxivID string, depth int, abstract string, sections map[string][]string, source string, score float64) *PaperNode {
	return &PaperNode{
		Title:       title,
		ArxivID:     arxivID,
		Depth:       depth,
		Child:       map[string][]*PaperNode{},
		Abstract:    abstract,
		Sections:    sections,
		Source:      source,
		SelectScore: score,
		Extra:       map[string]any{},
	}
}

// Walk visits every node of the tree in depth-first order, root first.
// Child keys are visited in unspecified order.
func (n *PaperNode) Walk(visit func(*PaperNode)) {
	visit(n)
	for _, children := range n.Child {
		for _, c := range children {
			c.Walk(visit)
		}
	}
}

// Count returns the number of nodes in the tree, including the receiver.
func (n *PaperNode) Count() int {
	total := 0
	n.Walk(func(*PaperNode) { total++ })
	return total
}

// MarshalRecord serializes the tree rooted at n to its indented JSON record.
func (n *PaperNode) MarshalRecord() ([]byte, error) {
	data, err := json.MarshalIndent(n, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling tree record: %w", err)
	}
	return data, nil
}

// UnmarshalRecord rebuilds a tree from its serialized record form.
func UnmarshalRecord(data []byte) (*PaperNode, error) {
	var n PaperNode
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("parsing tree record: %w", err)
	}
	return &n, nil
}

// RootStrings returns a string list stored under key in the root's Extra
// map, handling both the in-memory []string form and the []any form that
// JSON round-trips produce.
func (n *PaperNode) RootStrings(key string) []string {
	switch v := n.Extra[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// ExpandStatus returns the node's expansion status, or "" when the node has
// not reached the content-fetch phase.
func (n *PaperNode) ExpandStatus() string {
	s, _ := n.Extra[ExtraExpand].(string)
	return s
}
