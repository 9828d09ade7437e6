// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package crawl

import "sync"

// visitedSet is the global deduplication set over arXiv identifiers.
// Search and expansion workers race to claim ids; the first claimant fetches
// the paper and every later claim is a duplicate. The order slice preserves
// first-seen order for the root's touch_ids bookkeeping.
type visitedSet struct {
	mu    sync.Mutex
	seen  map[string]bool
	order []string
}

func newVisitedSet() *visitedSet {
	return &visitedSet{seen: make(map[string]bool)}
}

// Claim atomically checks-and-inserts id and reports whether the caller won
// the race. Which racing worker wins is timing-dependent and deliberately
// unspecified.
func (s *visitedSet) Claim(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[id] {
		return false
	}
	s.seen[id] = true
	s.order = append(s.order, id)
	return true
}

// IDs returns a copy of all claimed ids in first-seen order.
func (s *visitedSet) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// Len returns the number of claimed ids.
func (s *visitedSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}
