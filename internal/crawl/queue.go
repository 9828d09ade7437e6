// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package crawl

import (
	"sort"
	"sync"

	"github.com/pdiddy/paper-crawler/pkg/types"
)

// pendingQueue holds nodes awaiting expansion. A cursor separates entries
// already considered by a previous layer from those discovered since; each
// layer only looks at the tail. Entries beyond a layer's cap stay in the
// queue, already sorted, but are never revisited once the cursor passes
// them.
type pendingQueue struct {
	mu     sync.Mutex
	nodes  []*types.PaperNode
	cursor int
}

func newPendingQueue() *pendingQueue {
	return &pendingQueue{}
}

// Push appends a newly discovered node.
func (q *pendingQueue) Push(n *types.PaperNode) {
	q.mu.Lock()
	q.nodes = append(q.nodes, n)
	q.mu.Unlock()
}

// NextLayer stable-sorts the tail appended since the previous cursor by
// descending score and returns this layer's expansion set: the whole tail
// at depth 0, the top max entries afterward. The cursor advances past the
// entire tail either way.
func (q *pendingQueue) NextLayer(depth, max int) []*types.PaperNode {
	q.mu.Lock()
	defer q.mu.Unlock()

	tail := q.nodes[q.cursor:]
	sort.SliceStable(tail, func(i, j int) bool {
		return tail[i].SelectScore > tail[j].SelectScore
	})

	selected := tail
	if depth > 0 && max >= 0 && len(selected) > max {
		selected = selected[:max]
	}

	q.cursor = len(q.nodes)
	return append([]*types.PaperNode(nil), selected...)
}

// Len returns the total number of nodes ever enqueued.
func (q *pendingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.nodes)
}
