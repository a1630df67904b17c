// Package ranking keeps an in-memory order statistic index of overall scores.
package ranking

import (
	"math/rand/v2"
	"sync"

	"github.com/okian/cxdiag/internal/domain/scoring"
)

// Treap ordered by score ASC, then tenant ASC. Subtree sizes make
// CountBelow O(log n) expected.

type node struct {
	tenant string
	score  float64
	prio   uint64
	left   *node
	right  *node
	size   int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less reports whether (aScore, aID) sorts before (bScore, bID).
func less(aScore float64, aID string, bScore float64, bID string) bool {
	if aScore != bScore {
		return aScore < bScore
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, tenant string, score float64, prio uint64) *node {
	if n == nil {
		return &node{tenant: tenant, score: score, prio: prio, size: 1}
	}
	if less(score, tenant, n.score, n.tenant) {
		n.left = insert(n.left, tenant, score, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, tenant, score, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, tenant string, score float64) *node {
	if n == nil {
		return nil
	}
	switch {
	case score == n.score && tenant == n.tenant:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, tenant, score)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, tenant, score)
		}
	case less(score, tenant, n.score, n.tenant):
		n.left = deleteNode(n.left, tenant, score)
	default:
		n.right = deleteNode(n.right, tenant, score)
	}
	fix(n)
	return n
}

// countBelow counts nodes with a score strictly below score.
func countBelow(n *node, score float64) int {
	count := 0
	for n != nil {
		if n.score < score {
			count += nsize(n.left) + 1
			n = n.right
		} else {
			n = n.left
		}
	}
	return count
}

// Index is safe for concurrent use.
type Index struct {
	mu     sync.RWMutex
	root   *node
	scores map[string]float64
	rnd    func() uint64
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{scores: make(map[string]float64), rnd: rand.Uint64}
}

// Upsert sets the tenant's score, replacing any previous one.
func (x *Index) Upsert(tenant string, score float64) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if old, ok := x.scores[tenant]; ok {
		if old == score {
			return
		}
		x.root = deleteNode(x.root, tenant, old)
	}
	x.scores[tenant] = score
	x.root = insert(x.root, tenant, score, x.rnd())
}

// Remove deletes the tenant and reports whether it was present.
func (x *Index) Remove(tenant string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	old, ok := x.scores[tenant]
	if !ok {
		return false
	}
	delete(x.scores, tenant)
	x.root = deleteNode(x.root, tenant, old)
	return true
}

// Reset replaces the whole index content.
func (x *Index) Reset(scores map[string]float64) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.root = nil
	x.scores = make(map[string]float64, len(scores))
	for tenant, score := range scores {
		x.scores[tenant] = score
		x.root = insert(x.root, tenant, score, x.rnd())
	}
}

// Score returns the tenant's indexed score.
func (x *Index) Score(tenant string) (float64, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	s, ok := x.scores[tenant]
	return s, ok
}

// CountBelow returns how many indexed scores are strictly below score.
func (x *Index) CountBelow(score float64) int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return countBelow(x.root, score)
}

// Len returns the number of indexed tenants.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.scores)
}

// Percentile returns the share of indexed scores strictly below score,
// as a percentage rounded to one decimal. An empty index yields 50.
func (x *Index) Percentile(score float64) float64 {
	x.mu.RLock()
	defer x.mu.RUnlock()

	total := len(x.scores)
	if total == 0 {
		return 50
	}
	return scoring.Round1(float64(countBelow(x.root, score)) / float64(total) * 100)
}
