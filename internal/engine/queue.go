package engine

import (
	"sync"

	"github.com/roach88/pxflux/internal/plan"
)

// workQueue hands out plan operations to concurrent workers.
//
// Claim is the only way to take an item and is exclusive under the mutex.
// After Close, Claim reports the queue as drained and the unclaimed items
// count as skipped.
type workQueue struct {
	mu     sync.Mutex
	items  []plan.Operation
	closed bool
}

func newWorkQueue(ops []plan.Operation) *workQueue {
	items := make([]plan.Operation, len(ops))
	copy(items, ops)
	return &workQueue{items: items}
}

// Claim removes and returns the next operation.
// Returns false once the queue is empty or closed.
func (q *workQueue) Claim() (plan.Operation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || len(q.items) == 0 {
		return plan.Operation{}, false
	}
	op := q.items[0]
	q.items[0] = plan.Operation{}
	q.items = q.items[1:]
	return op, true
}

// Close stops further claims.
func (q *workQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}

// Len returns the number of unclaimed operations.
func (q *workQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
