package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pxflux/internal/plan"
)

func TestWorkQueue_ClaimInOrder(t *testing.T) {
	q := newWorkQueue([]plan.Operation{plan.RemoveOp("a"), plan.RemoveOp("b")})

	op, ok := q.Claim()
	require.True(t, ok)
	assert.Equal(t, "a", op.Path)

	op, ok = q.Claim()
	require.True(t, ok)
	assert.Equal(t, "b", op.Path)

	_, ok = q.Claim()
	assert.False(t, ok, "claim from drained queue should fail")
}

func TestWorkQueue_CloseStopsClaims(t *testing.T) {
	q := newWorkQueue([]plan.Operation{plan.RemoveOp("a"), plan.RemoveOp("b"), plan.RemoveOp("c")})
	_, _ = q.Claim()
	q.Close()

	_, ok := q.Claim()
	assert.False(t, ok)
	assert.Equal(t, 2, q.Len())
}

func TestWorkQueue_DoesNotAliasInput(t *testing.T) {
	ops := []plan.Operation{plan.RemoveOp("a")}
	q := newWorkQueue(ops)
	_, _ = q.Claim()
	assert.Equal(t, "a", ops[0].Path)
}

func TestWorkQueue_ConcurrentClaimsAreExclusive(t *testing.T) {
	const n = 500
	ops := make([]plan.Operation, n)
	for i := range ops {
		ops[i] = plan.RemoveOp(string(rune('a'+i%26)) + "/" + string(rune('0'+i/26)))
	}
	q := newWorkQueue(ops)

	var (
		mu   sync.Mutex
		seen = make(map[string]int)
		wg   sync.WaitGroup
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				op, ok := q.Claim()
				if !ok {
					return
				}
				mu.Lock()
				seen[op.Path]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n)
	for path, count := range seen {
		assert.Equal(t, 1, count, "operation %s claimed more than once", path)
	}
}
