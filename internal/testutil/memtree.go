package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/roach88/pxflux/internal/tree"
)

// ErrPinNotFound is returned by MemTree.ConsumePin for unknown pins.
var ErrPinNotFound = tree.ErrNotFound

// MemTree is an in-memory tree store that records how it is used.
//
// It tracks the peak number of concurrent mutations, counts calls per path
// and can be told to fail or slow down specific paths. Safe for concurrent
// use.
type MemTree struct {
	mu    sync.Mutex
	root  tree.Node
	keys  *SequenceGenerator
	calls map[string]int
	fails map[string]error
	delay time.Duration

	inFlight    int
	maxInFlight int
}

// NewMemTree returns a tree holding a copy of initial.
func NewMemTree(initial tree.Node) *MemTree {
	root, _ := tree.Normalize(initial).(map[string]any)
	return &MemTree{
		root:  root,
		keys:  NewSequenceGenerator("key"),
		calls: make(map[string]int),
		fails: make(map[string]error),
	}
}

// FailOn makes every mutation of path return err.
func (m *MemTree) FailOn(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fails[path] = err
}

// SetDelay holds each mutation for d, to widen concurrency windows.
func (m *MemTree) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// MaxInFlight returns the peak number of concurrent mutations seen.
func (m *MemTree) MaxInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxInFlight
}

// Calls returns how many mutations targeted path.
func (m *MemTree) Calls(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[path]
}

// TotalCalls returns the number of mutations across all paths.
func (m *MemTree) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

// Snapshot returns a deep copy of the whole tree.
func (m *MemTree) Snapshot() tree.Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	return tree.AsNode(tree.Clone(m.root))
}

func (m *MemTree) Read(_ context.Context, path string) (any, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := tree.Lookup(m.root, path)
	if !ok {
		return nil, false, nil
	}
	return tree.Clone(v), true, nil
}

func (m *MemTree) ListChildren(_ context.Context, path string) ([]tree.Child, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, _ := tree.Lookup(m.root, path)
	n := tree.AsNode(v)
	children := make([]tree.Child, 0, len(n))
	for _, k := range tree.SortedKeys(n) {
		children = append(children, tree.Child{Key: k, Value: tree.Clone(n[k])})
	}
	return children, nil
}

func (m *MemTree) Write(ctx context.Context, path string, value any) error {
	return m.mutate(ctx, path, func() {
		m.root = tree.SetIn(m.root, path, value)
	})
}

func (m *MemTree) Merge(ctx context.Context, path string, fields map[string]any) error {
	return m.mutate(ctx, path, func() {
		m.root = tree.MergeIn(m.root, path, fields)
	})
}

func (m *MemTree) Remove(ctx context.Context, path string) error {
	return m.mutate(ctx, path, func() {
		m.root = tree.SetIn(m.root, path, nil)
	})
}

// Update applies a multi-path write in one step.
func (m *MemTree) Update(ctx context.Context, values map[string]any) error {
	return m.mutate(ctx, "", func() {
		m.root = tree.MergeIn(m.root, "", values)
	})
}

func (m *MemTree) PushKey(_ context.Context, _ string) (string, error) {
	return m.keys.Generate(), nil
}

// ConsumePin reads and deletes a pin record in one step.
func (m *MemTree) ConsumePin(_ context.Context, pin string) (tree.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	path := tree.Join("player-pins", pin)
	v, ok := tree.Lookup(m.root, path)
	if !ok {
		return nil, fmt.Errorf("consume %s: %w", pin, ErrPinNotFound)
	}
	rec := tree.AsNode(tree.Clone(v))
	m.root = tree.SetIn(m.root, path, nil)
	return rec, nil
}

func (m *MemTree) mutate(ctx context.Context, path string, apply func()) error {
	m.mu.Lock()
	m.calls[path]++
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	delay := m.delay
	failure := m.fails[path]
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	if failure != nil {
		return failure
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	apply()
	return nil
}
