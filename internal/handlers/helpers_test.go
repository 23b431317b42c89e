package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/pxflux/internal/engine"
	"github.com/roach88/pxflux/internal/testutil"
	"github.com/roach88/pxflux/internal/tree"
)

const testNow = int64(1700000000000)

type fixture struct {
	tree  *testutil.MemTree
	auth  *testutil.FakeAuth
	blobs *testutil.BlobRecorder
	h     *Handlers
}

func newFixture(t *testing.T, initial tree.Node, opts Options) *fixture {
	t.Helper()
	f := &fixture{
		tree:  testutil.NewMemTree(initial),
		auth:  testutil.NewFakeAuth(),
		blobs: &testutil.BlobRecorder{},
	}
	f.h = New(Deps{
		Tree:      f.tree,
		Auth:      f.auth,
		Blobs:     f.blobs,
		Pins:      f.tree,
		PlayerIDs: testutil.NewSequenceGenerator("player"),
		Now:       testutil.NewStepClock(testNow, 0).Now,
		Executor: engine.NewExecutor(f.tree, f.blobs,
			engine.WithIDGenerator(testutil.NewSequenceGenerator("run"))),
	}, opts)
	return f
}

func (f *fixture) get(t *testing.T, path string) any {
	t.Helper()
	v, _, err := f.tree.Read(context.Background(), path)
	require.NoError(t, err)
	return v
}
