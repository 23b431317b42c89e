package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pxflux/internal/tree"
)

func TestWriteRead_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	artwork := map[string]any{
		"title":     "Waves",
		"year":      2020,
		"published": true,
		"artists":   map[string]any{"r1": map[string]any{"fullName": "Ada"}},
	}
	require.NoError(t, s.Write(ctx, "accounts/a1/artworks/w1", artwork))

	got, ok, err := s.Read(ctx, "accounts/a1/artworks/w1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, tree.Equal(artwork, got))

	title, ok, err := s.Read(ctx, "accounts/a1/artworks/w1/title")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Waves", title)
}

func TestRead_Absent(t *testing.T) {
	s := createTestStore(t)

	v, ok, err := s.Read(context.Background(), "accounts/none")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, v)
}

func TestWrite_ReplacesSubtree(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.Write(ctx, "player-pins/1234", map[string]any{"accountId": "A1", "extra": "x"}))
	require.NoError(t, s.Write(ctx, "player-pins/1234", map[string]any{"accessToken": "tok"}))

	got, _, err := s.Read(ctx, "player-pins/1234")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"accessToken": "tok"}, got)
}

func TestWrite_ScalarAncestorReplaced(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.Write(ctx, "accounts/a1/invitations/i1", true))
	require.NoError(t, s.Write(ctx, "accounts/a1/invitations/i1/note", "x"))

	got, _, err := s.Read(ctx, "accounts/a1/invitations")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"i1": map[string]any{"note": "x"}}, got)
}

func TestWrite_NilRemoves(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.Write(ctx, "a/b", "c"))
	require.NoError(t, s.Write(ctx, "a/b", nil))

	_, ok, err := s.Read(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMerge_LeavesSiblings(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.Write(ctx, "player-pins/1234", map[string]any{
		"accessToken": "tok",
		"artwork":     map[string]any{"title": "Old", "author": "Ada"},
	}))
	require.NoError(t, s.Merge(ctx, "player-pins/1234", map[string]any{
		"playerId": "p1",
		"artwork":  nil,
	}))

	got, _, err := s.Read(ctx, "player-pins/1234")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"accessToken": "tok", "playerId": "p1"}, got)
}

func TestRemove_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.Write(ctx, "artworks/w1", map[string]any{"title": "A"}))
	require.NoError(t, s.Write(ctx, "artworks/w10", map[string]any{"title": "B"}))
	require.NoError(t, s.Remove(ctx, "artworks/w1"))
	require.NoError(t, s.Remove(ctx, "artworks/w1"))

	children, err := s.ListChildren(ctx, "artworks")
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "w10", children[0].Key)
}

func TestRemove_PrefixSiblingsUntouched(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.Write(ctx, "a/b", 1))
	require.NoError(t, s.Write(ctx, "a/b-c", 2))
	require.NoError(t, s.Write(ctx, "a/b.d", 3))
	require.NoError(t, s.Remove(ctx, "a/b"))

	got, _, err := s.Read(ctx, "a")
	require.NoError(t, err)
	assert.True(t, tree.Equal(map[string]any{"b-c": 2, "b.d": 3}, got))
}

func TestListChildren_Sorted(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.Write(ctx, "player-pins", map[string]any{
		"2222": map[string]any{"accountId": "A1"},
		"1111": map[string]any{"accountId": "B2"},
	}))

	children, err := s.ListChildren(ctx, "player-pins")
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "1111", children[0].Key)
	assert.Equal(t, "2222", children[1].Key)
	assert.Equal(t, "B2", tree.String(tree.AsNode(children[0].Value), "accountId"))

	none, err := s.ListChildren(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUpdate_MultiPath(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.Write(ctx, "accounts/a1/users/u1", map[string]any{"displayName": "U"}))
	require.NoError(t, s.Update(ctx, map[string]any{
		"accounts/a1/users/u1": nil,
		"users/u2/accounts/a1": map[string]any{"title": "T"},
	}))

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, tree.Node{"users": map[string]any{"u2": map[string]any{"accounts": map[string]any{"a1": map[string]any{"title": "T"}}}}}, snap)
}

func TestUpdate_RejectsOverlap(t *testing.T) {
	s := createTestStore(t)

	err := s.Update(context.Background(), map[string]any{
		"users/u1":          nil,
		"users/u1/accounts": map[string]any{"a1": true},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOverlappingPaths)
}

func TestPushKey(t *testing.T) {
	s := createTestStore(t, fixedKeys("k1", "k2"))

	k1, err := s.PushKey(context.Background(), "accounts")
	require.NoError(t, err)
	k2, err := s.PushKey(context.Background(), "accounts")
	require.NoError(t, err)
	assert.Equal(t, []string{"k1", "k2"}, []string{k1, k2})
}

func TestPushKey_DefaultUnique(t *testing.T) {
	s := createTestStore(t)

	seen := map[string]bool{}
	for range 20 {
		k, err := s.PushKey(context.Background(), "accounts")
		require.NoError(t, err)
		require.False(t, seen[k])
		seen[k] = true
	}
}

func TestWriteRoot(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.Write(ctx, "old", 1))
	require.NoError(t, s.Write(ctx, "", map[string]any{"accounts": map[string]any{"a1": map[string]any{"title": "T"}}}))

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, tree.Node{"accounts": map[string]any{"a1": map[string]any{"title": "T"}}}, snap)
}
