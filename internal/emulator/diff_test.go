package emulator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pxflux/internal/handlers"
	"github.com/roach88/pxflux/internal/tree"
)

func paths(events []handlers.Event) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Path)
	}
	return out
}

func TestDiffFindsChangedTriggerNodes(t *testing.T) {
	before := tree.Node{
		"accounts": tree.Node{"a1": tree.Node{
			"title":    "T",
			"artworks": tree.Node{"w1": tree.Node{"title": "A"}, "w2": tree.Node{"title": "B"}},
		}},
		"users": tree.Node{"u1": tree.Node{"displayName": "Ann"}},
	}
	after := tree.Node{
		"accounts": tree.Node{"a1": tree.Node{
			"title":    "T",
			"artworks": tree.Node{"w1": tree.Node{"title": "A2"}, "w2": tree.Node{"title": "B"}},
		}},
		"player-pins": tree.Node{"1234": tree.Node{"accountId": "a1"}},
		"metadata":    tree.Node{"u1": tree.Node{"refreshTime": 1}},
	}

	events := Diff(before, after, handlers.Patterns)
	assert.Equal(t, []string{
		"accounts/a1",
		"accounts/a1/artworks/w1",
		"player-pins/1234",
		"users/u1",
	}, paths(events))

	byPath := map[string]handlers.Event{}
	for _, ev := range events {
		byPath[ev.Path] = ev
	}
	assert.Nil(t, byPath["player-pins/1234"].Before)
	assert.Nil(t, byPath["users/u1"].After)
}

func TestDiffIdenticalTreesFireNothing(t *testing.T) {
	n := tree.Node{"accounts": tree.Node{"a1": tree.Node{"title": "T"}}}
	assert.Empty(t, Diff(n, tree.AsNode(tree.Clone(n)), handlers.Patterns))
	assert.Empty(t, Diff(nil, nil, handlers.Patterns))
}

func TestDiffTreatsNumbersCanonically(t *testing.T) {
	before := tree.Node{"users": tree.Node{"u1": tree.Node{"ts": 5}}}
	after := tree.Node{"users": tree.Node{"u1": tree.Node{"ts": 5.0}}}
	assert.Empty(t, Diff(before, after, handlers.Patterns))
}

func TestExpandLiteralLeaf(t *testing.T) {
	var got []string
	expand(tree.Node{"a": tree.Node{"b": 1}}, []string{"a", "b"}, "", func(p string) { got = append(got, p) })
	require.Equal(t, []string{"a/b"}, got)
}
