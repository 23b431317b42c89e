package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pxflux/internal/tree"
)

func TestArtworkPublishCreatesMirror(t *testing.T) {
	f := newFixture(t, nil, Options{})
	before := tree.Node{"published": false}
	after := tree.Node{"published": true, "title": "A"}

	require.NoError(t, f.h.EntityWritten(context.Background(), "artworks", "a1", "w1", before, after))
	assert.Equal(t, tree.Node{"title": "A"}, f.get(t, "artworks/w1"))
}

func TestArtworkUnpublishRemovesMirror(t *testing.T) {
	f := newFixture(t, tree.Node{"artworks": tree.Node{"w1": tree.Node{"title": "A"}}}, Options{})
	before := tree.Node{"published": true, "title": "A"}
	after := tree.Node{"published": false, "title": "A"}

	require.NoError(t, f.h.EntityWritten(context.Background(), "artworks", "a1", "w1", before, after))
	assert.Nil(t, f.get(t, "artworks/w1"))
}

func TestArtworkTitleRefreshesBackrefs(t *testing.T) {
	f := newFixture(t, nil, Options{})
	before := tree.Node{"title": "Old", "artists": tree.Node{"r1": true}, "shows": tree.Node{"s1": true}}
	after := tree.Node{"title": "New", "artists": tree.Node{"r1": true}, "shows": tree.Node{"s1": true}}

	require.NoError(t, f.h.EntityWritten(context.Background(), "artworks", "a1", "w1", before, after))
	assert.Equal(t, "New", f.get(t, "accounts/a1/artists/r1/artworks/w1/title"))
	assert.Equal(t, "New", f.get(t, "accounts/a1/shows/s1/artworks/w1/title"))
	assert.Nil(t, f.get(t, "artworks/w1"), "unpublished artwork has no mirror")
}

func TestArtistRelationDiff(t *testing.T) {
	f := newFixture(t, tree.Node{"accounts": tree.Node{"a1": tree.Node{"artworks": tree.Node{
		"x": tree.Node{"artists": tree.Node{"r1": tree.Node{"fullName": "Ann"}}},
		"y": tree.Node{"artists": tree.Node{"r1": tree.Node{"fullName": "Ann"}}},
	}}}}, Options{})
	before := tree.Node{"fullName": "Ann", "artworks": tree.Node{"x": 1, "y": 1}}
	after := tree.Node{"fullName": "Ann", "artworks": tree.Node{"y": 1, "z": 1}}

	require.NoError(t, f.h.EntityWritten(context.Background(), "artists", "a1", "r1", before, after))
	assert.Nil(t, f.get(t, "accounts/a1/artworks/x/artists/r1"))
	assert.Equal(t, tree.Node{"fullName": "Ann"}, f.get(t, "accounts/a1/artworks/y/artists/r1"))
	assert.Equal(t, tree.Node{"fullName": "Ann"}, f.get(t, "accounts/a1/artworks/z/artists/r1"))
	assert.Equal(t, 3, f.tree.TotalCalls())
}

func TestShowPlaceRemovalTouchesOnlyRemovedPlace(t *testing.T) {
	f := newFixture(t, tree.Node{"accounts": tree.Node{"a1": tree.Node{"places": tree.Node{
		"p1": tree.Node{"shows": tree.Node{"s1": tree.Node{"title": "S"}}},
		"p2": tree.Node{"shows": tree.Node{"s1": tree.Node{"title": "S"}}},
	}}}}, Options{})
	before := tree.Node{"title": "S", "places": tree.Node{"p1": true, "p2": true}}
	after := tree.Node{"title": "S", "places": tree.Node{"p1": true}}

	require.NoError(t, f.h.EntityWritten(context.Background(), "shows", "a1", "s1", before, after))
	assert.Nil(t, f.get(t, "accounts/a1/places/p2/shows/s1"))
	assert.Equal(t, 0, f.tree.Calls("accounts/a1/places/p1/shows/s1"))
	assert.Equal(t, 1, f.tree.TotalCalls())
}

func TestEntityDeleteCascades(t *testing.T) {
	f := newFixture(t, tree.Node{
		"places": tree.Node{"p1": tree.Node{"title": "P"}},
		"accounts": tree.Node{"a1": tree.Node{"shows": tree.Node{
			"s1": tree.Node{"places": tree.Node{"p1": tree.Node{"title": "P"}}},
		}}},
	}, Options{})
	before := tree.Node{
		"published": true,
		"title":     "P",
		"image":     tree.Node{"storageUri": "gs://bucket/p1.png"},
		"shows":     tree.Node{"s1": true},
	}

	require.NoError(t, f.h.EntityWritten(context.Background(), "places", "a1", "p1", before, nil))
	assert.Nil(t, f.get(t, "places/p1"))
	assert.Nil(t, f.get(t, "accounts/a1/shows/s1/places/p1"))
	assert.Equal(t, []string{"gs://bucket/p1.png"}, f.blobs.Deleted())
}

func TestEntityBlobFailureIsTolerated(t *testing.T) {
	f := newFixture(t, tree.Node{"artists": tree.Node{"r1": tree.Node{"fullName": "Ann"}}}, Options{})
	f.blobs.Err = assert.AnError
	before := tree.Node{"published": true, "fullName": "Ann", "image": tree.Node{"storageUri": "gs://b/r1.png"}}

	require.NoError(t, f.h.EntityWritten(context.Background(), "artists", "a1", "r1", before, nil))
	assert.Nil(t, f.get(t, "artists/r1"))
}

func TestEntityUnwatchedChangeIsNoop(t *testing.T) {
	f := newFixture(t, nil, Options{})
	before := tree.Node{"title": "P", "published": true, "notes": "a"}
	after := tree.Node{"title": "P", "published": true, "notes": "b"}

	require.NoError(t, f.h.EntityWritten(context.Background(), "places", "a1", "p1", before, after))
	assert.Equal(t, 0, f.tree.TotalCalls())
}

func TestEntityUnknownCollection(t *testing.T) {
	f := newFixture(t, nil, Options{})
	err := f.h.EntityWritten(context.Background(), "players", "a1", "x", nil, tree.Node{"a": 1})
	assert.Error(t, err)
}

func TestEntityHandlerIsIdempotent(t *testing.T) {
	f := newFixture(t, nil, Options{})
	before := tree.Node{"published": false, "artworks": tree.Node{"w1": true}}
	after := tree.Node{"published": true, "fullName": "Ann", "artworks": tree.Node{"w2": true}}

	ctx := context.Background()
	require.NoError(t, f.h.EntityWritten(ctx, "artists", "a1", "r1", before, after))
	once := f.tree.Snapshot()
	require.NoError(t, f.h.EntityWritten(ctx, "artists", "a1", "r1", before, after))
	assert.True(t, tree.Equal(once, f.tree.Snapshot()))
}
