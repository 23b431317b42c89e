package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pxflux/internal/tree"
)

func TestAccountWithoutUsersIsPruned(t *testing.T) {
	f := newFixture(t, tree.Node{
		"accounts": tree.Node{"a1": tree.Node{"title": "T", "invitations": tree.Node{"i1": true}}},
		"users":    tree.Node{"u1": tree.Node{"accounts": tree.Node{"a1": tree.Node{"title": "T"}}}},
	}, Options{})
	before := tree.Node{"title": "T", "users": tree.Node{"u1": tree.Node{"displayName": "Ann"}}, "invitations": tree.Node{"i1": true}}
	after := tree.Node{"title": "T", "invitations": tree.Node{"i1": true}}

	require.NoError(t, f.h.AccountWritten(context.Background(), "a1", before, after))
	assert.Nil(t, f.get(t, "accounts/a1"))
	assert.Nil(t, f.get(t, "users/u1"))
	assert.Equal(t, 2, f.tree.TotalCalls())
	assert.Equal(t, 1, f.tree.Calls("accounts/a1"))
	assert.Equal(t, 1, f.tree.Calls("users/u1/accounts/a1"))
}

func TestAccountTitleChangeReachesMembers(t *testing.T) {
	f := newFixture(t, nil, Options{})
	before := tree.Node{"title": "Old", "users": tree.Node{"u1": true, "u2": true}, "invitations": tree.Node{"i1": true}}
	after := tree.Node{"title": "New", "users": tree.Node{"u1": true, "u2": true}, "invitations": tree.Node{"i1": true}}

	require.NoError(t, f.h.AccountWritten(context.Background(), "a1", before, after))
	assert.Equal(t, tree.Node{"title": "New"}, f.get(t, "users/u1/accounts/a1"))
	assert.Equal(t, tree.Node{"title": "New"}, f.get(t, "users/u2/accounts/a1"))
	assert.Equal(t, tree.Node{"title": "New"}, f.get(t, "invitations/i1/accounts/a1"))
}

func TestAccountMembershipDiff(t *testing.T) {
	f := newFixture(t, tree.Node{"users": tree.Node{
		"u1": tree.Node{"accounts": tree.Node{"a1": tree.Node{"title": "T"}}},
		"u2": tree.Node{"accounts": tree.Node{"a1": tree.Node{"title": "T"}}},
	}}, Options{})
	before := tree.Node{"title": "T", "users": tree.Node{"u1": true, "u2": true}}
	after := tree.Node{"title": "T", "users": tree.Node{"u2": true, "u3": true}}

	require.NoError(t, f.h.AccountWritten(context.Background(), "a1", before, after))
	assert.Nil(t, f.get(t, "users/u1"))
	assert.Equal(t, tree.Node{"title": "T"}, f.get(t, "users/u3/accounts/a1"))
	assert.Equal(t, 0, f.tree.Calls("users/u2/accounts/a1"))
}

func TestAccountDeletedClearsCopies(t *testing.T) {
	f := newFixture(t, tree.Node{"users": tree.Node{
		"u1": tree.Node{"displayName": "Ann", "accounts": tree.Node{"a1": tree.Node{"title": "T"}}},
	}}, Options{})
	before := tree.Node{"title": "T", "users": tree.Node{"u1": true}}

	require.NoError(t, f.h.AccountWritten(context.Background(), "a1", before, nil))
	assert.Equal(t, tree.Node{"displayName": "Ann"}, f.get(t, "users/u1"))
}

func TestAccountCreationIsIgnored(t *testing.T) {
	f := newFixture(t, nil, Options{})
	after := tree.Node{"players": tree.Node{"p1": tree.Node{"pin": "1"}}}

	require.NoError(t, f.h.AccountWritten(context.Background(), "a1", nil, after))
	assert.Equal(t, 0, f.tree.TotalCalls())
}
