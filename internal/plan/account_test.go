package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/pxflux/internal/tree"
)

func TestAccountEmptyUsersPrunes(t *testing.T) {
	before := tree.Node{"title": "Team", "users": map[string]any{"u1": map[string]any{"displayName": "U"}}}
	after := tree.Node{"title": "Team", "users": map[string]any{}}

	sortedDiff(t, []Operation{RemoveOp("accounts/a1")}, AccountWritten("a1", before, after))
}

func TestAccountPrunedClearsLeavingMembers(t *testing.T) {
	before := tree.Node{"title": "Team", "users": map[string]any{"u1": true, "u2": true}}
	after := tree.Node{"title": "Team"}

	sortedDiff(t, []Operation{
		RemoveOp("users/u1/accounts/a1"),
		RemoveOp("users/u2/accounts/a1"),
	}, AccountPruned("a1", before, after))
	assert.True(t, AccountPruned("a1", before, before).Empty())
	assert.True(t, AccountPruned("a1", before, nil).Empty())
}

func TestAccountMembershipDiff(t *testing.T) {
	before := tree.Node{
		"title":       "Team",
		"users":       map[string]any{"u1": true, "u2": true},
		"invitations": map[string]any{"i1": true},
	}
	after := tree.Node{
		"title":       "Team",
		"users":       map[string]any{"u2": true, "u3": true},
		"invitations": map[string]any{"i2": true},
	}

	sortedDiff(t, []Operation{
		RemoveOp("users/u1/accounts/a1"),
		SetOp("users/u3/accounts/a1", tree.Node{"title": "Team"}),
		RemoveOp("invitations/i1/accounts/a1"),
		SetOp("invitations/i2/accounts/a1", tree.Node{"title": "Team"}),
	}, AccountWritten("a1", before, after))
}

func TestAccountTitleChangeRefreshesMembers(t *testing.T) {
	before := tree.Node{"title": "Old", "users": map[string]any{"u1": true}, "invitations": map[string]any{"i1": true}}
	after := tree.Node{"title": "New", "users": map[string]any{"u1": true}, "invitations": map[string]any{"i1": true}}

	sortedDiff(t, []Operation{
		SetOp("users/u1/accounts/a1", tree.Node{"title": "New"}),
		SetOp("invitations/i1/accounts/a1", tree.Node{"title": "New"}),
	}, AccountWritten("a1", before, after))
}

func TestAccountUnrelatedChange(t *testing.T) {
	before := tree.Node{"title": "T", "users": map[string]any{"u1": true}, "artworks": map[string]any{}}
	after := tree.Node{"title": "T", "users": map[string]any{"u1": true}, "artworks": map[string]any{"w1": true}}

	assert.True(t, AccountWritten("a1", before, after).Empty())
}

func TestAccountDeleted(t *testing.T) {
	before := tree.Node{"users": map[string]any{"u1": true}, "invitations": map[string]any{"i1": true}}

	sortedDiff(t, []Operation{
		RemoveOp("users/u1/accounts/a1"),
		RemoveOp("invitations/i1/accounts/a1"),
	}, AccountDeleted("a1", before))
}
