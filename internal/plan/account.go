package plan

import (
	"github.com/roach88/pxflux/internal/change"
	"github.com/roach88/pxflux/internal/tree"
)

// DefaultAccountTitle names the account created for a new signup.
const DefaultAccountTitle = "Untitled team"

// AccountPath is the source node of an account.
func AccountPath(accountID string) string {
	return tree.Join("accounts", accountID)
}

// AccountWritten plans membership convergence for an account update.
//
// An account whose users map is empty is pruned outright and nothing else is
// planned. Otherwise added members (all members when the title changed)
// receive {title} under users/{u}/accounts/{a} and removed members lose it;
// invitations follow the same rule under invitations/{i}/accounts/{a}.
func AccountWritten(accountID string, before, after tree.Node) Plan {
	var p Plan
	if after == nil {
		return p
	}
	if len(tree.Keys(after, "users")) == 0 {
		p.Add(RemoveOp(AccountPath(accountID)))
		return p
	}

	changed := change.Detect(before, after, "title", "users", "invitations")
	if !changed.Any() {
		return p
	}
	title := tree.Node{"title": accountTitle(after)}
	titleChanged := changed.Has("title")

	for _, m := range []struct {
		field string
		path  func(id string) string
	}{
		{"users", func(id string) string { return tree.Join("users", id, "accounts", accountID) }},
		{"invitations", func(id string) string { return tree.Join("invitations", id, "accounts", accountID) }},
	} {
		keys := change.DiffKeys(m.field, before, after)
		refresh := keys.Added
		if titleChanged {
			refresh = keys.Current
		}
		for _, id := range refresh {
			p.Add(SetOp(m.path(id), title))
		}
		for _, id := range keys.Removed {
			p.Add(RemoveOp(m.path(id)))
		}
	}
	return p
}

// AccountPruned lists the user copies an account pruned by AccountWritten
// leaves behind. The delete event that follows sees no users any more, so
// the members of before are cleared here.
func AccountPruned(accountID string, before, after tree.Node) Plan {
	var p Plan
	if after == nil || len(tree.Keys(after, "users")) > 0 {
		return p
	}
	for _, id := range tree.Keys(before, "users") {
		p.Add(RemoveOp(tree.Join("users", id, "accounts", accountID)))
	}
	return p
}

// AccountDeleted clears the membership copies of a pruned account.
func AccountDeleted(accountID string, before tree.Node) Plan {
	var p Plan
	for _, id := range tree.Keys(before, "users") {
		p.Add(RemoveOp(tree.Join("users", id, "accounts", accountID)))
	}
	for _, id := range tree.Keys(before, "invitations") {
		p.Add(RemoveOp(tree.Join("invitations", id, "accounts", accountID)))
	}
	return p
}

func accountTitle(account tree.Node) any {
	if v, ok := account["title"]; ok && v != nil {
		return v
	}
	return ""
}
