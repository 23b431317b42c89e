package handlers

import (
	"context"
	"log/slog"

	"github.com/roach88/pxflux/internal/plan"
	"github.com/roach88/pxflux/internal/tree"
)

// Trigger kinds.
const (
	KindAccount    = "account"
	KindEntity     = "entity"
	KindPlayer     = "player"
	KindInvitation = "invitation"
	KindPin        = "pin"
	KindUser       = "user"
)

// Patterns are the trigger paths, "*" matching one segment. A write fires
// the trigger of every pattern node it changes.
var Patterns = []string{
	"accounts/*",
	"accounts/*/artworks/*",
	"accounts/*/artists/*",
	"accounts/*/shows/*",
	"accounts/*/places/*",
	"accounts/*/players/*",
	"invitations/*",
	"player-pins/*",
	"users/*",
}

// Trigger is a matched trigger path.
type Trigger struct {
	Kind       string
	AccountID  string
	Collection string
	ID         string
}

// Match resolves path to its trigger.
func Match(path string) (Trigger, bool) {
	segs := tree.Split(path)
	switch len(segs) {
	case 2:
		switch segs[0] {
		case "accounts":
			return Trigger{Kind: KindAccount, AccountID: segs[1], ID: segs[1]}, true
		case "invitations":
			return Trigger{Kind: KindInvitation, ID: segs[1]}, true
		case plan.PinsPath:
			return Trigger{Kind: KindPin, ID: segs[1]}, true
		case "users":
			return Trigger{Kind: KindUser, ID: segs[1]}, true
		}
	case 4:
		if segs[0] != "accounts" {
			break
		}
		if segs[2] == "players" {
			return Trigger{Kind: KindPlayer, AccountID: segs[1], ID: segs[3]}, true
		}
		if _, ok := plan.RuleFor(segs[2]); ok {
			return Trigger{Kind: KindEntity, AccountID: segs[1], Collection: segs[2], ID: segs[3]}, true
		}
	}
	return Trigger{}, false
}

// Event is a change of one trigger node.
type Event struct {
	Path   string
	Before any
	After  any
}

// Dispatch runs the handler for ev's path. Paths without a trigger are
// ignored.
func (h *Handlers) Dispatch(ctx context.Context, ev Event) error {
	t, ok := Match(ev.Path)
	if !ok {
		slog.Debug("no trigger", "path", ev.Path)
		return nil
	}
	before, after := tree.AsNode(ev.Before), tree.AsNode(ev.After)
	switch t.Kind {
	case KindAccount:
		return h.AccountWritten(ctx, t.AccountID, before, after)
	case KindEntity:
		return h.EntityWritten(ctx, t.Collection, t.AccountID, t.ID, before, after)
	case KindPlayer:
		return h.PlayerWritten(ctx, t.AccountID, t.ID, before, after)
	case KindInvitation:
		return h.InvitationWritten(ctx, t.ID, before, after)
	case KindPin:
		return h.PinWritten(ctx, t.ID, before, after)
	case KindUser:
		return h.UserWritten(ctx, t.ID, before, after)
	}
	return nil
}
