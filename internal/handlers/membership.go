package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/roach88/pxflux/internal/change"
	"github.com/roach88/pxflux/internal/plan"
	"github.com/roach88/pxflux/internal/tree"
)

// Caller identifies the authenticated user of a callable.
type Caller struct {
	UID string
	// AccountID is the account the caller's current token is scoped to.
	AccountID string
}

// AuthUser is the payload of an auth lifecycle event.
type AuthUser struct {
	UID         string
	DisplayName string
	PhotoURL    string
}

// InvitationWritten links, unlinks and accepts invitations/{id}.
func (h *Handlers) InvitationWritten(ctx context.Context, id string, before, after tree.Node) error {
	ctx, span := h.startSpan(ctx, "InvitationWritten", attribute.String("invitation", id))
	defer span.End()

	event := tree.Join("invitations", id)
	var p plan.Plan
	switch {
	case before == nil && after == nil:
		return nil
	case before == nil:
		p = plan.InvitationCreated(id, after)
	case after == nil:
		p = plan.InvitationDeleted(id, before)
	case tree.AsNode(after["user"]) != nil:
		p = plan.InvitationAccepted(id, after)
	}
	return fail(span, h.apply(ctx, event, p))
}

// UserWritten handles users/{uid}: a delete removes the user from every
// account, and a new accountId rescopes the user's token.
func (h *Handlers) UserWritten(ctx context.Context, uid string, before, after tree.Node) error {
	ctx, span := h.startSpan(ctx, "UserWritten", attribute.String("uid", uid))
	defer span.End()

	event := tree.Join("users", uid)
	if after == nil {
		if before == nil {
			return nil
		}
		return fail(span, h.apply(ctx, event, plan.UserDeleted(uid, before)))
	}

	accountID := tree.String(after, "accountId")
	if accountID == "" || !change.Changed("accountId", before, after) {
		return nil
	}
	return fail(span, h.rescope(ctx, uid, accountID, accountID))
}

// rescope sets the accountId claim, then bumps metadata/{uid} so clients
// fetch a fresh token. recorded is written into the metadata when set.
func (h *Handlers) rescope(ctx context.Context, uid, accountID, recorded string) error {
	if err := h.auth.SetClaims(ctx, uid, map[string]any{"accountId": accountID}); err != nil {
		return fmt.Errorf("set claims for %s: %w", uid, err)
	}
	return h.apply(ctx, plan.MetadataPath(uid), plan.ClaimsRefreshed(uid, recorded, h.now()))
}

// AuthUserCreated gives a new user a fresh account. Player identities are
// ignored.
func (h *Handlers) AuthUserCreated(ctx context.Context, u AuthUser) error {
	ctx, span := h.startSpan(ctx, "AuthUserCreated", attribute.String("uid", u.UID))
	defer span.End()

	if u.UID == "" || plan.IsPlayerUID(u.UID) {
		slog.Debug("auth create ignored", "uid", u.UID)
		return nil
	}
	accountID, err := h.tree.PushKey(ctx, "accounts")
	if err != nil {
		return fail(span, fmt.Errorf("auth create %s: new account key: %w", u.UID, err))
	}
	p := plan.AuthUserCreated(plan.Signup{
		UID:         u.UID,
		AccountID:   accountID,
		DisplayName: u.DisplayName,
		PhotoURL:    u.PhotoURL,
		Now:         h.now(),
	})
	if err := h.apply(ctx, "auth/create/"+u.UID, p); err != nil {
		return fail(span, err)
	}
	return fail(span, h.rescope(ctx, u.UID, accountID, ""))
}

// AuthUserDeleted drops the user record and its metadata. Player
// identities are ignored.
func (h *Handlers) AuthUserDeleted(ctx context.Context, uid string) error {
	ctx, span := h.startSpan(ctx, "AuthUserDeleted", attribute.String("uid", uid))
	defer span.End()

	if uid == "" || plan.IsPlayerUID(uid) {
		return nil
	}
	return fail(span, h.apply(ctx, "auth/delete/"+uid, plan.AuthUserDeleted(uid)))
}

// SwitchAccount rescopes the caller's token to accountID. It is a no-op
// when the token already carries that account.
func (h *Handlers) SwitchAccount(ctx context.Context, caller Caller, accountID string) error {
	ctx, span := h.startSpan(ctx, "SwitchAccount",
		attribute.String("uid", caller.UID),
		attribute.String("account", accountID))
	defer span.End()

	if caller.UID == "" {
		return fail(span, ErrUnauthenticated)
	}
	if accountID == "" {
		return fail(span, fmt.Errorf("switch account: empty account id"))
	}
	if caller.AccountID == accountID {
		return nil
	}
	_, member, err := h.tree.Read(ctx, tree.Join("users", caller.UID, "accounts", accountID))
	if err != nil {
		return fail(span, fmt.Errorf("switch account: %w", err))
	}
	if !member {
		return fail(span, fmt.Errorf("switch %s to %s: %w", caller.UID, accountID, ErrNotMember))
	}
	return fail(span, h.rescope(ctx, caller.UID, accountID, ""))
}
