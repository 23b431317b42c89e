package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/roach88/pxflux/internal/change"
	"github.com/roach88/pxflux/internal/identity"
	"github.com/roach88/pxflux/internal/plan"
	"github.com/roach88/pxflux/internal/tree"
)

// Grant is what a verified pin is exchanged for.
type Grant struct {
	AccountID string `json:"accountId,omitempty"`
	PlayerID  string `json:"playerId,omitempty"`
	Token     string `json:"token"`
}

// PinWritten exchanges a new pin for a player identity and token.
//
// The identity steps run first and any failure aborts the event. Then the
// pin record is replaced by {accessToken} and the player is registered
// under the account. Pins without an account, and pins that already carry
// a token, are left alone.
func (h *Handlers) PinWritten(ctx context.Context, pin string, before, after tree.Node) error {
	ctx, span := h.startSpan(ctx, "PinWritten", attribute.String("pin", pin))
	defer span.End()

	if after == nil || !plan.NeedsIssue(after) {
		slog.Debug("pin needs no issue", "pin", pin)
		return nil
	}
	accountID := tree.String(after, "accountId")
	playerID := tree.String(after, "playerId")
	if playerID == "" {
		playerID = h.playerIDs.Generate()
	}

	token, err := h.issueToken(ctx, playerID, accountID)
	if err != nil {
		return fail(span, fmt.Errorf("issue pin %s: %w", pin, err))
	}
	p := plan.PinIssued(plan.Issue{
		Pin:           pin,
		AccountID:     accountID,
		PlayerID:      playerID,
		Token:         token,
		Created:       h.now(),
		KeepAccountID: h.opts.KeepPinAccountID,
	})
	return fail(span, h.apply(ctx, plan.PinPath(pin), p))
}

// issueToken makes sure the player identity exists and mints a token
// scoped to accountID.
func (h *Handlers) issueToken(ctx context.Context, playerID, accountID string) (string, error) {
	uid := plan.PlayerUID(playerID)
	if err := h.auth.EnsureIdentity(ctx, uid); err != nil && !errors.Is(err, identity.ErrAlreadyExists) {
		return "", fmt.Errorf("ensure identity %s: %w", uid, err)
	}
	token, err := h.auth.MintToken(ctx, uid, map[string]any{"accountId": accountID})
	if err != nil {
		return "", fmt.Errorf("mint token for %s: %w", uid, err)
	}
	return token, nil
}

// PlayerWritten keeps one active pin per account and mirrors the player's
// now-playing artwork into its pin.
func (h *Handlers) PlayerWritten(ctx context.Context, accountID, playerID string, before, after tree.Node) error {
	ctx, span := h.startSpan(ctx, "PlayerWritten",
		attribute.String("account", accountID),
		attribute.String("player", playerID))
	defer span.End()

	if after == nil || tree.String(after, "pin") == "" {
		return nil
	}
	if !change.Detect(before, after, "pin", "artwork").Any() {
		return nil
	}
	pins, err := h.tree.ListChildren(ctx, plan.PinsPath)
	if err != nil {
		return fail(span, fmt.Errorf("scan pins: %w", err))
	}
	players, err := h.tree.ListChildren(ctx, tree.Join("accounts", accountID, "players"))
	if err != nil {
		return fail(span, fmt.Errorf("scan players of %s: %w", accountID, err))
	}
	return fail(span, h.apply(ctx, plan.PlayerPath(accountID, playerID),
		plan.PlayerWritten(accountID, playerID, after, pins, players)))
}

// VerifyPin consumes a pin and returns the credentials it stands for. A pin
// is accepted once. A pin that was never issued is exchanged on the spot.
func (h *Handlers) VerifyPin(ctx context.Context, pin string) (Grant, error) {
	ctx, span := h.startSpan(ctx, "VerifyPin", attribute.String("pin", pin))
	defer span.End()

	if h.pins == nil {
		return Grant{}, fail(span, fmt.Errorf("verify pin: no pin consumer configured"))
	}
	if pin == "" {
		return Grant{}, fail(span, fmt.Errorf("verify pin: empty pin: %w", ErrInvalidPin))
	}
	record, err := h.pins.ConsumePin(ctx, pin)
	if errors.Is(err, tree.ErrNotFound) {
		return Grant{}, fail(span, fmt.Errorf("verify pin %s: %w", pin, ErrInvalidPin))
	}
	if err != nil {
		return Grant{}, fail(span, fmt.Errorf("verify pin %s: %w", pin, err))
	}

	g := Grant{
		AccountID: tree.String(record, "accountId"),
		PlayerID:  tree.String(record, "playerId"),
		Token:     tree.String(record, "accessToken"),
	}
	if g.Token != "" {
		return g, nil
	}
	if g.AccountID == "" {
		return Grant{}, fail(span, fmt.Errorf("verify pin %s: no account: %w", pin, ErrInvalidPin))
	}
	if g.PlayerID == "" {
		g.PlayerID = h.playerIDs.Generate()
	}
	if g.Token, err = h.issueToken(ctx, g.PlayerID, g.AccountID); err != nil {
		return Grant{}, fail(span, fmt.Errorf("verify pin %s: %w", pin, err))
	}

	var p plan.Plan
	p.Add(plan.SetOp(plan.PlayerPath(g.AccountID, g.PlayerID), tree.Node{"pin": pin, "created": h.now()}))
	if err := h.apply(ctx, plan.PinPath(pin), *p.Critical()); err != nil {
		return Grant{}, fail(span, err)
	}
	return g, nil
}
