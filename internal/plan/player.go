package plan

import (
	"slices"
	"strings"

	"github.com/roach88/pxflux/internal/tree"
)

// PlayerUIDPrefix marks synthetic player identities.
const PlayerUIDPrefix = "player:"

// PinsPath is the collection of outstanding player pins.
const PinsPath = "player-pins"

// PinPath is one pin record.
func PinPath(pin string) string {
	return tree.Join(PinsPath, pin)
}

// PlayerPath is a player registered under an account.
func PlayerPath(accountID, playerID string) string {
	return tree.Join("accounts", accountID, "players", playerID)
}

// PlayerUID is the identity a player authenticates as.
func PlayerUID(playerID string) string {
	return PlayerUIDPrefix + playerID
}

// IsPlayerUID reports whether uid belongs to a player identity.
func IsPlayerUID(uid string) bool {
	return strings.HasPrefix(uid, PlayerUIDPrefix)
}

// NeedsIssue reports whether a freshly written pin should be exchanged for a
// player identity: it names an account and has no token yet.
func NeedsIssue(pinRecord tree.Node) bool {
	return !tree.Has(pinRecord, "accessToken") && tree.String(pinRecord, "accountId") != ""
}

// Issue is the outcome of the identity steps of pin issuance.
type Issue struct {
	Pin       string
	AccountID string
	PlayerID  string
	Token     string
	Created   int64
	// KeepAccountID leaves accountId on the rewritten pin record.
	KeepAccountID bool
}

// PinIssued replaces the pin record with its access token and registers the
// player under the account. Both writes are critical.
func PinIssued(is Issue) Plan {
	record := tree.Node{"accessToken": is.Token}
	if is.KeepAccountID {
		record["accountId"] = is.AccountID
	}
	var p Plan
	p.Add(
		SetOp(PinPath(is.Pin), record),
		SetOp(PlayerPath(is.AccountID, is.PlayerID), tree.Node{"pin": is.Pin, "created": is.Created}),
	)
	return *p.Critical()
}

// PlayerWritten keeps at most one pin per account and mirrors the player's
// now-playing artwork into its pin. pins is a snapshot of every pin record
// and players a snapshot of the account's players.
//
// A pin belongs to the account when its record names the account or when
// one of the account's players holds it. The player's own pin is never
// removed. A player whose pin record is gone has been superseded or
// consumed, and nothing is planned for it.
func PlayerWritten(accountID, playerID string, player tree.Node, pins, players []tree.Child) Plan {
	var p Plan
	pin := tree.String(player, "pin")
	if player == nil || pin == "" {
		return p
	}
	if !slices.ContainsFunc(pins, func(c tree.Child) bool { return c.Key == pin }) {
		return p
	}

	held := make(map[string]bool, len(players))
	for _, c := range players {
		if k := tree.String(tree.AsNode(c.Value), "pin"); k != "" {
			held[k] = true
		}
	}
	for _, c := range pins {
		if c.Key == pin {
			continue
		}
		if held[c.Key] || tree.String(tree.AsNode(c.Value), "accountId") == accountID {
			p.Add(RemoveOp(PinPath(c.Key)))
		}
	}

	mirror := tree.Node{"playerId": playerID, "artwork": nil}
	if art := tree.AsNode(player["artwork"]); art != nil {
		summary := tree.Node{}
		for _, f := range []string{"title", "author", "controls"} {
			if v, ok := art[f]; ok && v != nil {
				summary[f] = v
			}
		}
		if len(summary) > 0 {
			mirror["artwork"] = summary
		}
	}
	p.Add(UpdateOp(PinPath(pin), mirror))
	return p
}
