package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/pxflux/internal/tree"
)

func TestNeedsIssue(t *testing.T) {
	assert.True(t, NeedsIssue(tree.Node{"accountId": "A1"}))
	assert.False(t, NeedsIssue(tree.Node{"accountId": "A1", "accessToken": "t"}))
	assert.False(t, NeedsIssue(tree.Node{}))
	assert.False(t, NeedsIssue(nil))
}

func TestPinIssuedReplacesRecord(t *testing.T) {
	p := PinIssued(Issue{Pin: "1234", AccountID: "A1", PlayerID: "abc", Token: "tok", Created: 5})

	sortedDiff(t, []Operation{
		{Kind: Set, Path: "accounts/A1/players/abc", Payload: tree.Node{"pin": "1234", "created": int64(5)}, Critical: true},
		{Kind: Set, Path: "player-pins/1234", Payload: tree.Node{"accessToken": "tok"}, Critical: true},
	}, p)
}

func TestPinIssuedKeepAccountID(t *testing.T) {
	p := PinIssued(Issue{Pin: "1234", AccountID: "A1", PlayerID: "abc", Token: "tok", KeepAccountID: true})

	op, ok := p.Find("player-pins/1234")
	assert.True(t, ok)
	assert.Equal(t, tree.Node{"accessToken": "tok", "accountId": "A1"}, op.Payload)
}

func TestPlayerWrittenInvalidatesOtherPins(t *testing.T) {
	pins := []tree.Child{
		{Key: "1111", Value: map[string]any{"accountId": "A1"}},
		{Key: "2222", Value: map[string]any{"accountId": "A1", "accessToken": "t"}},
		{Key: "3333", Value: map[string]any{"accountId": "B2"}},
		{Key: "4444", Value: map[string]any{"accessToken": "x"}},
	}
	player := tree.Node{"pin": "2222", "artwork": map[string]any{"title": "Waves", "author": "Ada", "url": "ignored"}}

	sortedDiff(t, []Operation{
		RemoveOp("player-pins/1111"),
		UpdateOp("player-pins/2222", tree.Node{
			"playerId": "pl1",
			"artwork":  tree.Node{"title": "Waves", "author": "Ada"},
		}),
	}, PlayerWritten("A1", "pl1", player, pins, nil))
}

func TestPlayerWrittenInvalidatesPinsHeldByAccountPlayers(t *testing.T) {
	pins := []tree.Child{
		{Key: "1111", Value: map[string]any{"accessToken": "a", "playerId": "pl1"}},
		{Key: "2222", Value: map[string]any{"accessToken": "b"}},
		{Key: "3333", Value: map[string]any{"accessToken": "c", "playerId": "other"}},
	}
	players := []tree.Child{
		{Key: "pl1", Value: map[string]any{"pin": "1111", "created": 1}},
		{Key: "pl2", Value: map[string]any{"pin": "2222", "created": 2}},
	}

	sortedDiff(t, []Operation{
		RemoveOp("player-pins/1111"),
		UpdateOp("player-pins/2222", tree.Node{"playerId": "pl2", "artwork": nil}),
	}, PlayerWritten("A1", "pl2", tree.Node{"pin": "2222"}, pins, players))
}

func TestPlayerWrittenSkipsSupersededPin(t *testing.T) {
	pins := []tree.Child{{Key: "2222", Value: map[string]any{"accountId": "A1", "accessToken": "b"}}}
	players := []tree.Child{
		{Key: "pl1", Value: map[string]any{"pin": "1111"}},
		{Key: "pl2", Value: map[string]any{"pin": "2222"}},
	}
	stale := tree.Node{"pin": "1111", "artwork": map[string]any{"title": "Waves"}}

	assert.True(t, PlayerWritten("A1", "pl1", stale, pins, players).Empty())
}

func TestPlayerWrittenClearsArtwork(t *testing.T) {
	pins := []tree.Child{{Key: "2222", Value: map[string]any{"accessToken": "b"}}}
	p := PlayerWritten("A1", "pl1", tree.Node{"pin": "2222"}, pins, nil)

	sortedDiff(t, []Operation{UpdateOp("player-pins/2222", tree.Node{"playerId": "pl1", "artwork": nil})}, p)
}

func TestPlayerWrittenWithoutPin(t *testing.T) {
	assert.True(t, PlayerWritten("A1", "pl1", tree.Node{"artwork": map[string]any{}}, nil, nil).Empty())
	assert.True(t, PlayerWritten("A1", "pl1", nil, nil, nil).Empty())
}

func TestPlayerUID(t *testing.T) {
	assert.Equal(t, "player:abc", PlayerUID("abc"))
	assert.True(t, IsPlayerUID("player:abc"))
	assert.False(t, IsPlayerUID("u1"))
}
