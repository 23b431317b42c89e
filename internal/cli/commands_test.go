package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pxflux/internal/tree"
)

func writeTemp(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const artworkEvent = `
path: accounts/A1/artworks/w1
after:
  title: Dawn
  published: true
`

func TestApply_PublishesArtwork(t *testing.T) {
	e := newTestEnv(t)
	seedAccount(t, e)
	event := writeTemp(t, e.dir, "event.yaml", artworkEvent)

	out, err := e.run(t, "apply", event)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ accounts/A1/artworks/w1 (entity)")
	assert.True(t, tree.Equal(tree.Node{"title": "Dawn"}, e.read(t, "artworks/w1")))
}

func TestApply_JSON(t *testing.T) {
	e := newTestEnv(t)
	event := writeTemp(t, e.dir, "event.yaml", artworkEvent)

	out, err := e.run(t, "--format", "json", "apply", event)
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"path": "accounts/A1/artworks/w1", "kind": "entity"}, resp.Data)
}

func TestApply_InvalidEvents(t *testing.T) {
	e := newTestEnv(t)
	tests := []struct {
		name string
		body string
	}{
		{"no path", "after: { title: x }\n"},
		{"unknown field", "path: accounts/A1\nafterwards: {}\n"},
		{"no trigger", "path: notes/n1\nafter: { a: 1 }\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := writeTemp(t, e.dir, "bad.yaml", tt.body)
			_, err := e.run(t, "apply", event)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestPlan_DoesNotWrite(t *testing.T) {
	e := newTestEnv(t)
	seedAccount(t, e)
	event := writeTemp(t, e.dir, "event.yaml", artworkEvent)

	out, err := e.run(t, "plan", event)
	require.NoError(t, err)
	assert.Contains(t, out, "accounts/A1/artworks/w1:")
	assert.Contains(t, out, `set artworks/w1 {"title":"Dawn"}`)
	assert.Nil(t, e.read(t, "artworks/w1"))
}

func TestPlan_RecordsIdentityCalls(t *testing.T) {
	e := newTestEnv(t)
	seedAccount(t, e)
	event := writeTemp(t, e.dir, "event.yaml", "path: player-pins/1234\nafter: { accountId: A1, playerId: p1 }\n")

	out, err := e.run(t, "--format", "json", "plan", event)
	require.NoError(t, err)

	var resp struct {
		Data PlanResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Contains(t, resp.Data.Operations, "ensure-identity player:p1")
	assert.Contains(t, resp.Data.Operations, "mint-token player:p1")
	assert.Contains(t, resp.Data.Operations, `set player-pins/1234 {"accessToken":"dry-run-token:player:p1"}`)
	assert.Nil(t, e.read(t, "accounts/A1/players"))
}

func TestVerifyPin(t *testing.T) {
	e := newTestEnv(t)
	seedAccount(t, e)
	e.seed(t, "player-pins/1234", tree.Node{"accountId": "A1", "playerId": "p1"})

	out, err := e.run(t, "--format", "json", "verify-pin", "1234")
	require.NoError(t, err)

	var resp struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "A1", resp.Data["accountId"])
	assert.Equal(t, "p1", resp.Data["playerId"])
	assert.NotEmpty(t, resp.Data["token"])

	assert.Nil(t, e.read(t, "player-pins/1234"))
	assert.Equal(t, "1234", e.read(t, "accounts/A1/players/p1/pin"))

	out, err = e.run(t, "--format", "json", "verify-pin", "1234")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid pin")

	var failed Response
	require.NoError(t, json.Unmarshal([]byte(out), &failed))
	assert.Equal(t, "error", failed.Status)
	require.NotNil(t, failed.Error)
	assert.Equal(t, CodeInvalidPin, failed.Error.Code)
}

func TestBilling_Disabled(t *testing.T) {
	e := newTestEnv(t)

	out, err := e.run(t, "--format", "json", "billing", "--uid", "u1", "--account", "A1", "setup", "basic")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeBillingDisabled, resp.Error.Code)
}

func TestBilling_SetupAndRefresh(t *testing.T) {
	e := newTestEnv(t)
	cfg := writeTemp(t, e.dir, "pxflux.yaml", "billing:\n  enabled: true\n")
	e.args = append(e.args, "--config", cfg)
	seedAccount(t, e)
	e.seed(t, "users/u1", tree.Node{"displayName": "Ann"})

	out, err := e.run(t, "--format", "json", "billing", "--uid", "u1", "--account", "A1", "setup", "basic")
	require.NoError(t, err)
	var resp struct {
		Data struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "succeeded", resp.Data.Status)
	require.NotEmpty(t, resp.Data.ID)
	assert.Equal(t, "basic", e.read(t, "accounts/A1/subscription/planId"))
	assert.NotEmpty(t, e.read(t, "users/u1/stripeId"))

	// A new process knows nothing of the subscription; the plan stays recorded.
	_, err = e.run(t, "billing", "--uid", "u1", "--account", "A1", "refresh", resp.Data.ID)
	require.NoError(t, err)
	assert.True(t, tree.Equal(tree.Node{"id": resp.Data.ID, "planId": "basic"}, e.read(t, "accounts/A1/subscription")))
}

func TestAuthCreateAndSwitch(t *testing.T) {
	e := newTestEnv(t)

	out, err := e.run(t, "--format", "json", "auth", "create", "u1", "--display-name", "Ann")
	require.NoError(t, err)
	var resp struct {
		Data struct {
			UID    string         `json:"uid"`
			Claims map[string]any `json:"claims"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "u1", resp.Data.UID)
	accountID, _ := resp.Data.Claims["accountId"].(string)
	require.NotEmpty(t, accountID)

	assert.Equal(t, "Untitled team", e.read(t, "accounts/"+accountID+"/title"))
	assert.Equal(t, "Ann", e.read(t, "accounts/"+accountID+"/users/u1/displayName"))

	_, err = e.run(t, "switch-account", "--uid", "u1", "A2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a member")

	e.seed(t, "users/u1/accounts/A2", tree.Node{"title": "Other"})
	_, err = e.run(t, "switch-account", "--uid", "u1", "A2")
	require.NoError(t, err)
	assert.Equal(t, "A2", e.claims(t, "u1")["accountId"])
	assert.NotNil(t, e.read(t, "metadata/u1/refreshTime"))

	_, err = e.run(t, "auth", "delete", "u1")
	require.NoError(t, err)
	assert.Nil(t, e.read(t, "users/u1"))
	assert.Nil(t, e.read(t, "metadata/u1"))
}

const writesFile = `op: set
path: accounts/A1
value:
  title: Team
  users:
    u1: { displayName: Ann }
---
path: player-pins/1234
value: { accountId: A1 }
`

func TestReplayLogAndGet(t *testing.T) {
	e := newTestEnv(t)
	writes := writeTemp(t, e.dir, "writes.yaml", writesFile)

	out, err := e.run(t, "replay", writes)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ set accounts/A1")
	assert.Contains(t, out, "✓ set player-pins/1234 (3 round(s))")
	assert.Contains(t, out, "Replay Summary: 2 write(s), 0 failed")

	out, err = e.run(t, "log", "player-pins")
	require.NoError(t, err)
	assert.Contains(t, out, "player-pins/1234")

	out, err = e.run(t, "get", "accounts/A1/title")
	require.NoError(t, err)
	assert.Equal(t, "\"Team\"\n", out)

	out, err = e.run(t, "get", "nothing/here")
	require.NoError(t, err)
	assert.Equal(t, "null\n", out)
}

func TestReplay_InvalidWrites(t *testing.T) {
	e := newTestEnv(t)
	writes := writeTemp(t, e.dir, "writes.yaml", "value: 1\n")

	_, err := e.run(t, "replay", writes)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "path is required")
}

func TestReplay_CascadeLimit(t *testing.T) {
	e := newTestEnv(t)
	writes := writeTemp(t, e.dir, "writes.yaml", writesFile)

	out, err := e.run(t, "--format", "json", "replay", "--max-rounds", "1", writes)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string         `json:"status"`
		Data   ReplayResult   `json:"data"`
		Error  *ResponseError `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 1, resp.Data.Failed)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeCascadeLimit, resp.Error.Code)
	assert.Len(t, resp.Error.Failed, 1)
}

func TestLog_Empty(t *testing.T) {
	e := newTestEnv(t)
	out, err := e.run(t, "log")
	require.NoError(t, err)
	assert.Contains(t, out, "No entries.")
}
