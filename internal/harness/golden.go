package harness

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/pxflux/internal/tree"
)

// Snapshot is the golden form of a scenario run: each step's origin,
// settle rounds and grant, plus the final tree.
func Snapshot(name string, result *Result) ([]byte, error) {
	steps := make([]any, len(result.Steps))
	for i, s := range result.Steps {
		m := map[string]any{
			"origin": s.Origin,
			"rounds": s.Rounds,
		}
		if s.Grant != nil {
			g := map[string]any{"token": s.Grant.Token}
			if s.Grant.AccountID != "" {
				g["accountId"] = s.Grant.AccountID
			}
			if s.Grant.PlayerID != "" {
				g["playerId"] = s.Grant.PlayerID
			}
			m["grant"] = g
		}
		if len(s.Failed) > 0 {
			failed := make([]any, len(s.Failed))
			for j, p := range s.Failed {
				failed[j] = p
			}
			m["failed"] = failed
		}
		steps[i] = m
	}

	final := result.Tree
	if final == nil {
		final = tree.Node{}
	}
	canonical, err := tree.MarshalCanonical(map[string]any{
		"name":  name,
		"steps": steps,
		"tree":  final,
	})
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	if err := json.Indent(&out, canonical, "", "  "); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := Snapshot(name, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
