package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/pxflux/internal/testutil"
	"github.com/roach88/pxflux/internal/tree"
)

// AssertionContext is the state assertions are evaluated against.
type AssertionContext struct {
	Tree  tree.Node
	Auth  *testutil.FakeAuth
	Blobs *testutil.BlobRecorder
}

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Path     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s", e.Type)
	if e.Path != "" {
		fmt.Fprintf(&buf, " at %s", e.Path)
	}
	fmt.Fprintf(&buf, "\n  Expected: %s\n  Actual: %s", e.Expected, e.Actual)
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure
// messages in order.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var msgs []string
	for _, a := range assertions {
		if err := evaluate(a, actx); err != nil {
			msgs = append(msgs, err.Error())
		}
	}
	return msgs
}

func evaluate(a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertEquals:
		return assertEquals(actx.Tree, a)
	case AssertAbsent:
		return assertAbsent(actx.Tree, a)
	case AssertFields:
		return assertFields(actx.Tree, a)
	case AssertClaims:
		return assertClaims(actx.Auth, a)
	case AssertBlobsDeleted:
		return assertBlobsDeleted(actx.Blobs, a)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

func assertEquals(root tree.Node, a Assertion) error {
	got, ok := tree.Lookup(root, a.Path)
	if ok && tree.Equal(got, a.Value) {
		return nil
	}
	return &AssertionError{
		Type:     AssertEquals,
		Path:     a.Path,
		Expected: render(a.Value),
		Actual:   renderLookup(got, ok),
	}
}

func assertAbsent(root tree.Node, a Assertion) error {
	got, ok := tree.Lookup(root, a.Path)
	if !ok {
		return nil
	}
	return &AssertionError{
		Type:     AssertAbsent,
		Path:     a.Path,
		Expected: "nothing",
		Actual:   render(got),
	}
}

// assertFields is a subset match: extra fields at path are allowed.
func assertFields(root tree.Node, a Assertion) error {
	got, ok := tree.Lookup(root, a.Path)
	node := tree.AsNode(got)
	if !ok || node == nil {
		return &AssertionError{
			Type:     AssertFields,
			Path:     a.Path,
			Expected: render(a.Fields),
			Actual:   renderLookup(got, ok),
		}
	}
	for _, k := range tree.SortedKeys(a.Fields) {
		if !tree.Equal(node[k], a.Fields[k]) {
			return &AssertionError{
				Type:     AssertFields,
				Path:     tree.Join(a.Path, k),
				Expected: render(a.Fields[k]),
				Actual:   render(node[k]),
			}
		}
	}
	return nil
}

func assertClaims(auth *testutil.FakeAuth, a Assertion) error {
	got := auth.Claims(a.UID)
	if tree.Equal(map[string]any(got), map[string]any(a.Claims)) {
		return nil
	}
	return &AssertionError{
		Type:     AssertClaims,
		Path:     a.UID,
		Expected: render(a.Claims),
		Actual:   render(got),
	}
}

func assertBlobsDeleted(blobs *testutil.BlobRecorder, a Assertion) error {
	got := slices.Clone(blobs.Deleted())
	want := slices.Clone(a.Blobs)
	slices.Sort(got)
	slices.Sort(want)
	if slices.Equal(got, want) {
		return nil
	}
	return &AssertionError{
		Type:     AssertBlobsDeleted,
		Expected: fmt.Sprintf("%v", want),
		Actual:   fmt.Sprintf("%v", got),
	}
}

func renderLookup(v any, ok bool) string {
	if !ok {
		return "nothing"
	}
	return render(v)
}

func render(v any) string {
	data, err := tree.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
