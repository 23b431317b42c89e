package cli

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/pxflux/internal/handlers"
	"github.com/roach88/pxflux/internal/tree"
)

// dryRun reads through to a real tree and records every mutation instead
// of applying it. It also stands in for the identity provider.
type dryRun struct {
	base handlers.Tree

	mu   sync.Mutex
	ops  []string
	keys int
}

func newDryRun(base handlers.Tree) *dryRun {
	return &dryRun{base: base}
}

func (d *dryRun) record(format string, args ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ops = append(d.ops, fmt.Sprintf(format, args...))
}

// Operations returns the recorded mutations, sorted.
func (d *dryRun) Operations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	ops := append([]string(nil), d.ops...)
	sort.Strings(ops)
	return ops
}

func (d *dryRun) Read(ctx context.Context, path string) (any, bool, error) {
	return d.base.Read(ctx, path)
}

func (d *dryRun) ListChildren(ctx context.Context, path string) ([]tree.Child, error) {
	return d.base.ListChildren(ctx, path)
}

func (d *dryRun) PushKey(_ context.Context, path string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.keys++
	return fmt.Sprintf("dry-run-key-%d", d.keys), nil
}

func (d *dryRun) Write(_ context.Context, path string, value any) error {
	if value == nil {
		d.record("remove %s", path)
		return nil
	}
	d.record("set %s %s", path, render(value))
	return nil
}

func (d *dryRun) Merge(_ context.Context, path string, fields map[string]any) error {
	d.record("merge %s %s", path, render(fields))
	return nil
}

func (d *dryRun) Remove(_ context.Context, path string) error {
	d.record("remove %s", path)
	return nil
}

func (d *dryRun) DeleteBlob(_ context.Context, uri string) error {
	d.record("delete-blob %s", uri)
	return nil
}

func (d *dryRun) EnsureIdentity(_ context.Context, uid string) error {
	d.record("ensure-identity %s", uid)
	return nil
}

func (d *dryRun) SetClaims(_ context.Context, uid string, claims map[string]any) error {
	d.record("set-claims %s %s", uid, render(claims))
	return nil
}

func (d *dryRun) MintToken(_ context.Context, uid string, _ map[string]any) (string, error) {
	d.record("mint-token %s", uid)
	return "dry-run-token:" + uid, nil
}

func render(v any) string {
	b, err := tree.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
