// Package firestoretree stores the sync tree in Cloud Firestore.
//
// The first two path segments name a document (collection/doc). Deeper
// segments address nested fields inside that document, so
// accounts/a1/artists/x1/title is field artists.x1.title of document
// accounts/a1.
package firestoretree

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/roach88/pxflux/internal/tree"
)

// ErrNotFound is returned by ConsumePin for unknown pins.
var ErrNotFound = tree.ErrNotFound

// ErrShallowWrite is returned for writes that would replace a whole
// collection or the root.
var ErrShallowWrite = errors.New("write must address a document or a field")

// Location is a tree path split into Firestore coordinates.
type Location struct {
	Collection string
	Doc        string
	Field      firestore.FieldPath
}

// Locate maps path onto Firestore.
func Locate(path string) Location {
	segs := tree.Split(path)
	var loc Location
	if len(segs) > 0 {
		loc.Collection = segs[0]
	}
	if len(segs) > 1 {
		loc.Doc = segs[1]
	}
	if len(segs) > 2 {
		loc.Field = firestore.FieldPath(segs[2:])
	}
	return loc
}

// IsDocument reports whether loc addresses a whole document.
func (l Location) IsDocument() bool { return l.Doc != "" && len(l.Field) == 0 }

// Tree is a tree store over a Firestore client.
type Tree struct {
	client *firestore.Client
}

// New wraps client.
func New(client *firestore.Client) *Tree {
	return &Tree{client: client}
}

func (t *Tree) doc(loc Location) *firestore.DocumentRef {
	return t.client.Collection(loc.Collection).Doc(loc.Doc)
}

// Read returns the value at path.
func (t *Tree) Read(ctx context.Context, path string) (any, bool, error) {
	loc := Locate(path)
	switch {
	case loc.Collection == "":
		return nil, false, fmt.Errorf("read root: %w", ErrShallowWrite)
	case loc.Doc == "":
		children, err := t.ListChildren(ctx, path)
		if err != nil {
			return nil, false, err
		}
		if len(children) == 0 {
			return nil, false, nil
		}
		n := make(tree.Node, len(children))
		for _, c := range children {
			n[c.Key] = c.Value
		}
		return n, true, nil
	}

	snap, err := t.doc(loc).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %q: %w", path, err)
	}
	if loc.IsDocument() {
		return tree.Normalize(snap.Data()), true, nil
	}
	v, ok := tree.Lookup(snap.Data(), tree.Join(loc.Field...))
	if !ok {
		return nil, false, nil
	}
	v = tree.Normalize(v)
	return v, v != nil, nil
}

// ListChildren returns the children of path sorted by key.
func (t *Tree) ListChildren(ctx context.Context, path string) ([]tree.Child, error) {
	loc := Locate(path)
	if loc.Collection != "" && loc.Doc == "" {
		return t.listDocuments(ctx, loc.Collection)
	}
	v, _, err := t.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	n := tree.AsNode(v)
	out := make([]tree.Child, 0, len(n))
	for _, k := range tree.SortedKeys(n) {
		out = append(out, tree.Child{Key: k, Value: n[k]})
	}
	return out, nil
}

func (t *Tree) listDocuments(ctx context.Context, collection string) ([]tree.Child, error) {
	iter := t.client.Collection(collection).Documents(ctx)
	defer iter.Stop()

	byKey := make(tree.Node)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list %q: %w", collection, err)
		}
		byKey[snap.Ref.ID] = tree.Normalize(snap.Data())
	}
	out := make([]tree.Child, 0, len(byKey))
	for _, k := range tree.SortedKeys(byKey) {
		out = append(out, tree.Child{Key: k, Value: byKey[k]})
	}
	return out, nil
}

// Write replaces the value at path. A nil value removes it.
func (t *Tree) Write(ctx context.Context, path string, value any) error {
	value = tree.Normalize(value)
	if value == nil {
		return t.Remove(ctx, path)
	}
	loc := Locate(path)
	if loc.Doc == "" {
		return fmt.Errorf("write %q: %w", path, ErrShallowWrite)
	}
	if loc.IsDocument() {
		n := tree.AsNode(value)
		if n == nil {
			return fmt.Errorf("write %q: document value must be an object", path)
		}
		if _, err := t.doc(loc).Set(ctx, n); err != nil {
			return fmt.Errorf("write %q: %w", path, err)
		}
		return nil
	}
	if _, err := t.doc(loc).Set(ctx, nest(loc.Field, value), firestore.Merge(loc.Field)); err != nil {
		return fmt.Errorf("write %q: %w", path, err)
	}
	return nil
}

// Merge writes each field relative to path, leaving siblings alone. Nil
// fields are removed.
func (t *Tree) Merge(ctx context.Context, path string, fields map[string]any) error {
	values := make(map[string]any, len(fields))
	for k, v := range fields {
		values[tree.Join(path, k)] = v
	}
	return t.Update(ctx, values)
}

// Remove deletes path. Removing an absent path succeeds.
func (t *Tree) Remove(ctx context.Context, path string) error {
	loc := Locate(path)
	switch {
	case loc.Doc == "":
		return fmt.Errorf("remove %q: %w", path, ErrShallowWrite)
	case loc.IsDocument():
		if _, err := t.doc(loc).Delete(ctx); err != nil {
			return fmt.Errorf("remove %q: %w", path, err)
		}
		return nil
	}
	_, err := t.doc(loc).Update(ctx, []firestore.Update{{FieldPath: loc.Field, Value: firestore.Delete}})
	if status.Code(err) == codes.NotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("remove %q: %w", path, err)
	}
	return nil
}

// Update writes several paths in one batch. Paths must not nest.
func (t *Tree) Update(ctx context.Context, values map[string]any) error {
	paths := tree.SortedKeys(values)
	for i := 1; i < len(paths); i++ {
		if tree.Overlaps(paths[i-1], paths[i]) {
			return fmt.Errorf("update %q and %q overlap", paths[i-1], paths[i])
		}
	}

	batch := t.client.Batch()
	for _, p := range paths {
		loc := Locate(p)
		v := tree.Normalize(values[p])
		switch {
		case loc.Doc == "":
			return fmt.Errorf("update %q: %w", p, ErrShallowWrite)
		case loc.IsDocument() && v == nil:
			batch.Delete(t.doc(loc))
		case loc.IsDocument():
			n := tree.AsNode(v)
			if n == nil {
				return fmt.Errorf("update %q: document value must be an object", p)
			}
			batch.Set(t.doc(loc), n)
		case v == nil:
			batch.Set(t.doc(loc), nest(loc.Field, firestore.Delete), firestore.Merge(loc.Field))
		default:
			batch.Set(t.doc(loc), nest(loc.Field, v), firestore.Merge(loc.Field))
		}
	}
	if len(paths) == 0 {
		return nil
	}
	if _, err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("multi-path update: %w", err)
	}
	return nil
}

// PushKey returns a fresh document id for the collection at path.
func (t *Tree) PushKey(_ context.Context, path string) (string, error) {
	loc := Locate(path)
	if loc.Collection == "" {
		return "", fmt.Errorf("push key at root: %w", ErrShallowWrite)
	}
	return t.client.Collection(loc.Collection).NewDoc().ID, nil
}

// ConsumePin reads and deletes player-pins/{pin} in one transaction.
func (t *Tree) ConsumePin(ctx context.Context, pin string) (tree.Node, error) {
	if pin == "" {
		return nil, fmt.Errorf("consume pin: empty pin: %w", ErrNotFound)
	}
	ref := t.client.Collection("player-pins").Doc(pin)
	var record tree.Node
	err := t.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		record = tree.AsNode(tree.Normalize(snap.Data()))
		return tx.Delete(ref)
	})
	if err != nil {
		return nil, fmt.Errorf("consume pin %s: %w", pin, err)
	}
	return record, nil
}

// nest wraps value in one map per field path segment.
func nest(fp firestore.FieldPath, value any) map[string]any {
	var out any = value
	for i := len(fp) - 1; i >= 0; i-- {
		out = map[string]any{fp[i]: out}
	}
	return out.(map[string]any)
}
