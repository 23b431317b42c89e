package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/pxflux/internal/tree"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Read returns the value at path and whether it exists.
func (s *Store) Read(ctx context.Context, path string) (any, bool, error) {
	v, err := readSubtree(ctx, s.db, path)
	if err != nil {
		return nil, false, fmt.Errorf("read %q: %w", path, err)
	}
	return v, v != nil, nil
}

// ListChildren returns the children of path sorted by key.
func (s *Store) ListChildren(ctx context.Context, path string) ([]tree.Child, error) {
	v, err := readSubtree(ctx, s.db, path)
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", path, err)
	}
	n := tree.AsNode(v)
	children := make([]tree.Child, 0, len(n))
	for _, k := range tree.SortedKeys(n) {
		children = append(children, tree.Child{Key: k, Value: n[k]})
	}
	return children, nil
}

// Snapshot returns the whole tree.
func (s *Store) Snapshot(ctx context.Context) (tree.Node, error) {
	v, err := readSubtree(ctx, s.db, "")
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	return tree.AsNode(v), nil
}

// Write replaces the value at path. A nil value removes it.
func (s *Store) Write(ctx context.Context, path string, value any) error {
	return s.inTx(ctx, "write "+path, func(tx *sql.Tx) error {
		if err := writePath(ctx, tx, path, value); err != nil {
			return err
		}
		return s.log(ctx, tx, "set", path, value)
	})
}

// Merge writes each field of fields relative to path, leaving siblings
// alone. Nil fields are removed.
func (s *Store) Merge(ctx context.Context, path string, fields map[string]any) error {
	return s.inTx(ctx, "merge "+path, func(tx *sql.Tx) error {
		for _, k := range tree.SortedKeys(fields) {
			if err := writePath(ctx, tx, tree.Join(path, k), fields[k]); err != nil {
				return err
			}
		}
		return s.log(ctx, tx, "update", path, fields)
	})
}

// Remove deletes path and everything below it. Removing an absent path
// succeeds.
func (s *Store) Remove(ctx context.Context, path string) error {
	return s.inTx(ctx, "remove "+path, func(tx *sql.Tx) error {
		if err := deleteSubtree(ctx, tx, path); err != nil {
			return err
		}
		return s.log(ctx, tx, "remove", path, nil)
	})
}

// Update writes several paths in one transaction. Paths must not nest.
func (s *Store) Update(ctx context.Context, values map[string]any) error {
	paths := make([]string, 0, len(values))
	for p := range values {
		paths = append(paths, strings.Trim(p, "/"))
	}
	sort.Strings(paths)
	for i := 1; i < len(paths); i++ {
		if tree.Overlaps(paths[i-1], paths[i]) {
			return fmt.Errorf("update %q and %q: %w", paths[i-1], paths[i], ErrOverlappingPaths)
		}
	}

	return s.inTx(ctx, "multi-path update", func(tx *sql.Tx) error {
		for _, p := range sortedKeys(values) {
			if err := writePath(ctx, tx, p, values[p]); err != nil {
				return err
			}
		}
		return s.log(ctx, tx, "multi", "", values)
	})
}

// PushKey returns a fresh, time-ordered child key for path.
func (s *Store) PushKey(_ context.Context, _ string) (string, error) {
	return s.keys.Generate(), nil
}

func (s *Store) inTx(ctx context.Context, what string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", what, err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return fmt.Errorf("%s: %w", what, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", what, err)
	}
	return nil
}

// writePath replaces the subtree at path with value's leaves.
func writePath(ctx context.Context, q querier, path string, value any) error {
	path = strings.Trim(path, "/")
	if err := deleteSubtree(ctx, q, path); err != nil {
		return err
	}
	leaves := tree.Flatten(path, value)
	if len(leaves) == 0 {
		return nil
	}
	if err := deleteAncestors(ctx, q, path); err != nil {
		return err
	}
	for _, p := range sortedKeys(leaves) {
		enc, err := tree.MarshalCanonical(leaves[p])
		if err != nil {
			return fmt.Errorf("encode %q: %w", p, err)
		}
		if _, err := q.ExecContext(ctx, `INSERT INTO nodes (path, value) VALUES (?, ?)`, p, string(enc)); err != nil {
			return fmt.Errorf("insert %q: %w", p, err)
		}
	}
	return nil
}

// deleteSubtree removes path's own leaf and every leaf below it.
func deleteSubtree(ctx context.Context, q querier, path string) error {
	path = strings.Trim(path, "/")
	var err error
	if path == "" {
		_, err = q.ExecContext(ctx, `DELETE FROM nodes`)
	} else {
		lo, hi := descendantRange(path)
		_, err = q.ExecContext(ctx, `DELETE FROM nodes WHERE path = ? OR (path >= ? AND path < ?)`, path, lo, hi)
	}
	if err != nil {
		return fmt.Errorf("delete subtree %q: %w", path, err)
	}
	return nil
}

// deleteAncestors removes scalar leaves sitting where path needs an
// interior node.
func deleteAncestors(ctx context.Context, q querier, path string) error {
	segs := tree.Split(path)
	for i := 1; i < len(segs); i++ {
		anc := strings.Join(segs[:i], "/")
		if _, err := q.ExecContext(ctx, `DELETE FROM nodes WHERE path = ?`, anc); err != nil {
			return fmt.Errorf("delete ancestor %q: %w", anc, err)
		}
	}
	return nil
}

// readSubtree assembles the value at path from its leaves. Returns nil
// when nothing is stored there.
func readSubtree(ctx context.Context, q querier, path string) (any, error) {
	path = strings.Trim(path, "/")
	var (
		rows *sql.Rows
		err  error
	)
	if path == "" {
		rows, err = q.QueryContext(ctx, `SELECT path, value FROM nodes ORDER BY path`)
	} else {
		lo, hi := descendantRange(path)
		rows, err = q.QueryContext(ctx,
			`SELECT path, value FROM nodes WHERE path = ? OR (path >= ? AND path < ?) ORDER BY path`,
			path, lo, hi)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var root tree.Node
	for rows.Next() {
		var p, raw string
		if err := rows.Scan(&p, &raw); err != nil {
			return nil, err
		}
		v, err := tree.Decode([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("row %q: %w", p, err)
		}
		if p == path {
			return v, rows.Err()
		}
		rel := strings.TrimPrefix(p, path)
		root = tree.SetIn(root, rel, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if root == nil {
		return nil, nil
	}
	return root, nil
}

// descendantRange bounds every path strictly below p: all strings with the
// prefix p+"/" sort between p+"/" and p+"0".
func descendantRange(p string) (string, string) {
	return p + "/", p + "0"
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
