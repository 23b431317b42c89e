package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/pxflux/internal/tree"
)

// Entry is one applied mutation.
type Entry struct {
	Seq   int64  `json:"seq"`
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
	At    int64  `json:"at"`
}

func (s *Store) log(ctx context.Context, tx *sql.Tx, op, path string, value any) error {
	var enc sql.NullString
	if value != nil {
		b, err := tree.MarshalCanonical(value)
		if err != nil {
			return fmt.Errorf("encode oplog value: %w", err)
		}
		enc = sql.NullString{String: string(b), Valid: true}
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO oplog (op, path, value, at) VALUES (?, ?, ?, ?)`,
		op, path, enc, s.now())
	if err != nil {
		return fmt.Errorf("append oplog: %w", err)
	}
	return nil
}

// History returns the most recent limit entries, oldest first. A limit of
// zero or less returns everything. A non-empty prefix keeps only entries
// at or below that path.
func (s *Store) History(ctx context.Context, prefix string, limit int) ([]Entry, error) {
	query := `SELECT seq, op, path, value, at FROM oplog`
	var args []any
	if prefix != "" {
		lo, hi := descendantRange(prefix)
		query += ` WHERE path = ? OR (path >= ? AND path < ?)`
		args = append(args, prefix, lo, hi)
	}
	query += ` ORDER BY seq DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e   Entry
			raw sql.NullString
		)
		if err := rows.Scan(&e.Seq, &e.Op, &e.Path, &raw, &e.At); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		if raw.Valid {
			v, err := tree.Decode([]byte(raw.String))
			if err != nil {
				return nil, fmt.Errorf("history: seq %d: %w", e.Seq, err)
			}
			e.Value = v
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}
