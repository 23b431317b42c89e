// Package identity is the local identity provider: a directory of user and
// player identities with custom claims, and an issuer of signed bearer
// tokens scoped to those claims.
package identity

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/pxflux/internal/tree"
)

//go:embed schema.sql
var schemaSQL string

var (
	// ErrNotFound is returned for unknown identities.
	ErrNotFound = errors.New("identity not found")
	// ErrAlreadyExists is returned when creating an identity twice.
	ErrAlreadyExists = errors.New("identity already exists")
)

// Identity is one directory entry.
type Identity struct {
	UID     string
	Claims  map[string]any
	Created int64
}

// Directory stores identities in SQLite and signs tokens for them.
type Directory struct {
	db     *sql.DB
	signer *Signer
	now    func() time.Time
}

// NewDirectory prepares the identities table on db.
func NewDirectory(db *sql.DB, signer *Signer) (*Directory, error) {
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, fmt.Errorf("identity schema: %w", err)
	}
	return &Directory{db: db, signer: signer, now: time.Now}, nil
}

// Create adds uid with no claims.
func (d *Directory) Create(ctx context.Context, uid string) error {
	if uid == "" {
		return fmt.Errorf("create identity: empty uid")
	}
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO identities (uid, claims, created) VALUES (?, '{}', ?)`,
		uid, d.now().UnixMilli())
	if err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return fmt.Errorf("create %s: %w", uid, ErrAlreadyExists)
		}
		return fmt.Errorf("create %s: %w", uid, err)
	}
	return nil
}

// Get returns uid's entry.
func (d *Directory) Get(ctx context.Context, uid string) (Identity, error) {
	var (
		raw     string
		created int64
	)
	err := d.db.QueryRowContext(ctx,
		`SELECT claims, created FROM identities WHERE uid = ?`, uid).Scan(&raw, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Identity{}, fmt.Errorf("get %s: %w", uid, ErrNotFound)
	}
	if err != nil {
		return Identity{}, fmt.Errorf("get %s: %w", uid, err)
	}
	var claims map[string]any
	if err := json.Unmarshal([]byte(raw), &claims); err != nil {
		return Identity{}, fmt.Errorf("get %s: decode claims: %w", uid, err)
	}
	return Identity{UID: uid, Claims: claims, Created: created}, nil
}

// EnsureIdentity creates uid unless it already exists. Losing a creation
// race counts as success.
func (d *Directory) EnsureIdentity(ctx context.Context, uid string) error {
	_, err := d.Get(ctx, uid)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	if err := d.Create(ctx, uid); err != nil && !errors.Is(err, ErrAlreadyExists) {
		return err
	}
	return nil
}

// SetClaims replaces uid's custom claims. The identity must exist.
func (d *Directory) SetClaims(ctx context.Context, uid string, claims map[string]any) error {
	if claims == nil {
		claims = map[string]any{}
	}
	enc, err := tree.MarshalCanonical(claims)
	if err != nil {
		return fmt.Errorf("set claims %s: %w", uid, err)
	}
	res, err := d.db.ExecContext(ctx, `UPDATE identities SET claims = ? WHERE uid = ?`, string(enc), uid)
	if err != nil {
		return fmt.Errorf("set claims %s: %w", uid, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set claims %s: %w", uid, err)
	}
	if n == 0 {
		return fmt.Errorf("set claims %s: %w", uid, ErrNotFound)
	}
	return nil
}

// Delete removes uid. Deleting an unknown identity succeeds.
func (d *Directory) Delete(ctx context.Context, uid string) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM identities WHERE uid = ?`, uid); err != nil {
		return fmt.Errorf("delete %s: %w", uid, err)
	}
	return nil
}

// List returns identities whose uid starts with prefix, ordered by uid.
func (d *Directory) List(ctx context.Context, prefix string) ([]Identity, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT uid FROM identities ORDER BY uid`)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	var uids []string
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			rows.Close()
			return nil, fmt.Errorf("list identities: %w", err)
		}
		if strings.HasPrefix(uid, prefix) {
			uids = append(uids, uid)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}

	out := make([]Identity, 0, len(uids))
	for _, uid := range uids {
		id, err := d.Get(ctx, uid)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

// MintToken signs a token for uid carrying claims. The identity must
// exist; a token for an unknown owner is never issued.
func (d *Directory) MintToken(ctx context.Context, uid string, claims map[string]any) (string, error) {
	if _, err := d.Get(ctx, uid); err != nil {
		return "", fmt.Errorf("mint token: %w", err)
	}
	return d.signer.Sign(uid, claims, d.now())
}

// VerifyToken checks a token's signature and expiry.
func (d *Directory) VerifyToken(token string) (Claims, error) {
	return d.signer.Verify(token, d.now())
}
