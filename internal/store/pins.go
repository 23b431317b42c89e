package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/pxflux/internal/tree"
)

// PinsPath is the collection holding player pins.
const PinsPath = "player-pins"

// ConsumePin reads and deletes player-pins/{pin} in one transaction, so a
// pin can be exchanged at most once. Returns ErrNotFound for unknown pins.
func (s *Store) ConsumePin(ctx context.Context, pin string) (tree.Node, error) {
	if pin == "" {
		return nil, fmt.Errorf("consume pin: empty pin: %w", ErrNotFound)
	}
	path := tree.Join(PinsPath, pin)

	var record tree.Node
	err := s.inTx(ctx, "consume pin "+pin, func(tx *sql.Tx) error {
		v, err := readSubtree(ctx, tx, path)
		if err != nil {
			return err
		}
		record = tree.AsNode(v)
		if record == nil {
			return ErrNotFound
		}
		if err := deleteSubtree(ctx, tx, path); err != nil {
			return err
		}
		return s.log(ctx, tx, "consume", path, nil)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}
