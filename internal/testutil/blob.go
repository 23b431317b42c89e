package testutil

import (
	"context"
	"slices"
	"sync"
)

// BlobRecorder records deletions instead of performing them.
type BlobRecorder struct {
	mu      sync.Mutex
	deleted []string

	// Err, when set, fails every deletion.
	Err error
}

func (b *BlobRecorder) DeleteBlob(_ context.Context, uri string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return b.Err
	}
	b.deleted = append(b.deleted, uri)
	return nil
}

// Deleted returns the deleted URIs, sorted.
func (b *BlobRecorder) Deleted() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := slices.Clone(b.deleted)
	slices.Sort(out)
	return out
}
