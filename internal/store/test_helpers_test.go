package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/pxflux/internal/engine"
)

// createTestStore opens a store in a fresh temp directory.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	opts = append([]Option{WithClock(func() int64 { return 1700000000000 })}, opts...)
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func fixedKeys(ids ...string) Option {
	return WithKeyGenerator(engine.NewFixedGenerator(ids...))
}
