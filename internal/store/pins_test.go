package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsumePin(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.Write(ctx, "player-pins/1234", map[string]any{"accountId": "A1", "playerId": "p1"}))

	rec, err := s.ConsumePin(ctx, "1234")
	require.NoError(t, err)
	assert.Equal(t, "A1", rec["accountId"])
	assert.Equal(t, "p1", rec["playerId"])

	_, ok, err := s.Read(ctx, "player-pins/1234")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.ConsumePin(ctx, "1234")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConsumePin_Empty(t *testing.T) {
	_, err := createTestStore(t).ConsumePin(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConsumePin_OnlyOnce(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	require.NoError(t, s.Write(ctx, "player-pins/9999", map[string]any{"accountId": "A1"}))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.ConsumePin(ctx, "9999"); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, successes)
}
