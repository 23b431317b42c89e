package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStepClock_Advances(t *testing.T) {
	c := NewStepClock(1000, 10)
	assert.Equal(t, int64(1000), c.Now())
	assert.Equal(t, int64(1010), c.Now())
	assert.Equal(t, int64(1020), c.Now())

	c.Reset()
	assert.Equal(t, int64(1000), c.Now())
}

func TestStepClock_Concurrent(t *testing.T) {
	c := NewStepClock(0, 1)

	var wg sync.WaitGroup
	seen := make(chan int64, 100)
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen <- c.Now()
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[int64]bool)
	for v := range seen {
		unique[v] = true
	}
	assert.Len(t, unique, 100)
}
