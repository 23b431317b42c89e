package testutil

import "sync"

// StepClock is a deterministic millisecond clock for tests.
//
// Each call to Now advances by Step, starting at Start. Safe for
// concurrent use.
type StepClock struct {
	mu    sync.Mutex
	Start int64
	Step  int64
	n     int64
}

// NewStepClock returns a clock whose first reading is start.
func NewStepClock(start, step int64) *StepClock {
	return &StepClock{Start: start, Step: step}
}

// Now returns the next reading.
func (c *StepClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.Start + c.n*c.Step
	c.n++
	return v
}

// Reset rewinds the clock so the next reading is Start again.
func (c *StepClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = 0
}
