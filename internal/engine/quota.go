package engine

import (
	"errors"
	"fmt"
)

// DefaultMaxRounds bounds trigger cascades started by one external write.
const DefaultMaxRounds = 32

// CascadeQuota counts trigger rounds caused by one external write and
// fails once the limit is passed.
//
// Handlers write into paths that fire other handlers. Every rule set
// converges after a few rounds because back-reference payloads are
// idempotent, so a long cascade means two rules disagree about a value.
type CascadeQuota struct {
	limit   int
	current int
}

// NewCascadeQuota creates a quota allowing limit rounds.
func NewCascadeQuota(limit int) *CascadeQuota {
	return &CascadeQuota{limit: limit}
}

// Check counts one round for origin.
func (q *CascadeQuota) Check(origin string) error {
	q.current++
	if q.current > q.limit {
		return &RoundsExceededError{Origin: origin, Rounds: q.current, Limit: q.limit}
	}
	return nil
}

// Current returns the rounds counted so far.
func (q *CascadeQuota) Current() int {
	return q.current
}

// Limit returns the configured maximum.
func (q *CascadeQuota) Limit() int {
	return q.limit
}

// RoundsExceededError is returned when a cascade does not settle.
type RoundsExceededError struct {
	Origin string
	Rounds int
	Limit  int
}

// Error implements the error interface.
func (e *RoundsExceededError) Error() string {
	return fmt.Sprintf("cascade from %s did not settle: %d rounds > %d limit", e.Origin, e.Rounds, e.Limit)
}

// IsRoundsExceeded reports whether err is a RoundsExceededError.
func IsRoundsExceeded(err error) bool {
	var re *RoundsExceededError
	return errors.As(err, &re)
}
