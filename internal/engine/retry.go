package engine

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy bounds how often a failed operation is re-attempted.
// The zero value means a single attempt.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultRetryPolicy makes one attempt per operation. Fan-out is
// best-effort and converges on the next write that touches the entity.
var DefaultRetryPolicy = RetryPolicy{Attempts: 1}

func (p RetryPolicy) attempts() int {
	if p.Attempts < 1 {
		return 1
	}
	return p.Attempts
}

// delay returns the backoff before attempt n (n >= 2): BaseDelay doubled
// per prior retry, capped at MaxDelay.
func (p RetryPolicy) delay(n int) time.Duration {
	d := p.BaseDelay
	for i := 2; i < n; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// do runs fn until it succeeds, attempts run out or ctx ends.
// Context errors and malformed operations are never retried.
func (p RetryPolicy) do(ctx context.Context, fn func(context.Context) error) (int, error) {
	var err error
	n := p.attempts()
	for i := 1; i <= n; i++ {
		if i > 1 {
			if werr := sleep(ctx, p.delay(i)); werr != nil {
				return i - 1, err
			}
		}
		err = fn(ctx)
		if err == nil {
			return i, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return i, err
		}
		var oe *OpError
		if errors.As(err, &oe) && oe.Code == ErrCodeInvalid {
			return i, err
		}
	}
	return n, err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
