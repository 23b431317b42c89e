// Package emulator plays the role of the hosting platform locally: it
// applies a write to the store, works out which triggers fired, runs their
// handlers and repeats with the handlers' own writes until the tree stops
// changing.
package emulator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/pxflux/internal/engine"
	"github.com/roach88/pxflux/internal/handlers"
	"github.com/roach88/pxflux/internal/tree"
)

// Store is a tree that can be snapshotted.
type Store interface {
	Snapshot(ctx context.Context) (tree.Node, error)
	Write(ctx context.Context, path string, value any) error
	Merge(ctx context.Context, path string, fields map[string]any) error
	Remove(ctx context.Context, path string) error
}

// Dispatcher runs the handler of one event.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev handlers.Event) error
}

// Write ops.
const (
	OpSet    = "set"
	OpMerge  = "merge"
	OpRemove = "remove"
)

// Write is an external client write.
type Write struct {
	Op    string `yaml:"op" json:"op"`
	Path  string `yaml:"path" json:"path"`
	Value any    `yaml:"value,omitempty" json:"value,omitempty"`
}

// Failure is a handler invocation that returned an error.
type Failure struct {
	Path string
	Err  error
}

// Result summarizes one settled cascade.
type Result struct {
	Rounds int
	// Fired lists the trigger paths of every round, in order.
	Fired  [][]string
	Failed []Failure
}

// OK reports whether every handler succeeded.
func (r Result) OK() bool { return len(r.Failed) == 0 }

// Emulator drives handlers from store changes.
type Emulator struct {
	store     Store
	handlers  Dispatcher
	patterns  []string
	maxRounds int
}

// Option configures an Emulator.
type Option func(*Emulator)

// WithMaxRounds bounds cascades. Values below 1 are ignored.
func WithMaxRounds(n int) Option {
	return func(e *Emulator) {
		if n >= 1 {
			e.maxRounds = n
		}
	}
}

// New returns an emulator firing the standard trigger patterns.
func New(s Store, d Dispatcher, opts ...Option) *Emulator {
	e := &Emulator{
		store:     s,
		handlers:  d,
		patterns:  handlers.Patterns,
		maxRounds: engine.DefaultMaxRounds,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply performs w and settles the cascade it starts.
func (e *Emulator) Apply(ctx context.Context, w Write) (Result, error) {
	return e.Run(ctx, w.Path, func(ctx context.Context) error {
		switch w.Op {
		case OpSet, "":
			return e.store.Write(ctx, w.Path, w.Value)
		case OpMerge:
			fields := tree.AsNode(w.Value)
			if fields == nil {
				return fmt.Errorf("merge %q: value must be an object", w.Path)
			}
			return e.store.Merge(ctx, w.Path, fields)
		case OpRemove:
			return e.store.Remove(ctx, w.Path)
		default:
			return fmt.Errorf("unknown write op %q", w.Op)
		}
	})
}

// Run calls fn, then settles whatever it changed. origin names the cause
// in logs and errors.
func (e *Emulator) Run(ctx context.Context, origin string, fn func(context.Context) error) (Result, error) {
	before, err := e.store.Snapshot(ctx)
	if err != nil {
		return Result{}, err
	}
	if err := fn(ctx); err != nil {
		return Result{}, fmt.Errorf("%s: %w", origin, err)
	}
	return e.settle(ctx, origin, before)
}

func (e *Emulator) settle(ctx context.Context, origin string, prev tree.Node) (Result, error) {
	var res Result
	quota := engine.NewCascadeQuota(e.maxRounds)
	for {
		cur, err := e.store.Snapshot(ctx)
		if err != nil {
			return res, err
		}
		events := Diff(prev, cur, e.patterns)
		if len(events) == 0 {
			slog.Debug("cascade settled", "origin", origin, "rounds", res.Rounds)
			return res, nil
		}
		if err := quota.Check(origin); err != nil {
			return res, err
		}
		res.Rounds++
		prev = cur

		fired := make([]string, 0, len(events))
		for _, ev := range events {
			fired = append(fired, ev.Path)
			if err := e.handlers.Dispatch(ctx, ev); err != nil {
				slog.Warn("handler failed", "origin", origin, "path", ev.Path, "error", err)
				res.Failed = append(res.Failed, Failure{Path: ev.Path, Err: err})
			}
		}
		res.Fired = append(res.Fired, fired)
	}
}
