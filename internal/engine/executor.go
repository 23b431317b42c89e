package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/pxflux/internal/plan"
	"github.com/roach88/pxflux/internal/tree"
)

// DefaultMaxConcurrency bounds in-flight operations per run.
const DefaultMaxConcurrency = 3

// Tree is the subset of the store the executor writes through.
type Tree interface {
	Write(ctx context.Context, path string, value any) error
	Merge(ctx context.Context, path string, fields map[string]any) error
	Remove(ctx context.Context, path string) error
}

// BlobDeleter removes stored objects referenced by deleted entities.
type BlobDeleter interface {
	DeleteBlob(ctx context.Context, uri string) error
}

// Failure is one tolerated operation failure.
type Failure struct {
	Op  plan.Operation
	Err error
}

// Report summarizes one Run.
type Report struct {
	RunID   string
	Planned int
	Applied int
	Failed  []Failure
	// Skipped counts operations never claimed because the run aborted.
	Skipped int
}

// OK reports whether every planned operation was applied.
func (r Report) OK() bool {
	return r.Applied == r.Planned
}

// Executor applies plans with bounded concurrency.
type Executor struct {
	tree           Tree
	blobs          BlobDeleter
	maxConcurrency int
	retry          RetryPolicy
	ids            IDGenerator
}

// Option configures an Executor.
type Option func(*Executor)

// WithMaxConcurrency sets the worker count. Values below 1 are ignored.
func WithMaxConcurrency(n int) Option {
	return func(e *Executor) {
		if n >= 1 {
			e.maxConcurrency = n
		}
	}
}

// WithRetry sets the per-operation retry policy.
func WithRetry(p RetryPolicy) Option {
	return func(e *Executor) {
		e.retry = p
	}
}

// WithIDGenerator sets the run id source.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Executor) {
		e.ids = g
	}
}

// NewExecutor creates an executor writing to t. blobs may be nil when no
// plan carries blob deletions.
func NewExecutor(t Tree, blobs BlobDeleter, opts ...Option) *Executor {
	e := &Executor{
		tree:           t,
		blobs:          blobs,
		maxConcurrency: DefaultMaxConcurrency,
		retry:          DefaultRetryPolicy,
		ids:            UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxConcurrency returns the configured worker count.
func (e *Executor) MaxConcurrency() int {
	return e.maxConcurrency
}

// Run applies every operation of p.
//
// It returns once each operation has been attempted, or early when a
// critical operation fails. The returned error is nil unless the plan is
// invalid, ctx ends, or a critical operation failed; tolerated failures are
// only reported.
func (e *Executor) Run(ctx context.Context, p plan.Plan) (Report, error) {
	report := Report{RunID: e.ids.Generate(), Planned: p.Len()}

	tracer := otel.Tracer("pxflux/engine")
	var span trace.Span
	ctx, span = tracer.Start(ctx, "Executor.Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("run_id", report.RunID),
		attribute.Int("operations", p.Len()),
	)

	if err := p.Validate(); err != nil {
		err = fmt.Errorf("%w: %v", ErrInvalidPlan, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return report, err
	}
	if p.Empty() {
		span.SetStatus(codes.Ok, "")
		return report, nil
	}

	q := newWorkQueue(p.Ops)
	workers := min(e.maxConcurrency, p.Len())

	var (
		applied  atomic.Int64
		mu       sync.Mutex
		failures []Failure
	)

	g, gctx := errgroup.WithContext(ctx)
	for range workers {
		g.Go(func() error {
			for {
				if err := gctx.Err(); err != nil {
					return err
				}
				op, ok := q.Claim()
				if !ok {
					return nil
				}
				err := e.apply(gctx, op)
				if err == nil {
					applied.Add(1)
					continue
				}
				if op.Critical {
					q.Close()
					return err
				}
				slog.Warn("operation failed, continuing",
					"run_id", report.RunID,
					"op", op.String(),
					"error", err)
				mu.Lock()
				failures = append(failures, Failure{Op: op, Err: err})
				mu.Unlock()
			}
		})
	}
	err := g.Wait()

	report.Applied = int(applied.Load())
	report.Failed = failures
	report.Skipped = q.Len()

	span.SetAttributes(
		attribute.Int("applied", report.Applied),
		attribute.Int("failed", len(report.Failed)),
		attribute.Int("skipped", report.Skipped),
	)
	if err != nil {
		slog.Error("plan aborted",
			"run_id", report.RunID,
			"applied", report.Applied,
			"skipped", report.Skipped,
			"error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return report, err
	}

	slog.Debug("plan applied",
		"run_id", report.RunID,
		"applied", report.Applied,
		"failed", len(report.Failed))
	span.SetStatus(codes.Ok, "")
	return report, nil
}

// apply runs one operation under the retry policy.
func (e *Executor) apply(ctx context.Context, op plan.Operation) error {
	tracer := otel.Tracer("pxflux/engine")
	var span trace.Span
	ctx, span = tracer.Start(ctx, "Executor.apply")
	defer span.End()
	span.SetAttributes(
		attribute.String("kind", op.Kind.String()),
		attribute.String("target", op.Target()),
		attribute.Bool("critical", op.Critical),
	)

	code := ErrCodeStore
	if op.Kind == plan.DeleteBlob {
		code = ErrCodeBlob
	}

	attempts, err := e.retry.do(ctx, func(ctx context.Context) error {
		return e.dispatch(ctx, op)
	})
	if err != nil {
		if _, ok := err.(*OpError); ok {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		oe := &OpError{Code: code, Op: op, Attempts: attempts, Err: err}
		span.RecordError(oe)
		span.SetStatus(codes.Error, oe.Error())
		return oe
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (e *Executor) dispatch(ctx context.Context, op plan.Operation) error {
	switch op.Kind {
	case plan.Set:
		return e.tree.Write(ctx, op.Path, op.Payload)
	case plan.Update:
		fields := tree.AsNode(op.Payload)
		if fields == nil {
			return &OpError{Code: ErrCodeInvalid, Op: op, Attempts: 1, Err: fmt.Errorf("update payload is %T, want object", op.Payload)}
		}
		return e.tree.Merge(ctx, op.Path, fields)
	case plan.Remove:
		return e.tree.Remove(ctx, op.Path)
	case plan.DeleteBlob:
		if e.blobs == nil {
			return &OpError{Code: ErrCodeInvalid, Op: op, Attempts: 1, Err: fmt.Errorf("no blob deleter configured")}
		}
		return e.blobs.DeleteBlob(ctx, op.URI)
	default:
		return &OpError{Code: ErrCodeInvalid, Op: op, Attempts: 1, Err: fmt.Errorf("unknown operation kind %v", op.Kind)}
	}
}
