// Package handlers binds the fan-out rules to the executor.
//
// Each exported method reacts to one kind of event: a write under a
// trigger path, an auth lifecycle event, or a callable request. A handler
// reads whatever extra state its rule needs, builds a plan, short-circuits
// when the plan is empty and otherwise hands it to the executor.
//
// Malformed input is not an error: the handler logs and returns nil. An
// error return means the host should redeliver the event; every plan is
// idempotent so redelivery converges.
package handlers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/pxflux/internal/billing"
	"github.com/roach88/pxflux/internal/engine"
	"github.com/roach88/pxflux/internal/plan"
	"github.com/roach88/pxflux/internal/tree"
)

var (
	// ErrInvalidPin is returned by VerifyPin for unknown or unusable pins.
	ErrInvalidPin = errors.New("invalid pin")
	// ErrUnauthenticated is returned for callables invoked without a caller.
	ErrUnauthenticated = errors.New("caller is not authenticated")
	// ErrNotMember is returned when switching to an account the caller
	// does not belong to.
	ErrNotMember = errors.New("caller is not a member of the account")
	// ErrBillingDisabled is returned when no billing service is configured.
	ErrBillingDisabled = errors.New("billing is not configured")
)

// Tree is the store the handlers read and write.
type Tree interface {
	engine.Tree
	Read(ctx context.Context, path string) (any, bool, error)
	ListChildren(ctx context.Context, path string) ([]tree.Child, error)
	PushKey(ctx context.Context, path string) (string, error)
}

// Auth is the identity provider.
type Auth interface {
	// EnsureIdentity creates uid when missing. Implementations may report
	// identity.ErrAlreadyExists after losing a creation race.
	EnsureIdentity(ctx context.Context, uid string) error
	SetClaims(ctx context.Context, uid string, claims map[string]any) error
	MintToken(ctx context.Context, uid string, claims map[string]any) (string, error)
}

// PinConsumer atomically reads and deletes a pin record. Unknown pins are
// reported with an error wrapping tree.ErrNotFound.
type PinConsumer interface {
	ConsumePin(ctx context.Context, pin string) (tree.Node, error)
}

// Deps are the collaborators of the handlers. Tree and Auth are required.
type Deps struct {
	Tree  Tree
	Auth  Auth
	Blobs engine.BlobDeleter
	Pins  PinConsumer
	// Billing may be nil; billing callables then fail.
	Billing *billing.Service
	// Executor defaults to one over Tree and Blobs.
	Executor *engine.Executor
	// PlayerIDs defaults to 20 random bytes in hex.
	PlayerIDs engine.IDGenerator
	// Now returns milliseconds since the epoch. Defaults to the wall clock.
	Now func() int64
}

// Options tune handler behavior.
type Options struct {
	// KeepPinAccountID leaves accountId on a pin record after its token has
	// been issued. Without it the record holds only the token and the
	// account's players are what tie issued pins to the account.
	KeepPinAccountID bool
}

// Handlers reacts to events.
type Handlers struct {
	tree      Tree
	auth      Auth
	pins      PinConsumer
	billing   *billing.Service
	exec      *engine.Executor
	playerIDs engine.IDGenerator
	now       func() int64
	opts      Options
}

// New wires the handlers.
func New(d Deps, opts Options) *Handlers {
	h := &Handlers{
		tree:      d.Tree,
		auth:      d.Auth,
		pins:      d.Pins,
		billing:   d.Billing,
		exec:      d.Executor,
		playerIDs: d.PlayerIDs,
		now:       d.Now,
		opts:      opts,
	}
	if h.exec == nil {
		h.exec = engine.NewExecutor(d.Tree, d.Blobs)
	}
	if h.playerIDs == nil {
		h.playerIDs = randomPlayerIDs{}
	}
	if h.now == nil {
		h.now = func() int64 { return time.Now().UnixMilli() }
	}
	return h
}

// randomPlayerIDs generates 40-character hex player ids.
type randomPlayerIDs struct{}

func (randomPlayerIDs) Generate() string {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("player id: %v", err))
	}
	return hex.EncodeToString(b)
}

func (h *Handlers) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer("pxflux/handlers")
	var span trace.Span
	ctx, span = tracer.Start(ctx, "Handlers."+name)
	span.SetAttributes(attrs...)
	return ctx, span
}

func fail(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// apply runs p and logs the outcome. Tolerated failures are logged by the
// executor and do not fail the event.
func (h *Handlers) apply(ctx context.Context, event string, p plan.Plan) error {
	if p.Empty() {
		slog.Debug("nothing to sync", "event", event)
		return nil
	}
	report, err := h.exec.Run(ctx, p)
	if err != nil {
		slog.Error("handler aborted",
			"event", event,
			"run_id", report.RunID,
			"applied", report.Applied,
			"skipped", report.Skipped,
			"error", err)
		return fmt.Errorf("%s: %w", event, err)
	}
	slog.Info("plan applied",
		"event", event,
		"run_id", report.RunID,
		"planned", report.Planned,
		"applied", report.Applied,
		"failed", len(report.Failed))
	return nil
}

func (h *Handlers) readNode(ctx context.Context, path string) (tree.Node, error) {
	v, _, err := h.tree.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	return tree.AsNode(v), nil
}
