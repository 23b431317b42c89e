package harness

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/pxflux/internal/emulator"
	"github.com/roach88/pxflux/internal/engine"
	"github.com/roach88/pxflux/internal/handlers"
	"github.com/roach88/pxflux/internal/store"
	"github.com/roach88/pxflux/internal/testutil"
	"github.com/roach88/pxflux/internal/tree"
)

// FrozenTime is the clock reading of every scenario, in milliseconds.
const FrozenTime int64 = 1700000000000

// Harness holds the wiring of one scenario run.
type Harness struct {
	store    *store.Store
	auth     *testutil.FakeAuth
	blobs    *testutil.BlobRecorder
	handlers *handlers.Handlers
	emu      *emulator.Emulator
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database. A non-nil error means
// the harness itself failed; scenario failures are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()
	clock := testutil.NewStepClock(FrozenTime, 0)

	st, err := store.Open(":memory:",
		store.WithClock(clock.Now),
		store.WithKeyGenerator(testutil.NewSequenceGenerator("acct")))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	if err := seed(ctx, st, scenario.Seed); err != nil {
		return nil, fmt.Errorf("failed to seed tree: %w", err)
	}

	auth := testutil.NewFakeAuth(scenario.Identities...)
	blobs := &testutil.BlobRecorder{}
	h := handlers.New(handlers.Deps{
		Tree:      st,
		Auth:      auth,
		Blobs:     blobs,
		Pins:      st,
		Executor:  engine.NewExecutor(st, blobs, engine.WithIDGenerator(testutil.NewSequenceGenerator("run"))),
		PlayerIDs: testutil.NewSequenceGenerator("player"),
		Now:       clock.Now,
	}, handlers.Options{KeepPinAccountID: scenario.Options.KeepPinAccountID})

	hs := &Harness{
		store:    st,
		auth:     auth,
		blobs:    blobs,
		handlers: h,
		emu:      emulator.New(st, h),
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		sr, errs := hs.executeStep(ctx, step)
		result.Steps = append(result.Steps, sr)
		for _, msg := range checkStepErrors(step, errs) {
			result.AddError(fmt.Sprintf("step %d (%s): %s", i, sr.Origin, msg))
		}
	}

	final, err := st.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot tree: %w", err)
	}
	result.Tree = final

	actx := &AssertionContext{Tree: final, Auth: auth, Blobs: blobs}
	for _, msg := range EvaluateAssertions(scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// seed writes each top-level subtree directly, bypassing the emulator.
func seed(ctx context.Context, st *store.Store, initial tree.Node) error {
	for _, key := range tree.SortedKeys(initial) {
		if err := st.Write(ctx, key, initial[key]); err != nil {
			return err
		}
	}
	return nil
}

// executeStep performs one step and settles its cascade. It returns every
// error the step produced, including handler failures.
func (h *Harness) executeStep(ctx context.Context, step Step) (StepResult, []error) {
	var (
		origin string
		grant  *handlers.Grant
		fn     func(context.Context) error
	)
	switch {
	case step.Write != nil:
		origin = step.Write.Path
	case step.AuthCreated != nil:
		u := step.AuthCreated
		origin = "auth/create/" + u.UID
		fn = func(ctx context.Context) error {
			if err := h.auth.EnsureIdentity(ctx, u.UID); err != nil {
				return err
			}
			return h.handlers.AuthUserCreated(ctx, handlers.AuthUser{
				UID:         u.UID,
				DisplayName: u.DisplayName,
				PhotoURL:    u.PhotoURL,
			})
		}
	case step.AuthDeleted != "":
		uid := step.AuthDeleted
		origin = "auth/delete/" + uid
		fn = func(ctx context.Context) error {
			return h.handlers.AuthUserDeleted(ctx, uid)
		}
	case step.SwitchAccount != nil:
		s := step.SwitchAccount
		origin = "switch-account/" + s.UID
		fn = func(ctx context.Context) error {
			current, _ := h.auth.Claims(s.UID)["accountId"].(string)
			return h.handlers.SwitchAccount(ctx, handlers.Caller{UID: s.UID, AccountID: current}, s.AccountID)
		}
	case step.VerifyPin != "":
		origin = "verify-pin/" + step.VerifyPin
		fn = func(ctx context.Context) error {
			g, err := h.handlers.VerifyPin(ctx, step.VerifyPin)
			if err != nil {
				return err
			}
			grant = &g
			return nil
		}
	}

	var (
		res emulator.Result
		err error
	)
	if step.Write != nil {
		res, err = h.emu.Apply(ctx, *step.Write)
	} else {
		res, err = h.emu.Run(ctx, origin, fn)
	}

	sr := StepResult{Origin: origin, Rounds: res.Rounds, Fired: res.Fired, Grant: grant}
	var errs []error
	if err != nil {
		sr.Error = err.Error()
		errs = append(errs, err)
	}
	for _, f := range res.Failed {
		sr.Failed = append(sr.Failed, f.Path)
		errs = append(errs, fmt.Errorf("handler %s: %w", f.Path, f.Err))
	}
	return sr, errs
}

// checkStepErrors compares the errors of a step with its expect_error.
func checkStepErrors(step Step, errs []error) []string {
	if step.ExpectError == "" {
		msgs := make([]string, 0, len(errs))
		for _, err := range errs {
			msgs = append(msgs, "unexpected error: "+err.Error())
		}
		return msgs
	}
	for _, err := range errs {
		if strings.Contains(err.Error(), step.ExpectError) {
			return nil
		}
	}
	if len(errs) == 0 {
		return []string{fmt.Sprintf("expected error containing %q, step succeeded", step.ExpectError)}
	}
	return []string{fmt.Sprintf("expected error containing %q, got: %v", step.ExpectError, errors.Join(errs...))}
}
