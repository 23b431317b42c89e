package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/pxflux/internal/handlers"
	"github.com/roach88/pxflux/internal/tree"
)

// EventFile is a trigger event as stored on disk.
type EventFile struct {
	Path   string `yaml:"path"`
	Before any    `yaml:"before,omitempty"`
	After  any    `yaml:"after,omitempty"`
}

// loadEvent reads one event. "-" reads stdin.
func loadEvent(path string, stdin io.Reader) (handlers.Event, error) {
	data, err := readInput(path, stdin)
	if err != nil {
		return handlers.Event{}, err
	}
	var ef EventFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&ef); err != nil {
		return handlers.Event{}, fmt.Errorf("failed to parse event: %w", err)
	}
	if ef.Path == "" {
		return handlers.Event{}, fmt.Errorf("event path is required")
	}
	if _, ok := handlers.Match(ef.Path); !ok {
		return handlers.Event{}, fmt.Errorf("no trigger matches %q", ef.Path)
	}
	return handlers.Event{Path: ef.Path, Before: ef.Before, After: ef.After}, nil
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// ApplyResult is the output of apply.
type ApplyResult struct {
	Path string `json:"path"`
	Kind string `json:"kind"`
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "apply <event-file>",
		Short: "Run the handler of one trigger event",
		Long: `Run the handler for a single trigger event against the configured store.

The event file is YAML with the trigger path and the node values before
and after the write. Use "-" to read it from stdin.

Exit codes:
  0 - Handler succeeded
  1 - Handler failed
  2 - Command error (bad event file, store unavailable, etc.)

Examples:
  pxflux apply event.yaml
  pxflux apply --db ./gallery.db - < event.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(rootOpts, args[0], cmd)
		},
	}
}

func runApply(opts *RootOptions, eventPath string, cmd *cobra.Command) error {
	ev, err := loadEvent(eventPath, cmd.InOrStdin())
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid event", err)
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open backend", err)
	}
	defer b.Close()

	h, err := b.handlers()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build handlers", err)
	}
	if err := h.Dispatch(ctx, ev); err != nil {
		return opts.printer(cmd).Fail(WrapExitError(ExitFailure, "handler failed", err))
	}

	t, _ := handlers.Match(ev.Path)
	res := ApplyResult{Path: ev.Path, Kind: t.Kind}
	if opts.Format == "json" {
		return opts.printer(cmd).Result(res)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s (%s)\n", res.Path, res.Kind)
	return nil
}

// PlanResult is the output of plan.
type PlanResult struct {
	Path       string   `json:"path"`
	Operations []string `json:"operations"`
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "plan <event-file>",
		Short: "Show what the handler of an event would write",
		Long: `Run the handler of one trigger event in dry-run mode.

Reads go to the configured store. Writes, blob deletions and identity calls
are recorded and printed instead of being applied.

Examples:
  pxflux plan event.yaml
  pxflux plan --format json event.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(rootOpts, args[0], cmd)
		},
	}
}

func runPlan(opts *RootOptions, eventPath string, cmd *cobra.Command) error {
	ev, err := loadEvent(eventPath, cmd.InOrStdin())
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid event", err)
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open backend", err)
	}
	defer b.Close()

	dry := newDryRun(b.tree)
	exec, err := b.executor(dry, dry)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build executor", err)
	}
	h := handlers.New(handlers.Deps{
		Tree:     dry,
		Auth:     dry,
		Blobs:    dry,
		Executor: exec,
	}, handlers.Options{KeepPinAccountID: cfg.Pins.KeepAccountID})

	if err := h.Dispatch(ctx, ev); err != nil {
		return opts.printer(cmd).Fail(WrapExitError(ExitFailure, "handler failed", err))
	}
	res := PlanResult{Path: ev.Path, Operations: dry.Operations()}

	if opts.Format == "json" {
		return opts.printer(cmd).Result(res)
	}
	w := cmd.OutOrStdout()
	if len(res.Operations) == 0 {
		fmt.Fprintf(w, "%s: nothing to do\n", res.Path)
		return nil
	}
	fmt.Fprintf(w, "%s: %d operation(s)\n", res.Path, len(res.Operations))
	for _, op := range res.Operations {
		fmt.Fprintf(w, "  %s\n", op)
	}
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// nodeOf renders a value for text output.
func nodeOf(v any) string {
	if tree.IsAbsent(v) {
		return "null"
	}
	return render(v)
}
