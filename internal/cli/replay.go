package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/pxflux/internal/emulator"
	"github.com/roach88/pxflux/internal/engine"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	MaxRounds int
}

// ReplayStep is the outcome of one replayed write.
type ReplayStep struct {
	Path   string   `json:"path"`
	Op     string   `json:"op"`
	Rounds int      `json:"rounds"`
	Failed []string `json:"failed,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Writes []ReplayStep `json:"writes"`
	Failed int          `json:"failed"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <writes-file>",
		Short: "Apply a stream of client writes and settle their cascades",
		Long: `Apply client writes to the local store one at a time. After each write
the triggers it fires are run, then the triggers fired by those handlers,
until the tree stops changing.

The file holds one or more YAML documents, each a write:

  op: set            # set | merge | remove
  path: player-pins/1234
  value: { accountId: A1 }

Exit codes:
  0 - Every cascade settled and every handler succeeded
  1 - A handler failed or a cascade did not settle
  2 - Command error (bad file, non-sqlite backend, etc.)

Examples:
  pxflux replay --db ./gallery.db writes.yaml
  pxflux replay --format json - < writes.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.MaxRounds, "max-rounds", 0, "bound on trigger rounds per write (default from config)")

	return cmd
}

// loadWrites decodes every YAML document in data.
func loadWrites(data []byte) ([]emulator.Write, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var writes []emulator.Write
	for {
		var w emulator.Write
		err := dec.Decode(&w)
		if errors.Is(err, io.EOF) {
			return writes, nil
		}
		if err != nil {
			return nil, fmt.Errorf("write %d: %w", len(writes), err)
		}
		if w.Path == "" {
			return nil, fmt.Errorf("write %d: path is required", len(writes))
		}
		writes = append(writes, w)
	}
}

func runReplay(opts *ReplayOptions, path string, cmd *cobra.Command) error {
	data, err := readInput(path, cmd.InOrStdin())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read writes", err)
	}
	writes, err := loadWrites(data)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid writes file", err)
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
	if err := b.requireLocalTree("replay"); err != nil {
		return WrapExitError(ExitCommandError, "unsupported backend", err)
	}

	h, err := b.handlers()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build handlers", err)
	}
	maxRounds := cfg.Cascade.MaxRounds
	if opts.MaxRounds > 0 {
		maxRounds = opts.MaxRounds
	}
	emu := emulator.New(b.local, h, emulator.WithMaxRounds(maxRounds))

	result := ReplayResult{Writes: make([]ReplayStep, 0, len(writes))}
	var firstErr error
	for _, w := range writes {
		res, err := emu.Apply(ctx, w)
		step := ReplayStep{Path: w.Path, Op: w.Op, Rounds: res.Rounds}
		if step.Op == "" {
			step.Op = emulator.OpSet
		}
		for _, f := range res.Failed {
			step.Failed = append(step.Failed, fmt.Sprintf("%s: %v", f.Path, f.Err))
		}
		if err != nil {
			step.Failed = append(step.Failed, err.Error())
			if firstErr == nil {
				firstErr = err
			}
		}
		if len(step.Failed) > 0 {
			result.Failed++
		}
		result.Writes = append(result.Writes, step)
	}

	if opts.Format == "json" {
		if err := outputReplayJSON(opts.printer(cmd), result, firstErr); err != nil {
			return err
		}
	} else {
		outputReplayText(cmd, result)
	}

	if result.Failed > 0 {
		return WrapExitError(ExitFailure, fmt.Sprintf("%d write(s) failed", result.Failed), firstErr)
	}
	return nil
}

func outputReplayJSON(p *Printer, result ReplayResult, firstErr error) error {
	if result.Failed == 0 {
		return p.Partial(result, nil)
	}
	failure := &ResponseError{
		Code:    CodeCascadeFailed,
		Message: fmt.Sprintf("%d write(s) failed", result.Failed),
	}
	if engine.IsRoundsExceeded(firstErr) {
		failure.Code = CodeCascadeLimit
	}
	for _, s := range result.Writes {
		if len(s.Failed) > 0 {
			failure.Failed = append(failure.Failed, s.Path)
		}
	}
	return p.Partial(result, failure)
}

func outputReplayText(cmd *cobra.Command, result ReplayResult) {
	w := cmd.OutOrStdout()
	for _, s := range result.Writes {
		mark := "✓"
		if len(s.Failed) > 0 {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s %s (%d round(s))\n", mark, s.Op, s.Path, s.Rounds)
		for _, f := range s.Failed {
			fmt.Fprintf(w, "  %s\n", f)
		}
	}
	fmt.Fprintf(w, "\nReplay Summary: %d write(s), %d failed\n", len(result.Writes), result.Failed)
}
