package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/pxflux/internal/store"
)

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get [path]",
		Short: "Print the value stored at a path",
		Long: `Print the value stored at a path as canonical JSON. Without a path the
whole tree is printed.

Examples:
  pxflux get accounts/A1
  pxflux get --format json player-pins`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runGet(rootOpts, path, cmd)
		},
	}
}

func runGet(opts *RootOptions, path string, cmd *cobra.Command) error {
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

	v, ok, err := b.tree.Read(ctx, path)
	if err != nil {
		return opts.printer(cmd).Fail(WrapExitError(ExitFailure, "read failed", err))
	}
	if !ok {
		v = nil
	}
	if opts.Format == "json" {
		return opts.printer(cmd).Result(map[string]any{"path": path, "value": v})
	}
	fmt.Fprintln(cmd.OutOrStdout(), nodeOf(v))
	return nil
}

// LogOptions holds flags for the log command.
type LogOptions struct {
	*RootOptions
	Limit int
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "log [path]",
		Short: "Show the mutation log of the local store",
		Long: `Show the mutations applied to the local store, oldest first. A path
restricts the log to that node and its descendants.

Examples:
  pxflux log --limit 20
  pxflux log accounts/A1/players`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			return runLog(opts, prefix, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 50, "most recent entries to show (0 for all)")

	return cmd
}

func runLog(opts *LogOptions, prefix string, cmd *cobra.Command) error {
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
	if err := b.requireLocalTree("log"); err != nil {
		return WrapExitError(ExitCommandError, "unsupported backend", err)
	}

	entries, err := b.local.History(ctx, prefix, opts.Limit)
	if err != nil {
		return opts.printer(cmd).Fail(WrapExitError(ExitFailure, "read log", err))
	}
	if entries == nil {
		entries = []store.Entry{}
	}
	if opts.Format == "json" {
		return opts.printer(cmd).Result(entries)
	}

	w := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(w, "No entries.")
		return nil
	}
	for _, e := range entries {
		at := time.UnixMilli(e.At).UTC().Format(time.RFC3339)
		if e.Value == nil {
			fmt.Fprintf(w, "%6d %s %-7s %s\n", e.Seq, at, e.Op, e.Path)
			continue
		}
		fmt.Fprintf(w, "%6d %s %-7s %s %s\n", e.Seq, at, e.Op, e.Path, render(e.Value))
	}
	return nil
}
