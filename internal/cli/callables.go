package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/pxflux/internal/handlers"
)

// NewVerifyPinCommand creates the verify-pin command.
func NewVerifyPinCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "verify-pin <pin>",
		Aliases: []string{"consume-pin"},
		Short:   "Exchange a player pin for its credentials",
		Long: `Consume a player pin and print the account, player and access token it
stands for. A pin is accepted once.

Exit codes:
  0 - Pin accepted
  1 - Pin unknown or unusable
  2 - Command error`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHandlers(rootOpts, cmd, func(b *backend, h *handlers.Handlers) error {
				g, err := h.VerifyPin(commandContext(cmd), args[0])
				if err != nil {
					return WrapExitError(ExitFailure, "pin rejected", err)
				}
				if rootOpts.Format == "json" {
					return rootOpts.printer(cmd).Result(g)
				}
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "account: %s\n", g.AccountID)
				fmt.Fprintf(w, "player:  %s\n", g.PlayerID)
				fmt.Fprintf(w, "token:   %s\n", g.Token)
				return nil
			})
		},
	}
}

// SwitchAccountOptions holds flags for the switch-account command.
type SwitchAccountOptions struct {
	*RootOptions
	UID     string
	Current string
}

// NewSwitchAccountCommand creates the switch-account command.
func NewSwitchAccountCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SwitchAccountOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "switch-account <account-id>",
		Short: "Rescope a user's claims to another account",
		Long: `Set the user's accountId claim and bump metadata/{uid} so clients
refresh their token. The user must be a member of the account.

Example:
  pxflux switch-account --uid u1 A2`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHandlers(rootOpts, cmd, func(b *backend, h *handlers.Handlers) error {
				ctx := commandContext(cmd)
				current := opts.Current
				if current == "" {
					if id, err := b.auth.Get(ctx, opts.UID); err == nil {
						current, _ = id.Claims["accountId"].(string)
					}
				}
				caller := handlers.Caller{UID: opts.UID, AccountID: current}
				if err := h.SwitchAccount(ctx, caller, args[0]); err != nil {
					return WrapExitError(ExitFailure, "switch failed", err)
				}
				return rootOpts.printer(cmd).Result(map[string]string{"uid": opts.UID, "accountId": args[0]})
			})
		},
	}

	cmd.Flags().StringVar(&opts.UID, "uid", "", "user id (required)")
	_ = cmd.MarkFlagRequired("uid")
	cmd.Flags().StringVar(&opts.Current, "current", "", "account the caller's token is scoped to (default from stored claims)")

	return cmd
}

// NewAuthCommand creates the auth command group.
func NewAuthCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Emit auth lifecycle events",
	}
	cmd.AddCommand(newAuthCreateCommand(rootOpts))
	cmd.AddCommand(newAuthDeleteCommand(rootOpts))
	return cmd
}

func newAuthCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var u handlers.AuthUser
	cmd := &cobra.Command{
		Use:   "create <uid>",
		Short: "Create an identity and run the signup handler",
		Long: `Create the identity in the local directory, then give the user a fresh
account, membership links and an accountId claim.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			u.UID = args[0]
			return withHandlers(rootOpts, cmd, func(b *backend, h *handlers.Handlers) error {
				ctx := commandContext(cmd)
				if err := b.auth.EnsureIdentity(ctx, u.UID); err != nil {
					return WrapExitError(ExitFailure, "create identity", err)
				}
				if err := h.AuthUserCreated(ctx, u); err != nil {
					return WrapExitError(ExitFailure, "signup handler failed", err)
				}
				id, err := b.auth.Get(ctx, u.UID)
				if err != nil {
					return WrapExitError(ExitFailure, "read identity", err)
				}
				return rootOpts.printer(cmd).Result(map[string]any{"uid": id.UID, "claims": id.Claims})
			})
		},
	}
	cmd.Flags().StringVar(&u.DisplayName, "display-name", "", "display name")
	cmd.Flags().StringVar(&u.PhotoURL, "photo-url", "", "photo URL")
	return cmd
}

func newAuthDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <uid>",
		Short:         "Delete an identity and run the cleanup handler",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHandlers(rootOpts, cmd, func(b *backend, h *handlers.Handlers) error {
				ctx := commandContext(cmd)
				if err := b.auth.Delete(ctx, args[0]); err != nil {
					return WrapExitError(ExitFailure, "delete identity", err)
				}
				if err := h.AuthUserDeleted(ctx, args[0]); err != nil {
					return WrapExitError(ExitFailure, "cleanup handler failed", err)
				}
				return rootOpts.printer(cmd).Result(map[string]string{"uid": args[0], "status": "deleted"})
			})
		},
	}
}

// withHandlers opens the backend, wires handlers and runs fn. A failure of
// fn is also reported as a JSON error response.
func withHandlers(opts *RootOptions, cmd *cobra.Command, fn func(*backend, *handlers.Handlers) error) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	b, err := openBackend(commandContext(cmd), cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open backend", err)
	}
	defer b.Close()

	h, err := b.handlers()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build handlers", err)
	}
	return opts.printer(cmd).Fail(fn(b, h))
}
