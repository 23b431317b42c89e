package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/pxflux/internal/handlers"
)

// BillingOptions holds flags shared by the billing commands.
type BillingOptions struct {
	*RootOptions
	UID     string
	Account string
}

// caller scopes the billing call to --account, or to the account in the
// user's stored claims.
func (o *BillingOptions) caller(ctx context.Context, b *backend) handlers.Caller {
	account := o.Account
	if account == "" {
		if id, err := b.auth.Get(ctx, o.UID); err == nil {
			account, _ = id.Claims["accountId"].(string)
		}
	}
	return handlers.Caller{UID: o.UID, AccountID: account}
}

// NewBillingCommand creates the billing command group.
func NewBillingCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BillingOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "billing",
		Short: "Manage account subscriptions",
		Long: `Run the billing callables. Needs billing.enabled (PXFLUX_BILLING=1);
provider calls go to a sandbox that logs them and charges nobody.`,
	}
	cmd.PersistentFlags().StringVar(&opts.UID, "uid", "", "user id (required)")
	_ = cmd.MarkPersistentFlagRequired("uid")
	cmd.PersistentFlags().StringVar(&opts.Account, "account", "", "account to bill (default from stored claims)")

	cmd.AddCommand(newBillingSetupCommand(opts))
	cmd.AddCommand(newBillingRefreshCommand(opts))
	return cmd
}

func newBillingSetupCommand(opts *BillingOptions) *cobra.Command {
	var paymentMethod string
	cmd := &cobra.Command{
		Use:   "setup <plan-id>",
		Short: "Subscribe the account to a plan",
		Long: `Create the customer if needed, then subscribe the account to the plan.
A subscription on another plan is cancelled first.

Exit codes:
  0 - Subscribed, or payment needs customer action
  1 - Billing disabled or the call failed
  2 - Command error`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHandlers(opts.RootOptions, cmd, func(b *backend, h *handlers.Handlers) error {
				ctx := commandContext(cmd)
				res, err := h.SetupBilling(ctx, opts.caller(ctx, b), args[0], paymentMethod)
				if err != nil {
					return WrapExitError(ExitFailure, "billing setup failed", err)
				}
				return opts.printer(cmd).Result(res)
			})
		},
	}
	cmd.Flags().StringVar(&paymentMethod, "payment-method", "", "payment method id")
	return cmd
}

func newBillingRefreshCommand(opts *BillingOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "refresh <subscription-id>",
		Short:         "Record the provider's view of a subscription",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHandlers(opts.RootOptions, cmd, func(b *backend, h *handlers.Handlers) error {
				ctx := commandContext(cmd)
				if err := h.RefreshSubscription(ctx, opts.caller(ctx, b), args[0]); err != nil {
					return WrapExitError(ExitFailure, "billing refresh failed", err)
				}
				return opts.printer(cmd).Result(map[string]string{"subscription": args[0], "status": "refreshed"})
			})
		},
	}
}
