package handlers

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/roach88/pxflux/internal/billing"
)

// SetupBilling subscribes the caller's current account to planID.
func (h *Handlers) SetupBilling(ctx context.Context, caller Caller, planID, paymentMethodID string) (billing.Result, error) {
	ctx, span := h.startSpan(ctx, "SetupBilling",
		attribute.String("uid", caller.UID),
		attribute.String("account", caller.AccountID),
		attribute.String("plan", planID))
	defer span.End()

	if h.billing == nil {
		return billing.Result{}, fail(span, ErrBillingDisabled)
	}
	if caller.UID == "" {
		return billing.Result{}, fail(span, ErrUnauthenticated)
	}
	res, err := h.billing.Setup(ctx, billing.Request{
		UID:             caller.UID,
		AccountID:       caller.AccountID,
		PlanID:          planID,
		PaymentMethodID: paymentMethodID,
	})
	return res, fail(span, err)
}

// RefreshSubscription records the provider's current view of
// subscriptionID on the caller's account.
func (h *Handlers) RefreshSubscription(ctx context.Context, caller Caller, subscriptionID string) error {
	ctx, span := h.startSpan(ctx, "RefreshSubscription",
		attribute.String("account", caller.AccountID),
		attribute.String("subscription", subscriptionID))
	defer span.End()

	if h.billing == nil {
		return fail(span, ErrBillingDisabled)
	}
	if caller.UID == "" {
		return fail(span, ErrUnauthenticated)
	}
	return fail(span, h.billing.Refresh(ctx, caller.AccountID, subscriptionID))
}
