package handlers

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/roach88/pxflux/internal/plan"
	"github.com/roach88/pxflux/internal/tree"
)

// AccountWritten converges membership copies after accounts/{accountID}
// changes, and prunes accounts left without users. Creation is not an
// update: the writer of a new account seeds its copies itself.
func (h *Handlers) AccountWritten(ctx context.Context, accountID string, before, after tree.Node) error {
	ctx, span := h.startSpan(ctx, "AccountWritten", attribute.String("account", accountID))
	defer span.End()

	event := plan.AccountPath(accountID)
	if before == nil {
		return nil
	}
	if after == nil {
		return fail(span, h.apply(ctx, event, plan.AccountDeleted(accountID, before)))
	}
	return fail(span, h.apply(ctx, event, plan.Merge(
		plan.AccountWritten(accountID, before, after),
		plan.AccountPruned(accountID, before, after),
	)))
}
