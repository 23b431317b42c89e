package handlers

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/roach88/pxflux/internal/plan"
	"github.com/roach88/pxflux/internal/tree"
)

// EntityWritten handles a write to accounts/{accountID}/{collection}/{id}
// for artworks, artists, shows and places. A nil after is a delete.
func (h *Handlers) EntityWritten(ctx context.Context, collection, accountID, id string, before, after tree.Node) error {
	ctx, span := h.startSpan(ctx, "EntityWritten",
		attribute.String("collection", collection),
		attribute.String("account", accountID),
		attribute.String("id", id))
	defer span.End()

	rule, ok := plan.RuleFor(collection)
	if !ok {
		return fail(span, fmt.Errorf("entity written: unknown collection %q", collection))
	}
	scope := plan.Scope{AccountID: accountID, ID: id}
	event := rule.SourcePath(scope)

	var p plan.Plan
	switch {
	case after == nil && before == nil:
		return nil
	case after == nil:
		p = plan.EntityDeleted(rule, scope, before)
	default:
		p = plan.EntityWritten(rule, scope, before, after)
	}
	return fail(span, h.apply(ctx, event, p))
}
