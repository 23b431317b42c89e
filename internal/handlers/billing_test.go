package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pxflux/internal/billing"
	"github.com/roach88/pxflux/internal/tree"
)

type stubProvider struct {
	subs map[string]billing.Subscription
}

func (p *stubProvider) CreateCustomer(context.Context, string, string) (string, error) {
	return "cus_1", nil
}

func (p *stubProvider) CreateSubscription(_ context.Context, _, planID, _ string) (billing.Subscription, error) {
	return billing.Subscription{ID: "sub_1", PlanID: planID}, nil
}

func (p *stubProvider) CancelSubscription(context.Context, string) error { return nil }

func (p *stubProvider) GetSubscription(_ context.Context, id string) (billing.Subscription, error) {
	return p.subs[id], nil
}

func TestSetupBillingRequiresService(t *testing.T) {
	f := newFixture(t, nil, Options{})

	_, err := f.h.SetupBilling(context.Background(), Caller{UID: "u1", AccountID: "A1"}, "basic", "pm_1")
	assert.ErrorIs(t, err, ErrBillingDisabled)
	assert.ErrorIs(t, f.h.RefreshSubscription(context.Background(), Caller{UID: "u1", AccountID: "A1"}, "sub_1"), ErrBillingDisabled)
}

func TestSetupBillingRecordsSubscription(t *testing.T) {
	f := newFixture(t, tree.Node{"users": tree.Node{"u1": tree.Node{"displayName": "Ann"}}}, Options{})
	p := &stubProvider{subs: map[string]billing.Subscription{"sub_1": {ID: "sub_1", PlanID: "pro"}}}
	f.h.billing = billing.NewService(f.tree, p)
	ctx := context.Background()

	_, err := f.h.SetupBilling(ctx, Caller{AccountID: "A1"}, "basic", "pm_1")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	res, err := f.h.SetupBilling(ctx, Caller{UID: "u1", AccountID: "A1"}, "basic", "pm_1")
	require.NoError(t, err)
	assert.Equal(t, billing.Result{ID: "sub_1", Status: billing.StatusSucceeded}, res)
	assert.Equal(t, tree.Node{"id": "sub_1", "planId": "basic"}, f.get(t, "accounts/A1/subscription"))

	require.NoError(t, f.h.RefreshSubscription(ctx, Caller{UID: "u1", AccountID: "A1"}, "sub_1"))
	assert.Equal(t, "pro", f.get(t, "accounts/A1/subscription/planId"))
}
