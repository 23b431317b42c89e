// Package billing sets up account subscriptions with a payment provider.
//
// The provider itself is external; this package owns the bookkeeping:
// customer ids on users/{uid}.stripeId and the active subscription on
// accounts/{accountId}/subscription.
package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/pxflux/internal/tree"
)

// Setup outcomes.
const (
	StatusSucceeded      = "succeeded"
	StatusRequiresAction = "requires_action"
)

var (
	// ErrUnauthenticated is returned when the caller carries no uid or
	// account scope.
	ErrUnauthenticated = errors.New("caller is not authenticated")
	// ErrUserNotFound is returned when the calling user has no record.
	ErrUserNotFound = errors.New("user not found")
)

// Intent is the payment confirmation state of a new subscription.
type Intent struct {
	Status       string
	ClientSecret string
}

// Subscription is the provider's view of a subscription.
type Subscription struct {
	ID     string
	PlanID string
	// Intent is the payment intent of the first invoice, if any.
	Intent *Intent
}

// Provider is a payment provider.
type Provider interface {
	CreateCustomer(ctx context.Context, uid, paymentMethodID string) (string, error)
	CreateSubscription(ctx context.Context, customerID, planID, accountID string) (Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
	GetSubscription(ctx context.Context, subscriptionID string) (Subscription, error)
}

// Tree is the subset of the store billing reads and writes.
type Tree interface {
	Read(ctx context.Context, path string) (any, bool, error)
	Merge(ctx context.Context, path string, fields map[string]any) error
}

// Request is a subscription setup call.
type Request struct {
	UID             string
	AccountID       string
	PlanID          string
	PaymentMethodID string
}

// Result is returned to the caller of Setup.
type Result struct {
	ID     string `json:"id,omitempty"`
	Status string `json:"status"`
	Secret string `json:"secret,omitempty"`
}

// Service runs billing operations.
type Service struct {
	tree     Tree
	provider Provider
}

// NewService returns a Service.
func NewService(t Tree, p Provider) *Service {
	return &Service{tree: t, provider: p}
}

func subscriptionPath(accountID string) string {
	return tree.Join("accounts", accountID, "subscription")
}

// Setup subscribes the caller's account to planID.
//
// An existing subscription on the same plan is kept. One on another plan is
// cancelled and replaced. When the first payment needs customer action the
// client secret is returned and nothing is recorded yet.
func (s *Service) Setup(ctx context.Context, req Request) (Result, error) {
	if req.UID == "" || req.AccountID == "" {
		return Result{}, ErrUnauthenticated
	}
	if req.PlanID == "" {
		return Result{}, fmt.Errorf("setup billing: empty plan id")
	}

	customer, err := s.customerID(ctx, req.UID, req.PaymentMethodID)
	if err != nil {
		return Result{}, err
	}

	v, _, err := s.tree.Read(ctx, subscriptionPath(req.AccountID))
	if err != nil {
		return Result{}, fmt.Errorf("setup billing: %w", err)
	}
	if current := tree.AsNode(v); current != nil && tree.String(current, "id") != "" {
		id := tree.String(current, "id")
		if tree.String(current, "planId") == req.PlanID {
			return Result{ID: id, Status: StatusSucceeded}, nil
		}
		if err := s.provider.CancelSubscription(ctx, id); err != nil {
			return Result{}, fmt.Errorf("cancel subscription %s: %w", id, err)
		}
		slog.Info("subscription cancelled for plan change",
			"account", req.AccountID, "subscription", id, "plan", req.PlanID)
	}

	sub, err := s.provider.CreateSubscription(ctx, customer, req.PlanID, req.AccountID)
	if err != nil {
		return Result{}, fmt.Errorf("create subscription: %w", err)
	}
	if in := sub.Intent; in != nil && (in.Status == "requires_action" || in.Status == "requires_payment_method") {
		return Result{ID: sub.ID, Status: StatusRequiresAction, Secret: in.ClientSecret}, nil
	}
	if err := s.record(ctx, req.AccountID, sub.ID, req.PlanID); err != nil {
		return Result{}, err
	}
	return Result{ID: sub.ID, Status: StatusSucceeded}, nil
}

// Refresh re-reads a subscription from the provider and records it on the
// account. Used once a pending payment has been confirmed.
func (s *Service) Refresh(ctx context.Context, accountID, subscriptionID string) error {
	if accountID == "" {
		return ErrUnauthenticated
	}
	sub, err := s.provider.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return fmt.Errorf("get subscription %s: %w", subscriptionID, err)
	}
	return s.record(ctx, accountID, sub.ID, sub.PlanID)
}

func (s *Service) record(ctx context.Context, accountID, id, planID string) error {
	fields := map[string]any{"id": id}
	if planID != "" {
		fields["planId"] = planID
	}
	if err := s.tree.Merge(ctx, subscriptionPath(accountID), fields); err != nil {
		return fmt.Errorf("record subscription: %w", err)
	}
	return nil
}

func (s *Service) customerID(ctx context.Context, uid, paymentMethodID string) (string, error) {
	path := tree.Join("users", uid)
	v, ok, err := s.tree.Read(ctx, path)
	if err != nil {
		return "", fmt.Errorf("read user %s: %w", uid, err)
	}
	user := tree.AsNode(v)
	if !ok || user == nil {
		return "", fmt.Errorf("user %s: %w", uid, ErrUserNotFound)
	}
	if id := tree.String(user, "stripeId"); id != "" {
		return id, nil
	}
	id, err := s.provider.CreateCustomer(ctx, uid, paymentMethodID)
	if err != nil {
		return "", fmt.Errorf("create customer for %s: %w", uid, err)
	}
	if err := s.tree.Merge(ctx, path, map[string]any{"stripeId": id}); err != nil {
		return "", fmt.Errorf("record customer for %s: %w", uid, err)
	}
	return id, nil
}
