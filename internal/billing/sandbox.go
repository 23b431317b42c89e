package billing

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Sandbox is a Provider that charges nobody. It mints ids, logs every call
// and remembers the subscriptions it created for the life of the process.
type Sandbox struct {
	mu   sync.Mutex
	subs map[string]Subscription
}

// NewSandbox returns an empty Sandbox.
func NewSandbox() *Sandbox {
	return &Sandbox{subs: make(map[string]Subscription)}
}

func sandboxID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
}

func (s *Sandbox) CreateCustomer(_ context.Context, uid, paymentMethodID string) (string, error) {
	id := sandboxID("cus")
	slog.Info("sandbox customer created", "uid", uid, "customer", id, "payment_method", paymentMethodID)
	return id, nil
}

func (s *Sandbox) CreateSubscription(_ context.Context, customerID, planID, accountID string) (Subscription, error) {
	sub := Subscription{ID: sandboxID("sub"), PlanID: planID}
	s.mu.Lock()
	s.subs[sub.ID] = sub
	s.mu.Unlock()
	slog.Info("sandbox subscription created",
		"customer", customerID, "account", accountID, "subscription", sub.ID, "plan", planID)
	return sub, nil
}

func (s *Sandbox) CancelSubscription(_ context.Context, subscriptionID string) error {
	s.mu.Lock()
	delete(s.subs, subscriptionID)
	s.mu.Unlock()
	slog.Info("sandbox subscription cancelled", "subscription", subscriptionID)
	return nil
}

// GetSubscription returns what the sandbox created. Subscriptions from an
// earlier process come back with their id only, so Refresh keeps the
// recorded plan.
func (s *Sandbox) GetSubscription(_ context.Context, subscriptionID string) (Subscription, error) {
	s.mu.Lock()
	sub, ok := s.subs[subscriptionID]
	s.mu.Unlock()
	if !ok {
		sub = Subscription{ID: subscriptionID}
	}
	slog.Info("sandbox subscription read", "subscription", subscriptionID, "known", ok)
	return sub, nil
}
