package testutil

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"

	"github.com/roach88/pxflux/internal/identity"
)

// FakeAuth is an in-memory identity provider.
//
// Tokens are "token:<uid>" followed by the sorted claims, which keeps
// assertions readable. Any of the Err fields makes the matching call fail.
type FakeAuth struct {
	mu         sync.Mutex
	identities map[string]bool
	claims     map[string]map[string]any
	ensured    []string

	// ReportExisting makes EnsureIdentity return identity.ErrAlreadyExists
	// for identities that already exist, like a racing creator would see.
	ReportExisting bool

	EnsureErr error
	ClaimsErr error
	MintErr   error
}

// NewFakeAuth returns a provider that knows the given identities.
func NewFakeAuth(existing ...string) *FakeAuth {
	f := &FakeAuth{
		identities: make(map[string]bool),
		claims:     make(map[string]map[string]any),
	}
	for _, uid := range existing {
		f.identities[uid] = true
	}
	return f
}

func (f *FakeAuth) EnsureIdentity(_ context.Context, uid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensured = append(f.ensured, uid)
	if f.EnsureErr != nil {
		return f.EnsureErr
	}
	if f.identities[uid] {
		if f.ReportExisting {
			return fmt.Errorf("create %s: %w", uid, identity.ErrAlreadyExists)
		}
		return nil
	}
	f.identities[uid] = true
	return nil
}

func (f *FakeAuth) SetClaims(_ context.Context, uid string, claims map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ClaimsErr != nil {
		return f.ClaimsErr
	}
	f.claims[uid] = maps.Clone(claims)
	return nil
}

func (f *FakeAuth) MintToken(_ context.Context, uid string, claims map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.MintErr != nil {
		return "", f.MintErr
	}
	if !f.identities[uid] {
		return "", fmt.Errorf("mint %s: %w", uid, identity.ErrNotFound)
	}
	return Token(uid, claims), nil
}

// Token renders the token FakeAuth mints for uid and claims.
func Token(uid string, claims map[string]any) string {
	keys := make([]string, 0, len(claims))
	for k := range claims {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString("token:" + uid)
	for _, k := range keys {
		fmt.Fprintf(&b, ":%s=%v", k, claims[k])
	}
	return b.String()
}

// Claims returns the claims last set for uid.
func (f *FakeAuth) Claims(uid string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return maps.Clone(f.claims[uid])
}

// Has reports whether uid exists.
func (f *FakeAuth) Has(uid string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.identities[uid]
}

// Ensured lists every uid passed to EnsureIdentity, in call order.
func (f *FakeAuth) Ensured() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ensured...)
}
