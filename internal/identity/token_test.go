package identity

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSignerRejectsEmptySecret(t *testing.T) {
	_, err := NewSigner(nil, 0)
	require.Error(t, err)
}

func TestSignVerifyRoundTrip(t *testing.T) {
	s, err := NewSigner([]byte("secret"), 0)
	require.NoError(t, err)
	now := time.Unix(1700000000, 0)

	tok, err := s.Sign("player:1", map[string]any{"accountId": "a"}, now)
	require.NoError(t, err)
	assert.Equal(t, 3, len(strings.Split(tok, ".")))

	c, err := s.Verify(tok, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "player:1", c.UID)
	assert.Equal(t, now.Add(DefaultTokenTTL).Unix(), c.ExpiresAt.Unix())
	assert.Equal(t, map[string]any{"accountId": "a"}, c.Claims)
}

func TestSignIsDeterministic(t *testing.T) {
	s, err := NewSigner([]byte("secret"), time.Minute)
	require.NoError(t, err)
	now := time.Unix(1700000000, 0)

	a, err := s.Sign("u", map[string]any{"x": 1, "a": "b"}, now)
	require.NoError(t, err)
	b, err := s.Sign("u", map[string]any{"a": "b", "x": 1}, now)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestVerifyRejects(t *testing.T) {
	s, err := NewSigner([]byte("secret"), time.Minute)
	require.NoError(t, err)
	other, err := NewSigner([]byte("other"), time.Minute)
	require.NoError(t, err)
	now := time.Unix(1700000000, 0)

	tok, err := s.Sign("u", nil, now)
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	parts[1] = base64.RawURLEncoding.EncodeToString([]byte(`{"exp":9999999999,"iat":0,"uid":"admin"}`))
	tampered := strings.Join(parts, ".")

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UID: "admin"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		at    time.Time
		s     *Signer
	}{
		{"expired", tok, now.Add(time.Minute), s},
		{"wrong key", tok, now, other},
		{"malformed", "abc", now, s},
		{"tampered", tampered, now, s},
		{"unsigned", unsigned, now, s},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.s.Verify(tt.token, tt.at)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
