package identity

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

// ErrInvalidToken covers malformed, forged and expired tokens.
var ErrInvalidToken = errors.New("invalid token")

// DefaultTokenTTL bounds how long a minted token is accepted.
const DefaultTokenTTL = time.Hour

// Claims is the payload of a token. Custom claims travel under "claims".
type Claims struct {
	UID    string         `json:"uid"`
	Claims map[string]any `json:"claims,omitempty"`
	jwt.RegisteredClaims
}

// Signer produces HS256 tokens.
type Signer struct {
	key []byte
	ttl time.Duration
}

// NewSigner derives the signing key from secret. A zero ttl means
// DefaultTokenTTL.
func NewSigner(secret []byte, ttl time.Duration) (*Signer, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("token signer: empty secret")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte("pxflux token v1")), key); err != nil {
		return nil, fmt.Errorf("token signer: derive key: %w", err)
	}
	return &Signer{key: key, ttl: ttl}, nil
}

// Sign issues a token for uid valid from now for the signer's ttl.
func (s *Signer) Sign(uid string, claims map[string]any, now time.Time) (string, error) {
	c := Claims{
		UID: uid,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	if len(claims) > 0 {
		c.Claims = claims
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign token for %s: %w", uid, err)
	}
	return token, nil
}

// Verify checks the signature and expiry of token as of now.
func (s *Signer) Verify(token string, now time.Time) (Claims, error) {
	var c Claims
	_, err := jwt.ParseWithClaims(token, &c,
		func(*jwt.Token) (any, error) { return s.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return c, nil
}
