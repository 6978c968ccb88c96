// Package identity issues anonymous but stable caller identities as signed
// tokens.
package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned for tokens that fail verification.
var ErrInvalidToken = errors.New("identity: invalid token")

// Identity is an anonymous caller identity and the token that proves it.
type Identity struct {
	ID        string    `json:"uid"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Provider signs and verifies identity tokens with an HMAC secret.
type Provider struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewProvider creates a provider. The secret must not be empty.
func NewProvider(secret, issuer string, ttl time.Duration) (*Provider, error) {
	if secret == "" {
		return nil, errors.New("identity: secret is required")
	}
	if ttl <= 0 {
		return nil, errors.New("identity: token ttl must be positive")
	}
	return &Provider{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue mints a fresh identity.
func (p *Provider) Issue() (Identity, error) {
	return p.Refresh(uuid.NewString())
}

// Refresh signs a new token for an existing identity.
func (p *Provider) Refresh(id string) (Identity, error) {
	now := p.now()
	expires := now.Add(p.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   id,
		Issuer:    p.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return Identity{}, fmt.Errorf("identity: failed to sign token: %w", err)
	}
	return Identity{ID: id, Token: token, ExpiresAt: expires.UTC()}, nil
}

// Verify checks the token and returns the identity it carries.
func (p *Provider) Verify(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}
