package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrTokenRevoked is returned for tokens invalidated by sign-out.
var ErrTokenRevoked = errors.New("token has been revoked")

// SessionClaims are the claims carried by access tokens issued by the
// hosted auth service.
type SessionClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// UserID parses the subject as a user id.
func (c *SessionClaims) UserID() (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(c.Subject))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid token subject: %w", err)
	}
	return id, nil
}

// TokenValidator verifies HS256 access tokens signed with the project secret.
type TokenValidator struct {
	secret   []byte
	issuer   string
	audience string
	now      func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time
}

// NewTokenValidator creates a validator. Empty issuer or audience disables
// that check.
func NewTokenValidator(secret, issuer, audience string) (*TokenValidator, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	return &TokenValidator{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		now:      time.Now,
		revoked:  map[string]time.Time{},
	}, nil
}

// Validate parses and validates a token string.
func (v *TokenValidator) Validate(tokenStr string) (*SessionClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if v.isRevoked(tokenStr) {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Sign issues a token for claims. Used by tests and local tooling.
func (v *TokenValidator) Sign(claims SessionClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// Revoke rejects tokenStr until it would have expired anyway.
func (v *TokenValidator) Revoke(tokenStr string, until time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.now()
	for key, expiry := range v.revoked {
		if now.After(expiry) {
			delete(v.revoked, key)
		}
	}
	v.revoked[tokenKey(tokenStr)] = until
}

func (v *TokenValidator) isRevoked(tokenStr string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	expiry, ok := v.revoked[tokenKey(tokenStr)]
	return ok && !v.now().After(expiry)
}

func tokenKey(tokenStr string) string {
	sum := sha256.Sum256([]byte(tokenStr))
	return hex.EncodeToString(sum[:])
}
