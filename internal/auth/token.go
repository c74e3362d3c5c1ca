/**
 * @description
 * This file implements the stateless session token service. Tokens are signed
 * JWTs carrying only the user ID and an expiry; there is no server-side
 * session record and no revocation list, so a token stays valid until it
 * expires or the client deletes its cookie.
 *
 * Extension point: if immediate "logout everywhere" semantics are ever
 * needed, add a per-user token version claim checked here at verification
 * time. The base design deliberately does not assume one.
 */
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is the single failure result of Verify. Malformed tokens,
// bad signatures and expired tokens all collapse into it; callers must not
// try to distinguish the cause.
var ErrInvalidToken = errors.New("invalid token")

// TokenTTL is the session lifetime. The auth cookie Max-Age matches it.
const TokenTTL = 7 * 24 * time.Hour

// TokenService issues and verifies signed session tokens. The secret's
// confidentiality is the sole trust anchor.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a token service signing with the given secret.
// A zero ttl falls back to TokenTTL.
func NewTokenService(secret string, ttl time.Duration) *TokenService {
	if ttl == 0 {
		ttl = TokenTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}
}

// TTL returns the configured token lifetime.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Create signs a new session token for the given user ID.
func (s *TokenService) Create(userID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", err
	}
	return signed, nil
}

// Verify parses and validates a session token and returns the user ID it was
// issued for. It fails closed: any parse, signature, method or expiry problem
// yields ErrInvalidToken.
func (s *TokenService) Verify(tokenString string) (string, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}))
	claims := &jwt.RegisteredClaims{}

	token, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
