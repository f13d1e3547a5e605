package alert

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "github.com/gustwatch/gustwatch/pkg/errors"
)

// TokenSigner issues and verifies the signed unsubscribe tokens embedded
// in alert emails, so opt-out links work without a session.
type TokenSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenSigner builds a signer. TTL bounds how long an emailed link
// stays valid.
func NewTokenSigner(secret string, ttl time.Duration) *TokenSigner {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &TokenSigner{secret: []byte(secret), ttl: ttl}
}

// Issue signs an unsubscribe token for one subscriber.
func (t *TokenSigner) Issue(subscriberID uuid.UUID, now time.Time) (string, error) {
	if len(t.secret) == 0 {
		return "", apperrors.New("missing_config", "unsubscribe secret is not configured")
	}
	claims := jwt.RegisteredClaims{
		Subject:   subscriberID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		Issuer:    "gustwatch",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", apperrors.Wrap("token_error", "failed to sign unsubscribe token", err)
	}
	return signed, nil
}

// Verify parses a token back into the subscriber it was issued for.
func (t *TokenSigner) Verify(raw string) (uuid.UUID, error) {
	if len(t.secret) == 0 {
		return uuid.Nil, apperrors.New("missing_config", "unsubscribe secret is not configured")
	}
	parsed, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperrors.New("invalid_token", "unexpected signing method")
		}
		return t.secret, nil
	})
	if err != nil || !parsed.Valid {
		return uuid.Nil, apperrors.Wrap("invalid_token", "unsubscribe token rejected", err)
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return uuid.Nil, apperrors.New("invalid_token", "unsubscribe token has no subject")
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, apperrors.Wrap("invalid_token", "unsubscribe token subject malformed", err)
	}
	return id, nil
}
