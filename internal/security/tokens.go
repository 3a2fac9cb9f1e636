package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidSignature is returned by Decode for any token that is malformed,
// signed with another key or algorithm, or missing required claims.
var ErrInvalidSignature = errors.New("invalid token signature")

// Claims is the decoded payload of a session token.
type Claims struct {
	AccountID string
	ExpiresAt time.Time
}

// Expired reports whether the token's expiry lies before now.
func (c Claims) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Signer mints and decodes HS256 session tokens.
type Signer struct {
	secret  []byte
	ttl     time.Duration
	nowFunc func() time.Time
}

// NewSigner returns a Signer that issues tokens valid for ttl.
func NewSigner(secret []byte, ttl time.Duration) (*Signer, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("token secret is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token TTL must be > 0")
	}
	return &Signer{
		secret:  secret,
		ttl:     ttl,
		nowFunc: time.Now,
	}, nil
}

// SetClock replaces the time source used for iat and exp.
func (s *Signer) SetClock(now func() time.Time) {
	s.nowFunc = now
}

// TTL reports how long freshly signed tokens stay valid.
func (s *Signer) TTL() time.Duration {
	return s.ttl
}

// Sign returns a token for accountID expiring TTL from now. Every call yields
// a distinct token, even within the same second.
func (s *Signer) Sign(accountID string) (string, error) {
	if accountID == "" {
		return "", fmt.Errorf("account id is required")
	}
	now := s.nowFunc()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   accountID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Decode verifies the token signature and returns its claims. Expiry is not
// enforced here; callers decide with Claims.Expired.
func (s *Signer) Decode(tokenString string) (Claims, error) {
	var rc jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &rc, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalidSignature
	}
	if rc.Subject == "" || rc.ExpiresAt == nil {
		return Claims{}, ErrInvalidSignature
	}
	return Claims{
		AccountID: rc.Subject,
		ExpiresAt: rc.ExpiresAt.Time,
	}, nil
}
