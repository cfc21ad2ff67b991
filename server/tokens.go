package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"ecmdash/internal/identity"
)

var errBadToken = errors.New("invalid token")

// tokens issues and checks HS256 session tokens carrying identity.Claims.
type tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func newTokens(secret string, ttl time.Duration) *tokens {
	return &tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (t *tokens) Issue(u User) (string, error) {
	now := t.now()
	claims := identity.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
		Role:  u.Role,
		Email: u.Email,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (t *tokens) Verify(raw string) (identity.Claims, error) {
	var claims identity.Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return identity.Claims{}, fmt.Errorf("%w: %v", errBadToken, err)
	}
	return claims, nil
}
