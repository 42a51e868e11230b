package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenIssuer signs HS256 access tokens accepted by JWTMiddleware.
type TokenIssuer struct {
	issuer string
	key    []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(issuer string, key []byte, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{issuer: issuer, key: key, ttl: ttl, now: time.Now}
}

// Issue returns a signed token for userID and its expiry time.
func (i *TokenIssuer) Issue(userID string, roles ...string) (string, time.Time, error) {
	now := i.now()
	exp := now.Add(i.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Roles: roles,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}
