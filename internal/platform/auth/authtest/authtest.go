// Package authtest signs access tokens shaped like the identity provider's.
// The server only verifies tokens; issuing them is for tests.
package authtest

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"alawein/internal/platform/auth"
	"alawein/internal/platform/config"
)

// Token returns an HS256 token for userID that auth.TokenService built from
// cfg accepts.
func Token(t testing.TB, cfg config.JWTConfig, userID, email, role string) string {
	t.Helper()
	ttl := cfg.AccessTokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	now := time.Now()
	claims := auth.Claims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    cfg.Issuer,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
