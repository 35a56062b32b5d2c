package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"alawein/internal/platform/config"
)

func sign(t *testing.T, secret string, c Claims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func TestTokenService_RoundTrip(t *testing.T) {
	svc := NewTokenService(config.JWTConfig{Secret: "s3cret", Issuer: "alawein", AccessTokenTTL: time.Minute})

	token := sign(t, "s3cret", Claims{Email: "a@b.com", Role: RoleAdmin, RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user-1",
		Issuer:    "alawein",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}})

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.UserID() != "user-1" || claims.Email != "a@b.com" || !claims.IsAdmin() {
		t.Errorf("Unexpected claims %+v", claims)
	}
}

func TestTokenService_Rejects(t *testing.T) {
	svc := NewTokenService(config.JWTConfig{Secret: "s3cret", Issuer: "alawein"})

	foreign := sign(t, "different", Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1", Issuer: "alawein"}})
	if _, err := svc.ValidateToken(foreign); err == nil {
		t.Error("Expected error for token signed with another secret")
	}

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user-1",
		Issuer:    "alawein",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}})
	signed, _ := expired.SignedString([]byte("s3cret"))
	if _, err := svc.ValidateToken(signed); err == nil {
		t.Error("Expected error for expired token")
	}

	noSubject := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{Issuer: "alawein"}})
	signed, _ = noSubject.SignedString([]byte("s3cret"))
	if _, err := svc.ValidateToken(signed); err == nil {
		t.Error("Expected error for token without subject")
	}
}

func TestKeyHasher(t *testing.T) {
	h := NewKeyHasher("pepper", "")

	raw, hash, err := h.Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if !strings.HasPrefix(raw, DefaultKeyPrefix) || !h.Looks(raw) {
		t.Errorf("Expected prefix %s, got %s", DefaultKeyPrefix, raw)
	}
	if strings.Contains(hash, raw) {
		t.Error("Hash must not contain the raw key")
	}

	again, _ := h.Hash(raw)
	if again != hash {
		t.Error("Hash is not deterministic")
	}

	otherPepper, _ := NewKeyHasher("other", "").Hash(raw)
	if otherPepper == hash {
		t.Error("Hash should depend on the pepper")
	}

	long := NewKeyHasher(strings.Repeat("p", 100), "")
	if _, err := long.Hash(raw); err != nil {
		t.Errorf("Long pepper should be accepted: %v", err)
	}
}
