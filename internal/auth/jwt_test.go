package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func sign(t *testing.T, secret, userID string, exp time.Time) string {
	t.Helper()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		UserID: userID,
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestVerifyAcceptsValidToken(t *testing.T) {
	v, err := NewVerifier("secret")
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}

	now := time.Unix(1700000000, 0).UTC()
	tok := sign(t, "secret", "user-1", now.Add(time.Hour))

	claims, err := v.Verify(tok, now)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	v, _ := NewVerifier("secret")
	tok := sign(t, "other-secret", "user-1", time.Now().Add(time.Hour))
	if _, err := v.Verify(tok, time.Now()); err == nil {
		t.Fatalf("expected signature error")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	v, _ := NewVerifier("secret")
	now := time.Unix(1700000000, 0).UTC()
	tok := sign(t, "secret", "user-1", now.Add(-time.Hour))
	if _, err := v.Verify(tok, now); err == nil {
		t.Fatalf("expected expiry error")
	}
}

func TestVerifyRejectsMissingUserID(t *testing.T) {
	v, _ := NewVerifier("secret")
	tok := sign(t, "secret", "", time.Now().Add(time.Hour))
	if _, err := v.Verify(tok, time.Now()); err == nil {
		t.Fatalf("expected user_id error")
	}
}

func TestNewVerifierRequiresSecret(t *testing.T) {
	if _, err := NewVerifier(""); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}
