package server

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func mintToken(t *testing.T, secret, audience string, expires time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": "ops@example.com",
		"aud": audience,
		"exp": expires.Unix(),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return raw
}

func TestAuthenticatorRequiresSecret(t *testing.T) {
	if _, err := NewAuthenticator("   ", "nftdropd"); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}

func TestVerifyAcceptsValidToken(t *testing.T) {
	auth, err := NewAuthenticator("hunter2", "nftdropd")
	if err != nil {
		t.Fatalf("new authenticator: %v", err)
	}
	principal, err := auth.Verify(mintToken(t, "hunter2", "nftdropd", time.Now().Add(time.Hour)))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if principal.Subject != "ops@example.com" {
		t.Fatalf("unexpected subject: %s", principal.Subject)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	auth, _ := NewAuthenticator("hunter2", "nftdropd")
	if _, err := auth.Verify(mintToken(t, "not-the-secret", "nftdropd", time.Now().Add(time.Hour))); err == nil {
		t.Fatalf("forged token must be rejected")
	}
}

func TestVerifyRejectsWrongAudience(t *testing.T) {
	auth, _ := NewAuthenticator("hunter2", "nftdropd")
	if _, err := auth.Verify(mintToken(t, "hunter2", "some-other-service", time.Now().Add(time.Hour))); err == nil {
		t.Fatalf("wrong audience must be rejected")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	auth, _ := NewAuthenticator("hunter2", "nftdropd")
	if _, err := auth.Verify(mintToken(t, "hunter2", "nftdropd", time.Now().Add(-time.Minute))); err == nil {
		t.Fatalf("expired token must be rejected")
	}
}

func TestVerifyRequiresExpiry(t *testing.T) {
	auth, _ := NewAuthenticator("hunter2", "nftdropd")
	claims := jwt.MapClaims{"sub": "ops@example.com", "aud": "nftdropd"}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("hunter2"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := auth.Verify(raw); err == nil {
		t.Fatalf("token without expiry must be rejected")
	}
}
