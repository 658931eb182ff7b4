package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret, uid string, expiry time.Duration) string {
	t.Helper()
	claims := Claims{
		ID: uid,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiry)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestVerifyValidToken(t *testing.T) {
	v := NewVerifier(testSecret)

	uid, err := v.Verify(signToken(t, testSecret, "user-123", time.Hour))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if uid != "user-123" {
		t.Errorf("uid = %q, want user-123", uid)
	}
}

func TestVerifyEmptyToken(t *testing.T) {
	v := NewVerifier(testSecret)
	if _, err := v.Verify(""); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("error = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	v := NewVerifier(testSecret)
	if _, err := v.Verify(signToken(t, "other-secret", "user-123", time.Hour)); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("error = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	v := NewVerifier(testSecret)
	if _, err := v.Verify(signToken(t, testSecret, "user-123", -time.Minute)); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("error = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyMissingIDClaim(t *testing.T) {
	v := NewVerifier(testSecret)
	if _, err := v.Verify(signToken(t, testSecret, "", time.Hour)); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("error = %v, want ErrInvalidToken", err)
	}
}
