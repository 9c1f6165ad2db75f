package auth_test

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kiwari-pos/order-desk/internal/auth"
)

func TestGenerateAndValidateToken(t *testing.T) {
	secret := "test-secret"

	token, err := auth.GenerateToken(secret, "user_2abc", "admin", time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	claims, err := auth.ValidateToken(secret, token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}

	if claims.Subject != "user_2abc" {
		t.Errorf("subject: got %v, want %v", claims.Subject, "user_2abc")
	}
	if claims.Role != "admin" {
		t.Errorf("role: got %v, want %v", claims.Role, "admin")
	}
}

func TestValidateTokenWithWrongSecret(t *testing.T) {
	token, err := auth.GenerateToken("secret-a", "user_1", "admin", time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	_, err = auth.ValidateToken("secret-b", token)
	if !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateTokenExpired(t *testing.T) {
	token, err := auth.GenerateToken("secret", "user_1", "", -time.Minute)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	if _, err := auth.ValidateToken("secret", token); !errors.Is(err, auth.ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestValidateTokenWithInvalidString(t *testing.T) {
	_, err := auth.ValidateToken("secret", "not-a-jwt")
	if err == nil {
		t.Fatal("expected error validating invalid token string")
	}
}

// providerToken is signed with a key the desk does not hold.
func providerToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := auth.Claims{
		SessionID: "sess_9",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user_3xyz",
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("provider-key"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestParseClaims(t *testing.T) {
	now := time.Now()

	claims, err := auth.ParseClaims(providerToken(t, now.Add(time.Hour)), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.Subject != "user_3xyz" || claims.SessionID != "sess_9" {
		t.Errorf("claims: got %+v", claims)
	}

	if _, err := auth.ParseClaims(providerToken(t, now.Add(-time.Second)), now); !errors.Is(err, auth.ErrExpiredToken) {
		t.Errorf("expired: got %v", err)
	}
	if _, err := auth.ParseClaims("garbage", now); !errors.Is(err, auth.ErrInvalidToken) {
		t.Errorf("garbage: got %v", err)
	}
}

func TestVerifier(t *testing.T) {
	token, _ := auth.GenerateToken("dev", "user_1", "admin", time.Hour)

	if _, err := auth.NewVerifier("dev").Verify(token); err != nil {
		t.Errorf("with secret: %v", err)
	}
	if _, err := auth.NewVerifier("other").Verify(token); err == nil {
		t.Error("wrong secret should fail")
	}
	if _, err := auth.NewVerifier("").Verify(token); err != nil {
		t.Errorf("claims only: %v", err)
	}
}

func TestSession(t *testing.T) {
	s := auth.NewSession()
	if _, ok := s.Token(); ok {
		t.Fatal("new session should have no token")
	}

	live := &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user_1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	s.Set("tok-1", live)
	if tok, ok := s.Token(); !ok || tok != "tok-1" {
		t.Errorf("token: got %q, %v", tok, ok)
	}
	if s.Subject() != "user_1" {
		t.Errorf("subject: got %q", s.Subject())
	}

	expired := &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}}
	s.Set("tok-2", expired)
	if _, ok := s.Token(); ok {
		t.Error("expired token should count as absent")
	}

	s.Set("", nil)
	if _, ok := s.Token(); ok {
		t.Error("cleared session should have no token")
	}
}
