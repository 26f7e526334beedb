package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestPasswordHashAndCheck(t *testing.T) {
	svc := NewService("test-secret", time.Hour)

	hash, err := svc.HashPassword("secret123")
	if err != nil {
		t.Fatal(err)
	}
	if hash == "secret123" {
		t.Fatal("hash must not equal the password")
	}
	if err := svc.CheckPassword(hash, "secret123"); err != nil {
		t.Errorf("correct password rejected: %v", err)
	}
	if err := svc.CheckPassword(hash, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: err = %v, want ErrInvalidCredentials", err)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	svc := NewService("test-secret", time.Hour)

	token, err := svc.GenerateToken(42, "alice")
	if err != nil {
		t.Fatal(err)
	}
	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.UserID != 42 || claims.Username != "alice" {
		t.Errorf("claims = %d/%q, want 42/alice", claims.UserID, claims.Username)
	}
}

func TestExpiredToken(t *testing.T) {
	svc := NewService("test-secret", -time.Minute)

	token, err := svc.GenerateToken(1, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ValidateToken(token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("err = %v, want ErrTokenExpired", err)
	}
}

func TestTokenWrongSecret(t *testing.T) {
	token, err := NewService("secret-one", time.Hour).GenerateToken(1, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewService("secret-two", time.Hour).ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestMiddleware(t *testing.T) {
	svc := NewService("test-secret", time.Hour)
	token, err := svc.GenerateToken(7, "bob")
	if err != nil {
		t.Fatal(err)
	}

	var got *Claims
	handler := Middleware(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetClaims(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	// A valid bearer token populates the context.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got == nil || got.UserID != 7 {
		t.Fatalf("claims = %+v, want user 7", got)
	}

	// No header passes through unauthenticated.
	got = nil
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || got != nil {
		t.Fatalf("anonymous request: code %d, claims %+v", rec.Code, got)
	}

	// A garbage token is rejected outright.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: code %d, want 401", rec.Code)
	}
}
