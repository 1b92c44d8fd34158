package security_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cwrk-planet/realtime-service/internal/domain"
	"github.com/cwrk-planet/realtime-service/internal/memstore"
	"github.com/cwrk-planet/realtime-service/internal/security"

	"github.com/golang-jwt/jwt"
)

var secret = []byte("test-secret")

func signHS(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestVerify_HS256(t *testing.T) {
	v := security.NewHS256Verifier(secret, "auth", "", time.Second)
	now := time.Now()

	tok := signHS(t, security.AccessClaims{StandardClaims: jwt.StandardClaims{
		Subject: "u1", Issuer: "auth", ExpiresAt: now.Add(time.Minute).Unix(),
	}})
	claims, err := v.Verify(tok)
	if err != nil {
		t.Fatal(err)
	}
	if id, _ := security.SubjectOf(claims); id != "u1" {
		t.Fatalf("subject = %q", id)
	}

	expired := signHS(t, security.AccessClaims{StandardClaims: jwt.StandardClaims{
		Subject: "u1", Issuer: "auth", ExpiresAt: now.Add(-time.Minute).Unix(),
	}})
	if _, err := v.Verify(expired); !errors.Is(err, security.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}

	wrongIss := signHS(t, security.AccessClaims{StandardClaims: jwt.StandardClaims{Subject: "u1", Issuer: "other"}})
	if _, err := v.Verify(wrongIss); !errors.Is(err, security.ErrInvalidIssuer) {
		t.Fatalf("expected ErrInvalidIssuer, got %v", err)
	}

	if _, err := v.Verify("garbage"); !errors.Is(err, security.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerify_LegacyIDClaim(t *testing.T) {
	v := security.NewHS256Verifier(secret, "", "", 0)
	tok := signHS(t, security.AccessClaims{UserID: "u7", Name: "Seven"})

	claims, err := v.Verify(tok)
	if err != nil {
		t.Fatal(err)
	}
	if id, err := security.SubjectOf(claims); err != nil || id != "u7" {
		t.Fatalf("subject = %q, %v", id, err)
	}
}

func TestVerify_RS256RejectsHS256(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	v := security.NewRS256Verifier(&key.PublicKey, "", "rt", 0)

	good, err := jwt.NewWithClaims(jwt.SigningMethodRS256, security.AccessClaims{StandardClaims: jwt.StandardClaims{
		Subject: "u1", Audience: "rt",
	}}).SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := v.Verify(good); err != nil {
		t.Fatalf("rs256: %v", err)
	}

	wrongAud, _ := jwt.NewWithClaims(jwt.SigningMethodRS256, security.AccessClaims{StandardClaims: jwt.StandardClaims{
		Subject: "u1", Audience: "other",
	}}).SignedString(key)
	if _, err := v.Verify(wrongAud); !errors.Is(err, security.ErrInvalidAudience) {
		t.Fatalf("expected ErrInvalidAudience, got %v", err)
	}

	hs := signHS(t, security.AccessClaims{StandardClaims: jwt.StandardClaims{Subject: "u1", Audience: "rt"}})
	if _, err := v.Verify(hs); !errors.Is(err, security.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestAuthenticator(t *testing.T) {
	users := memstore.New()
	users.PutUser(domain.Identity{ID: "u1", DisplayName: "Alice"})
	a := security.NewAuthenticator(security.NewHS256Verifier(secret, "", "", 0), users)
	ctx := context.Background()

	id, err := a.Authenticate(ctx, signHS(t, security.AccessClaims{StandardClaims: jwt.StandardClaims{Subject: "u1"}}))
	if err != nil || id.ID != "u1" || id.DisplayName != "Alice" {
		t.Fatalf("identity = %+v, %v", id, err)
	}

	for name, cred := range map[string]string{
		"empty":   "",
		"bad":     "not-a-jwt",
		"unknown": signHS(t, security.AccessClaims{StandardClaims: jwt.StandardClaims{Subject: "ghost"}}),
		"no sub":  signHS(t, security.AccessClaims{}),
	} {
		if _, err := a.Authenticate(ctx, cred); !errors.Is(err, domain.ErrUnauthenticated) {
			t.Fatalf("%s: expected ErrUnauthenticated, got %v", name, err)
		}
	}
}

func TestCredentialFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws?token=q1", nil)
	r.Header.Set("Authorization", "Bearer h1")
	if got := security.CredentialFromRequest(r); got != "q1" {
		t.Fatalf("query token must win, got %q", got)
	}

	r = httptest.NewRequest("GET", "/ws?access_token=q2", nil)
	if got := security.CredentialFromRequest(r); got != "q2" {
		t.Fatalf("got %q", got)
	}

	r = httptest.NewRequest("GET", "/api/users/online", nil)
	r.Header.Set("Authorization", "bearer h1")
	if got := security.CredentialFromRequest(r); got != "h1" {
		t.Fatalf("got %q", got)
	}

	r = httptest.NewRequest("GET", "/", nil)
	if got := security.CredentialFromRequest(r); got != "" {
		t.Fatalf("got %q", got)
	}
}
