package httpapi

import (
	"context"
	"testing"
	"time"

	"ichiboo/backend/internal/domain"
	"ichiboo/backend/internal/pos"
	"ichiboo/backend/internal/store/kv"
	"ichiboo/backend/internal/store/memory"
)

func newTestAuth(t *testing.T, secret string) *AuthManager {
	t.Helper()
	repo, err := memory.New(context.Background(), kv.NewVolatile())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return NewAuthManager(secret, time.Hour, pos.New(repo))
}

func TestTokenRoundTrip(t *testing.T) {
	auth := newTestAuth(t, "round-trip-secret")

	resp, err := auth.Login(context.Background(), domain.LoginRequest{PIN: "0000"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	actor, err := auth.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if actor.EmployeeID != domain.DefaultAdminID {
		t.Fatalf("employee id = %d, want %d", actor.EmployeeID, domain.DefaultAdminID)
	}
	if actor.Role != domain.RoleAdmin {
		t.Fatalf("role = %q", actor.Role)
	}
	if actor.SessionID == "" {
		t.Fatal("missing session id")
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	auth := newTestAuth(t, "round-trip-secret")

	for _, token := range []string{"", "not-a-jwt", "aaa.bbb.ccc"} {
		if _, err := auth.ParseToken(token); err == nil {
			t.Fatalf("token %q accepted", token)
		}
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	signer := newTestAuth(t, "secret-one")
	verifier := newTestAuth(t, "secret-two")

	resp, err := signer.Login(context.Background(), domain.LoginRequest{PIN: "0000"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := verifier.ParseToken(resp.AccessToken); err == nil {
		t.Fatal("token signed with another secret accepted")
	}
}
