package auth

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"
)

func TestManagerRoundTrip(t *testing.T) {
	m, err := NewManager("secret")
	if err != nil {
		t.Fatal(err)
	}
	token, err := m.NewJWT(Principal{UserID: 9, Role: RoleMechanic}, time.Minute)
	if err != nil {
		t.Fatalf("NewJWT: %v", err)
	}
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	p, err := m.Authenticate(req)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if p.UserID != 9 || p.Role != RoleMechanic {
		t.Fatalf("unexpected principal %+v", p)
	}
}

func TestManagerRejects(t *testing.T) {
	m, _ := NewManager("secret")
	other, _ := NewManager("other")
	expired, _ := m.NewJWT(Principal{UserID: 1, Role: RoleCustomer}, -time.Minute)
	foreign, _ := other.NewJWT(Principal{UserID: 1, Role: RoleCustomer}, time.Minute)

	for name, header := range map[string]string{
		"missing": "",
		"scheme":  "Token abc",
		"expired": "Bearer " + expired,
		"foreign": "Bearer " + foreign,
	} {
		req := httptest.NewRequest("GET", "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		if _, err := m.Authenticate(req); !errors.Is(err, ErrUnauthenticated) {
			t.Fatalf("%s: expected ErrUnauthenticated, got %v", name, err)
		}
	}
	if _, err := NewManager(""); err == nil {
		t.Fatal("empty key must be rejected")
	}
}

func TestHeaderAuthenticator(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if _, err := (HeaderAuthenticator{}).Authenticate(req); err == nil {
		t.Fatal("expected error without header")
	}
	req.Header.Set("X-User-ID", "4")
	p, err := HeaderAuthenticator{}.Authenticate(req)
	if err != nil || p.UserID != 4 || p.Role != RoleCustomer {
		t.Fatalf("unexpected %+v %v", p, err)
	}
	if !(Principal{Role: RoleAdmin}).Is(RoleMechanic) {
		t.Fatal("admin must pass any role check")
	}
	ctx := WithPrincipal(context.Background(), p)
	if got, ok := FromContext(ctx); !ok || got != p {
		t.Fatal("principal not stored in context")
	}
}
