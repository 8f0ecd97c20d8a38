package httpapi

import (
	"strings"
	"testing"
	"time"
)

const testPIN = "482915"

func TestLoginIssuesParsableToken(t *testing.T) {
	manager := NewAuthManager("test-secret-key-that-is-long-enough", time.Hour, testPIN)

	resp, err := manager.Login(LoginRequest{PIN: testPIN})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if resp.AccessToken == "" || resp.Role != RoleOwner {
		t.Fatalf("unexpected login response %+v", resp)
	}

	session, err := manager.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if session.Subject != ownerSubject || session.Role != RoleOwner {
		t.Fatalf("unexpected session %+v", session)
	}
	if session.ExpiresAt.UTC().Format(time.RFC3339) != resp.ExpiresAt {
		t.Fatalf("expiry mismatch: token %s, response %s", session.ExpiresAt, resp.ExpiresAt)
	}
}

func TestLoginRejectsWrongPIN(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, testPIN)

	for _, pin := range []string{"", "000000", testPIN + "0"} {
		if _, err := manager.Login(LoginRequest{PIN: pin}); err != ErrInvalidCredentials {
			t.Fatalf("pin %q: expected invalid credentials, got %v", pin, err)
		}
	}
}

func TestLoginDisabledWithoutPIN(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, "  ")

	if _, err := manager.Login(LoginRequest{PIN: ""}); err == nil {
		t.Fatalf("expected login to fail when no PIN is configured")
	}
	if manager.ValidateManagerPIN("disabled") {
		t.Fatalf("expected manager PIN checks to fail when no PIN is configured")
	}
}

func TestManagerPINStoredHashed(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, testPIN)

	if !isPasswordHash(manager.managerPIN) || strings.Contains(manager.managerPIN, testPIN) {
		t.Fatalf("expected bcrypt hash, got %q", manager.managerPIN)
	}
	if !manager.ValidateManagerPIN(" " + testPIN + " ") {
		t.Fatalf("expected surrounding whitespace to be ignored")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Minute, testPIN)
	start := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	manager.now = func() time.Time { return start }

	resp, err := manager.Login(LoginRequest{PIN: testPIN})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	manager.now = func() time.Time { return start.Add(2 * time.Minute) }
	if _, err := manager.ParseToken(resp.AccessToken); err != ErrInvalidToken {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}

func TestParseTokenRejectsForeignSecret(t *testing.T) {
	issuer := NewAuthManager("secret-one", time.Hour, testPIN)
	verifier := NewAuthManager("secret-two", time.Hour, testPIN)

	resp, err := issuer.Login(LoginRequest{PIN: testPIN})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if _, err := verifier.ParseToken(resp.AccessToken); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}
	if _, err := verifier.ParseToken("not-a-token"); err == nil {
		t.Fatalf("expected garbage token to be rejected")
	}
}
