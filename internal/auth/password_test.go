package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestAdminCredentialsPlain(t *testing.T) {
	creds := AdminCredentials{Password: "s3cret"}
	if !creds.Configured() {
		t.Fatal("expected plain password to count as configured")
	}
	if err := creds.Verify("s3cret"); err != nil {
		t.Fatalf("expected match, got %v", err)
	}
	if err := creds.Verify("wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAdminCredentialsNotConfigured(t *testing.T) {
	var creds AdminCredentials
	if creds.Configured() {
		t.Fatal("expected empty credentials to be unconfigured")
	}
	if err := creds.Verify("anything"); !errors.Is(err, ErrAdminNotConfigured) {
		t.Fatalf("expected ErrAdminNotConfigured, got %v", err)
	}
}

func TestAdminCredentialsPBKDF2(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !strings.HasPrefix(hash, "pbkdf2$sha256$120000$") {
		t.Fatalf("unexpected hash format %q", hash)
	}
	creds := AdminCredentials{Password: "ignored", PasswordHash: hash}
	if err := creds.Verify("hunter2"); err != nil {
		t.Fatalf("expected match, got %v", err)
	}
	if err := creds.Verify("ignored"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected hash to take precedence, got %v", err)
	}
}

func TestAdminCredentialsBcrypt(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	creds := AdminCredentials{PasswordHash: string(hash)}
	if err := creds.Verify("hunter2"); err != nil {
		t.Fatalf("expected match, got %v", err)
	}
	if err := creds.Verify("nope"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAdminCredentialsMalformedHash(t *testing.T) {
	creds := AdminCredentials{PasswordHash: "md5$abc"}
	err := creds.Verify("x")
	if err == nil || errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected format error, got %v", err)
	}
}

func TestHashPasswordRequiresInput(t *testing.T) {
	if _, err := HashPassword(""); err == nil {
		t.Fatal("expected empty password to be rejected")
	}
}
