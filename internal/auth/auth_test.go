package auth

import "testing"

func TestServiceValidateAPIKey(t *testing.T) {
	service := NewService(Config{APIKeys: []APIKeyConfig{{Key: "abc123", UserID: "principal-1", Email: "p@example.com"}}})
	principal, err := service.ValidateAPIKey("abc123")
	if err != nil {
		t.Fatalf("ValidateAPIKey() error = %v", err)
	}
	if principal.ID != "principal-1" {
		t.Fatalf("expected principal id, got %q", principal.ID)
	}
	if principal.Email != "p@example.com" {
		t.Fatalf("expected email, got %q", principal.Email)
	}
}

func TestServiceValidateAPIKeyRejectsUnknownKey(t *testing.T) {
	service := NewService(Config{APIKeys: []APIKeyConfig{{Key: "abc123", UserID: "principal-1"}}})
	if _, err := service.ValidateAPIKey("wrong"); err != ErrInvalidKey {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestServiceDisabledWithNoCredentialsConfigured(t *testing.T) {
	service := NewService(Config{})
	if service.Enabled() {
		t.Fatal("expected service with no JWT secret or API keys to be disabled")
	}
	if _, err := service.ValidateAPIKey("anything"); err != ErrAuthDisabled {
		t.Fatalf("expected ErrAuthDisabled, got %v", err)
	}
}

func TestServiceGeneratesAPIKeyDerivedUserIDWhenUnset(t *testing.T) {
	service := NewService(Config{APIKeys: []APIKeyConfig{{Key: "xyz789"}}})
	principal, err := service.ValidateAPIKey("xyz789")
	if err != nil {
		t.Fatalf("ValidateAPIKey() error = %v", err)
	}
	if principal.ID == "" {
		t.Fatal("expected a derived principal id")
	}
}
