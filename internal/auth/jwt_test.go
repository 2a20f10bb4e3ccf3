package auth

import (
	"testing"
	"time"

	"github.com/nexuscore/agentrt/pkg/models"
)

func TestJWTServiceGenerateValidate(t *testing.T) {
	service := NewJWTService("secret", time.Hour)
	token, err := service.Generate(&models.Principal{ID: "principal-1", Email: "p@example.com", Name: "P"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	principal, err := service.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if principal.ID != "principal-1" {
		t.Fatalf("expected principal id, got %q", principal.ID)
	}
	if principal.Email != "p@example.com" {
		t.Fatalf("expected email, got %q", principal.Email)
	}
}

func TestJWTServiceRejectsTamperedToken(t *testing.T) {
	service := NewJWTService("secret", time.Hour)
	token, err := service.Generate(&models.Principal{ID: "principal-1"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	other := NewJWTService("different-secret", time.Hour)
	if _, err := other.Validate(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got %v", err)
	}
}

func TestJWTServiceNonExpiringToken(t *testing.T) {
	service := NewJWTService("secret", 0)
	token, err := service.Generate(&models.Principal{ID: "principal-1"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if _, err := service.Validate(token); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}
