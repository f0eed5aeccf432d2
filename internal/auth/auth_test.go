package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestPasswordHashRoundTrip(t *testing.T) {
	hasher := NewPasswordHasher()

	hash, err := hasher.HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Errorf("unexpected hash format: %s", hash)
	}

	ok, err := hasher.VerifyPassword("correct horse battery staple", hash)
	if err != nil {
		t.Fatalf("VerifyPassword failed: %v", err)
	}
	if !ok {
		t.Error("expected password to verify")
	}

	ok, err = hasher.VerifyPassword("wrong password", hash)
	if err != nil {
		t.Fatalf("VerifyPassword failed: %v", err)
	}
	if ok {
		t.Error("expected wrong password to fail verification")
	}
}

func TestPasswordHashesAreSalted(t *testing.T) {
	hasher := NewPasswordHasher()

	h1, err := hasher.HashPassword("same password")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	h2, err := hasher.HashPassword("same password")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}

	if h1 == h2 {
		t.Error("expected different hashes for the same password")
	}
}

func TestJWTRoundTrip(t *testing.T) {
	handler := NewJWTHandler("test-secret-at-least-32-characters!!", time.Hour, 24*time.Hour)

	userID := uuid.New()
	token, err := handler.GenerateAccessToken(userID, "operator1", "operator")
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	claims, err := handler.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("ValidateAccessToken failed: %v", err)
	}

	if claims.UserID != userID {
		t.Errorf("expected user ID %s, got %s", userID, claims.UserID)
	}
	if claims.Username != "operator1" {
		t.Errorf("expected username operator1, got %s", claims.Username)
	}
	if claims.Role != "operator" {
		t.Errorf("expected role operator, got %s", claims.Role)
	}
}

func TestJWTExpired(t *testing.T) {
	handler := NewJWTHandler("test-secret-at-least-32-characters!!", -time.Minute, 24*time.Hour)

	token, err := handler.GenerateAccessToken(uuid.New(), "u", "viewer")
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	if _, err := handler.ValidateAccessToken(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestJWTWrongSecret(t *testing.T) {
	handler := NewJWTHandler("test-secret-at-least-32-characters!!", time.Hour, 24*time.Hour)
	other := NewJWTHandler("a-different-secret-32-characters!!!!", time.Hour, 24*time.Hour)

	token, err := handler.GenerateAccessToken(uuid.New(), "u", "viewer")
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	if _, err := other.ValidateAccessToken(token); err == nil {
		t.Fatal("expected token signed with another secret to be rejected")
	}
}

func TestRoleToPermissions(t *testing.T) {
	svc := &AuthService{}

	tests := []struct {
		role string
		want []Permission
	}{
		{"admin", []Permission{PermViewer, PermOperator, PermAdmin}},
		{"operator", []Permission{PermViewer, PermOperator}},
		{"viewer", []Permission{PermViewer}},
		{"bogus", nil},
	}

	for _, tt := range tests {
		got := svc.roleToPermissions(tt.role)
		if len(got) != len(tt.want) {
			t.Errorf("role %s: expected %d permissions, got %d", tt.role, len(tt.want), len(got))
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("role %s: permission %d: expected %s, got %s", tt.role, i, tt.want[i], got[i])
			}
		}
	}
}
