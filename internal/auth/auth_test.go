package auth

import (
	"errors"
	"testing"
	"time"
)

func TestVerifierRoundTrip(t *testing.T) {
	t.Parallel()

	verifier, err := NewVerifier("test-secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	token, err := verifier.Sign("cust-1", RoleCustomer, time.Hour)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}

	claims, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("failed to verify: %v", err)
	}
	if claims.Subject != "cust-1" || claims.Role != RoleCustomer {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestVerifierRejects(t *testing.T) {
	t.Parallel()

	verifier, err := NewVerifier("test-secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{
			name:  "garbage token",
			token: func(*testing.T) string { return "not-a-token" },
		},
		{
			name: "wrong secret",
			token: func(t *testing.T) string {
				other, _ := NewVerifier("other-secret")
				token, err := other.Sign("cust-1", RoleCustomer, time.Hour)
				if err != nil {
					t.Fatalf("failed to sign: %v", err)
				}
				return token
			},
		},
		{
			name: "expired token",
			token: func(t *testing.T) string {
				token, err := verifier.Sign("cust-1", RoleCustomer, -time.Minute)
				if err != nil {
					t.Fatalf("failed to sign: %v", err)
				}
				return token
			},
		},
		{
			name: "unknown role",
			token: func(t *testing.T) string {
				token, err := verifier.Sign("cust-1", "admin", time.Hour)
				if err != nil {
					t.Fatalf("failed to sign: %v", err)
				}
				return token
			},
		},
		{
			name: "missing subject",
			token: func(t *testing.T) string {
				token, err := verifier.Sign("", RoleCustomer, time.Hour)
				if err != nil {
					t.Fatalf("failed to sign: %v", err)
				}
				return token
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := verifier.Verify(tt.token(t)); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestNewVerifierRequiresSecret(t *testing.T) {
	t.Parallel()

	if _, err := NewVerifier(""); !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
}
