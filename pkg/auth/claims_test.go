package auth

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func TestWithClaims_RoundTrip(t *testing.T) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-123"},
		Email:            "user@example.com",
	}
	ctx := WithClaims(context.Background(), claims, "raw-token")

	got, ok := GetClaims(ctx)
	if !ok || got != claims {
		t.Fatalf("expected claims in context, got %v", got)
	}
	token, ok := GetToken(ctx)
	if !ok || token != "raw-token" {
		t.Errorf("expected raw-token in context, got %q", token)
	}
}

func TestGetClaims_Missing(t *testing.T) {
	if _, ok := GetClaims(context.Background()); ok {
		t.Error("expected no claims in empty context")
	}
	if _, ok := GetToken(context.Background()); ok {
		t.Error("expected no token in empty context")
	}
}

func TestCaller(t *testing.T) {
	tests := []struct {
		name   string
		claims *Claims
		want   string
	}{
		{"no claims", nil, ""},
		{"email preferred", &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"}, Email: "a@b.c"}, "a@b.c"},
		{"subject fallback", &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"}}, "u1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.claims != nil {
				ctx = WithClaims(ctx, tt.claims, "t")
			}
			if got := Caller(ctx); got != tt.want {
				t.Errorf("Caller() = %q, want %q", got, tt.want)
			}
		})
	}
}
