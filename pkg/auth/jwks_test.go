package auth

import (
	"strings"
	"testing"

	"github.com/ekaya-inc/ekaya-gem/pkg/testhelpers"
)

func newTestClient(t *testing.T, issuer *testhelpers.JWTIssuer) *JWKSClient {
	t.Helper()
	client, err := NewJWKSClient(&JWKSConfig{
		JWKSEndpoints: map[string]string{issuer.Issuer: issuer.JWKSURL},
		Audience:      testhelpers.TestAudience,
	})
	if err != nil {
		t.Fatalf("NewJWKSClient failed: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

func TestNewJWKSClient_RequiresEndpoints(t *testing.T) {
	_, err := NewJWKSClient(&JWKSConfig{})
	if err == nil {
		t.Fatal("expected error without JWKS endpoints")
	}
}

func TestJWKSClient_ValidateToken(t *testing.T) {
	issuer := testhelpers.NewJWTIssuer(t, "https://auth.example.com")
	client := newTestClient(t, issuer)

	claims, err := client.ValidateToken(issuer.Token(t, "user-123", testhelpers.TestAudience))
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}

	if claims.Subject != "user-123" {
		t.Errorf("expected Subject 'user-123', got %q", claims.Subject)
	}
	if claims.Email != "user-123@example.com" {
		t.Errorf("expected Email 'user-123@example.com', got %q", claims.Email)
	}
	if claims.Issuer != "https://auth.example.com" {
		t.Errorf("expected Issuer 'https://auth.example.com', got %q", claims.Issuer)
	}
}

func TestJWKSClient_ValidateToken_WrongAudience(t *testing.T) {
	issuer := testhelpers.NewJWTIssuer(t, "https://auth.example.com")
	client := newTestClient(t, issuer)

	_, err := client.ValidateToken(issuer.Token(t, "user-123", "engine"))
	if err == nil {
		t.Fatal("expected error for a token issued to another audience")
	}
}

func TestJWKSClient_ValidateToken_Expired(t *testing.T) {
	issuer := testhelpers.NewJWTIssuer(t, "https://auth.example.com")
	client := newTestClient(t, issuer)

	_, err := client.ValidateToken(issuer.ExpiredToken(t, "user-123"))
	if err == nil {
		t.Fatal("expected error for an expired token")
	}
}

func TestJWKSClient_ValidateToken_UnknownIssuer(t *testing.T) {
	trusted := testhelpers.NewJWTIssuer(t, "https://auth.example.com")
	rogue := testhelpers.NewJWTIssuer(t, "https://rogue.example.com")
	client := newTestClient(t, trusted)

	_, err := client.ValidateToken(rogue.Token(t, "user-123", testhelpers.TestAudience))
	if err == nil {
		t.Fatal("expected error for an unauthorized issuer")
	}
	if !strings.Contains(err.Error(), "unauthorized issuer") {
		t.Errorf("expected unauthorized issuer error, got: %v", err)
	}
}

func TestJWKSClient_ValidateToken_WrongKey(t *testing.T) {
	trusted := testhelpers.NewJWTIssuer(t, "https://auth.example.com")
	// Same issuer name, different signing key.
	impostor := testhelpers.NewJWTIssuer(t, "https://auth.example.com")
	client := newTestClient(t, trusted)

	_, err := client.ValidateToken(impostor.Token(t, "user-123", testhelpers.TestAudience))
	if err == nil {
		t.Fatal("expected error for a token signed with another key")
	}
}

func TestJWKSClient_ValidateToken_Malformed(t *testing.T) {
	issuer := testhelpers.NewJWTIssuer(t, "https://auth.example.com")
	client := newTestClient(t, issuer)

	for _, token := range []string{"", "not-a-valid-token", "a.b.c"} {
		if _, err := client.ValidateToken(token); err == nil {
			t.Errorf("expected error for token %q", token)
		}
	}
}
