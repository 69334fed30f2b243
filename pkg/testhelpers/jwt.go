package testhelpers

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TestAudience is the audience ekaya-gem requires by default.
const TestAudience = "ekaya-gem"

// JWTIssuer signs RS256 tokens and serves its public key on a JWKS endpoint.
type JWTIssuer struct {
	Issuer  string
	JWKSURL string

	key *rsa.PrivateKey
	kid string
}

// NewJWTIssuer starts a JWKS server that lives for the duration of the test.
func NewJWTIssuer(t *testing.T, issuer string) *JWTIssuer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate RSA key: %v", err)
	}

	ji := &JWTIssuer{Issuer: issuer, key: key, kid: "test-key"}

	jwks := map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": ji.kid,
			"alg": "RS256",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}},
	}
	body, err := json.Marshal(jwks)
	if err != nil {
		t.Fatalf("failed to marshal JWKS: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	ji.JWKSURL = srv.URL

	return ji
}

// Token signs a token for sub with the given audience, valid for an hour.
func (ji *JWTIssuer) Token(t *testing.T, sub, audience string) string {
	t.Helper()
	return ji.sign(t, sub, audience, time.Now().Add(time.Hour))
}

// ExpiredToken signs a token that expired a minute ago.
func (ji *JWTIssuer) ExpiredToken(t *testing.T, sub string) string {
	t.Helper()
	return ji.sign(t, sub, TestAudience, time.Now().Add(-time.Minute))
}

func (ji *JWTIssuer) sign(t *testing.T, sub, audience string, expires time.Time) string {
	t.Helper()

	claims := jwt.MapClaims{
		"iss":   ji.Issuer,
		"sub":   sub,
		"aud":   audience,
		"exp":   expires.Unix(),
		"iat":   time.Now().Unix(),
		"email": sub + "@example.com",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = ji.kid

	signed, err := token.SignedString(ji.key)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}
