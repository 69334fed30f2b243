package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-gem/pkg/config"
)

func serveWellKnown(t *testing.T, cfg *config.Config) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	NewWellKnownHandler(cfg, zap.NewNop()).RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/.well-known/oauth-protected-resource", nil))
	return rec
}

func TestWellKnown_ProtectedResource(t *testing.T) {
	cfg := &config.Config{BaseURL: "https://gem.example.org/"}
	cfg.Auth.EnableVerification = true
	cfg.Auth.JWKSEndpoints = map[string]string{
		"https://us.auth.example.org": "https://us.auth.example.org/.well-known/jwks.json",
		"https://auth.example.org":    "https://auth.example.org/.well-known/jwks.json",
	}

	rec := serveWellKnown(t, cfg)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))

	var metadata ProtectedResourceMetadata
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&metadata))
	assert.Equal(t, "https://gem.example.org/mcp", metadata.Resource)
	assert.Equal(t, []string{"https://auth.example.org", "https://us.auth.example.org"}, metadata.AuthorizationServers)
	assert.Equal(t, []string{"header"}, metadata.BearerMethodsSupported)
	assert.Equal(t, "ekaya-gem", metadata.ResourceName)
}

func TestWellKnown_VerificationDisabled(t *testing.T) {
	rec := serveWellKnown(t, &config.Config{BaseURL: "http://localhost:3480"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body errorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "not_found", body.Code)
}
