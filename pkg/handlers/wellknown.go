package handlers

import (
	"net/http"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-gem/pkg/config"
)

// ProtectedResourceMetadata is the OAuth 2.0 Protected Resource Metadata (RFC 9728)
// that tells MCP clients which issuers may mint tokens for this server.
type ProtectedResourceMetadata struct {
	Resource               string   `json:"resource"`
	AuthorizationServers   []string `json:"authorization_servers"`
	BearerMethodsSupported []string `json:"bearer_methods_supported"`
	ResourceName           string   `json:"resource_name"`
}

// WellKnownHandler handles /.well-known/* endpoints.
type WellKnownHandler struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewWellKnownHandler creates a new WellKnownHandler.
func NewWellKnownHandler(cfg *config.Config, logger *zap.Logger) *WellKnownHandler {
	return &WellKnownHandler{
		cfg:    cfg,
		logger: logger,
	}
}

// RegisterRoutes registers well-known endpoints.
func (h *WellKnownHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /.well-known/oauth-protected-resource", h.ProtectedResource)
}

// ProtectedResource serves the protected resource metadata. Without token
// verification there is nothing to discover and the endpoint returns 404.
func (h *WellKnownHandler) ProtectedResource(w http.ResponseWriter, r *http.Request) {
	if !h.cfg.Auth.EnableVerification {
		if err := ErrorResponse(w, http.StatusNotFound, "not_found", "token verification is disabled"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	issuers := make([]string, 0, len(h.cfg.Auth.JWKSEndpoints))
	for issuer := range h.cfg.Auth.JWKSEndpoints {
		issuers = append(issuers, issuer)
	}
	sort.Strings(issuers)

	metadata := ProtectedResourceMetadata{
		Resource:               strings.TrimSuffix(h.cfg.BaseURL, "/") + MCPPath,
		AuthorizationServers:   issuers,
		BearerMethodsSupported: []string{"header"},
		ResourceName:           "ekaya-gem",
	}

	w.Header().Set("Cache-Control", "public, max-age=3600")
	if err := WriteJSON(w, http.StatusOK, metadata); err != nil {
		h.logger.Error("Failed to encode protected resource metadata", zap.Error(err))
	}
}
