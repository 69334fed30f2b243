// Package mcpauth provides MCP-specific authentication middleware.
// It wraps the core auth service with RFC 6750 Bearer token error responses.
package mcpauth

import (
	"errors"
	"net"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-gem/pkg/auth"
)

// AuthFailureRecorder records rejected requests.
type AuthFailureRecorder interface {
	RecordAuthFailure(reason, clientIP string)
}

// Middleware provides MCP-specific authentication middleware.
// Unlike a plain 401, this returns RFC 6750 WWW-Authenticate
// headers for OAuth 2.0 Bearer token authentication errors.
type Middleware struct {
	authService auth.AuthService
	audit       AuthFailureRecorder
	logger      *zap.Logger
}

// NewMiddleware creates a new MCP auth middleware. audit may be nil.
func NewMiddleware(authService auth.AuthService, audit AuthFailureRecorder, logger *zap.Logger) *Middleware {
	return &Middleware{
		authService: authService,
		audit:       audit,
		logger:      logger,
	}
}

// RequireAuth validates the bearer token and injects its claims into the
// request context. Returns RFC 6750 WWW-Authenticate headers on failures.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, token, err := m.authService.ValidateRequest(r)
		if err != nil {
			m.logger.Debug("MCP auth failed",
				zap.String("path", r.URL.Path),
				zap.Error(err))
			m.recordFailure(err.Error(), r)

			if errors.Is(err, auth.ErrMissingAuthorization) {
				// RFC 6750 Section 3.1: no error code when credentials are absent
				w.Header().Set("WWW-Authenticate", `Bearer realm="ekaya-gem"`)
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			if errors.Is(err, auth.ErrInvalidAuthFormat) {
				m.writeWWWAuthenticate(w, http.StatusBadRequest, "invalid_request", "The Authorization header must use the Bearer scheme")
				return
			}
			m.writeWWWAuthenticate(w, http.StatusUnauthorized, "invalid_token", "The access token is invalid or expired")
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims, token)))
	})
}

func (m *Middleware) recordFailure(reason string, r *http.Request) {
	if m.audit == nil {
		return
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	m.audit.RecordAuthFailure(reason, ip)
}

// writeWWWAuthenticate writes an RFC 6750 Bearer token error response.
// See: https://datatracker.ietf.org/doc/html/rfc6750#section-3
func (m *Middleware) writeWWWAuthenticate(w http.ResponseWriter, status int, errorCode, description string) {
	headerValue := `Bearer realm="ekaya-gem", error="` + errorCode + `", error_description="` + description + `"`
	w.Header().Set("WWW-Authenticate", headerValue)
	w.WriteHeader(status)
}
