package mcpauth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-gem/pkg/auth"
	"github.com/ekaya-inc/ekaya-gem/pkg/testhelpers"
)

type mockAuthService struct {
	claims *auth.Claims
	token  string
	err    error
}

func (m *mockAuthService) ValidateRequest(r *http.Request) (*auth.Claims, string, error) {
	if m.err != nil {
		return nil, "", m.err
	}
	return m.claims, m.token, nil
}

type mockAuditLogger struct {
	reasons []string
	ips     []string
}

func (m *mockAuditLogger) RecordAuthFailure(reason, clientIP string) {
	m.reasons = append(m.reasons, reason)
	m.ips = append(m.ips, clientIP)
}

func TestMiddleware_RequireAuth_Success(t *testing.T) {
	claims := &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-123"}}
	mw := NewMiddleware(&mockAuthService{claims: claims, token: "tok"}, nil, zap.NewNop())

	var gotClaims *auth.Claims
	var gotToken string
	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClaims, _ = auth.GetClaims(r.Context())
		gotToken, _ = auth.GetToken(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotClaims != claims {
		t.Error("expected claims in handler context")
	}
	if gotToken != "tok" {
		t.Errorf("expected token 'tok', got %q", gotToken)
	}
}

func TestMiddleware_RequireAuth_Failures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantHeader string
	}{
		{"missing", auth.ErrMissingAuthorization, http.StatusUnauthorized, `Bearer realm="ekaya-gem"`},
		{"bad format", auth.ErrInvalidAuthFormat, http.StatusBadRequest, `error="invalid_request"`},
		{"invalid token", errors.New("token expired"), http.StatusUnauthorized, `error="invalid_token"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			audit := &mockAuditLogger{}
			mw := NewMiddleware(&mockAuthService{err: tt.err}, audit, zap.NewNop())

			called := false
			handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			}))

			req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
			req.RemoteAddr = "10.0.0.5:51234"
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if called {
				t.Error("next handler should not be called")
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if h := rec.Header().Get("WWW-Authenticate"); !strings.Contains(h, tt.wantHeader) {
				t.Errorf("expected WWW-Authenticate containing %q, got %q", tt.wantHeader, h)
			}
			if len(audit.ips) != 1 || audit.ips[0] != "10.0.0.5" {
				t.Errorf("expected one audited failure from 10.0.0.5, got %v", audit.ips)
			}
		})
	}
}

func TestMiddleware_RequireAuth_NoAuditLogger_NoPanic(t *testing.T) {
	mw := NewMiddleware(&mockAuthService{err: errors.New("bad")}, nil, zap.NewNop())
	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestMiddleware_RequireAuth_RealTokens(t *testing.T) {
	issuer := testhelpers.NewJWTIssuer(t, "https://auth.example.com")
	client, err := auth.NewJWKSClient(&auth.JWKSConfig{
		JWKSEndpoints: map[string]string{issuer.Issuer: issuer.JWKSURL},
		Audience:      testhelpers.TestAudience,
	})
	if err != nil {
		t.Fatalf("NewJWKSClient failed: %v", err)
	}
	defer client.Close()

	mw := NewMiddleware(auth.NewAuthService(client, zap.NewNop()), nil, zap.NewNop())
	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(auth.Caller(r.Context())))
	}))

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer "+issuer.Token(t, "alice", testhelpers.TestAudience))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "alice@example.com" {
		t.Errorf("expected caller alice@example.com, got %q", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer "+issuer.ExpiredToken(t, "alice"))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for expired token, got %d", rec.Code)
	}
}
