package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-gem/pkg/mcp"
	mcpauth "github.com/ekaya-inc/ekaya-gem/pkg/mcp/auth"
	"github.com/ekaya-inc/ekaya-gem/pkg/middleware"
)

// MCPPath is the MCP endpoint for the streamable HTTP transport.
const MCPPath = "/mcp"

// MCPHandler handles MCP protocol requests over HTTP.
type MCPHandler struct {
	httpServer http.Handler
	logger     *zap.Logger
}

// NewMCPHandler creates a new MCP handler from an MCP server.
func NewMCPHandler(mcpServer *mcp.Server, logger *zap.Logger) *MCPHandler {
	return &MCPHandler{
		httpServer: mcpServer.NewStreamableHTTPServer(),
		logger:     logger,
	}
}

// RegisterRoutes registers the MCP endpoint. A nil auth middleware serves
// the endpoint without token verification.
func (h *MCPHandler) RegisterRoutes(mux *http.ServeMux, mcpAuthMiddleware *mcpauth.Middleware) {
	// Wrap the MCP HTTP server with middleware layers:
	// 1. MCP request/response logging (innermost - logs JSON-RPC details)
	// 2. Authentication (middle - validates JWT token)
	// 3. Method check (outermost - rejects non-POST before auth)
	var handler http.Handler = middleware.MCPRequestLogger(h.logger)(h.httpServer)
	if mcpAuthMiddleware != nil {
		handler = mcpAuthMiddleware.RequireAuth(handler)
	}
	mux.Handle(MCPPath, h.requirePOST(handler))
}

// requirePOST returns 405 Method Not Allowed for non-POST requests.
// The server is stateless, so there is no GET stream or DELETE session.
func (h *MCPHandler) requirePOST(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			if err := ErrorResponse(w, http.StatusMethodNotAllowed, "method_not_allowed", "MCP requests must use POST"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		next.ServeHTTP(w, r)
	})
}
