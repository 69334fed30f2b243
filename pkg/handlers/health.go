package handlers

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-gem/pkg/config"
)

// SessionCounter reports how many models and media the session holds.
type SessionCounter interface {
	ModelCount() int
	MediaCount() int
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string        `json:"status"`
	Session *SessionStats `json:"session,omitempty"`
}

// SessionStats summarizes the in-memory session.
type SessionStats struct {
	Models int `json:"models"`
	Media  int `json:"media"`
}

// PingResponse contains service status and version information.
type PingResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Service       string `json:"service"`
	GoVersion     string `json:"go_version"`
	Hostname      string `json:"hostname"`
	Environment   string `json:"environment"`
	Engine        string `json:"reconstruction_engine"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// HealthHandler handles health check and ping endpoints.
type HealthHandler struct {
	cfg     *config.Config
	session SessionCounter
	started time.Time
	logger  *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. session may be nil.
func NewHealthHandler(cfg *config.Config, session SessionCounter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, session: session, started: time.Now(), logger: logger}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ping", h.Ping)
}

// Health handles GET /health requests.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{Status: "ok"}
	if h.session != nil {
		response.Session = &SessionStats{
			Models: h.session.ModelCount(),
			Media:  h.session.MediaCount(),
		}
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
	}
}

// Ping handles GET /ping requests.
// Returns detailed service information including version and environment.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "failed to get hostname"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := PingResponse{
		Status:        "ok",
		Version:       h.cfg.Version,
		Service:       "ekaya-gem",
		GoVersion:     runtime.Version(),
		Hostname:      hostname,
		Environment:   h.cfg.Env,
		Engine:        h.cfg.Reconstruction.Engine,
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}
