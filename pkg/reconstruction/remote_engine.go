package reconstruction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-gem/pkg/logging"
	"github.com/ekaya-inc/ekaya-gem/pkg/metrics"
	"github.com/ekaya-inc/ekaya-gem/pkg/models"
	"github.com/ekaya-inc/ekaya-gem/pkg/retry"
)

const breakerName = "reconstruction-remote"

// RemoteConfig configures the HTTP reconstruction client.
type RemoteConfig struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// RemoteEngine delegates reconstruction to an HTTP service, with retries for
// transient failures and a circuit breaker around the whole exchange.
type RemoteEngine struct {
	baseURL  string
	client   *http.Client
	retryCfg *retry.Config
	cb       *gobreaker.CircuitBreaker[*models.Model]
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

type reconstructRequest struct {
	Template string            `json:"template"`
	Proteins map[string]string `json:"proteins"`
}

type reconstructResponse struct {
	Model *models.Model `json:"model"`
	Error string        `json:"error,omitempty"`
}

// statusError is a non-2xx response. 429 and 5xx are transient.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("reconstruction service returned status %d: %s", e.status, e.body)
}

func (e *statusError) IsRetryable() bool {
	return e.status == http.StatusTooManyRequests || e.status >= 500
}

// NewRemoteEngine creates the HTTP client. client may be nil.
func NewRemoteEngine(cfg RemoteConfig, client *http.Client, m *metrics.Metrics, logger *zap.Logger) *RemoteEngine {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	retryCfg := retry.DefaultConfig()
	if cfg.MaxRetries >= 0 {
		retryCfg.MaxRetries = cfg.MaxRetries
	}
	logger = logger.Named("reconstruction")

	m.SetBreakerState(breakerName, 0)
	cb := gobreaker.NewCircuitBreaker[*models.Model](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		// Opens after 5 consecutive failed reconstructions.
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Caller mistakes must not open the circuit.
		IsSuccessful: func(err error) bool {
			var se *statusError
			if errors.As(err, &se) {
				return !se.IsRetryable()
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			m.SetBreakerState(name, stateValue(to))
		},
	})

	return &RemoteEngine{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		client:   client,
		retryCfg: retryCfg,
		cb:       cb,
		metrics:  m,
		logger:   logger,
	}
}

var _ Engine = (*RemoteEngine)(nil)

func (e *RemoteEngine) BuildDraft(ctx context.Context, proteins map[string]string, template string) (*models.Model, error) {
	if err := ValidateProteins(proteins); err != nil {
		return nil, err
	}

	model, err := e.cb.Execute(func() (*models.Model, error) {
		return retry.DoIfRetryable(ctx, e.retryCfg, func() (*models.Model, error) {
			return e.post(ctx, reconstructRequest{Template: template, Proteins: proteins})
		})
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			e.metrics.ObserveRemoteRequest("rejected")
		} else {
			e.metrics.ObserveRemoteRequest("failure")
		}
		e.logger.Error("Remote reconstruction failed",
			zap.String("url", logging.SanitizeURL(e.baseURL)),
			zap.Error(err))
		return nil, fmt.Errorf("remote reconstruction: %w", err)
	}
	e.metrics.ObserveRemoteRequest("success")
	return model, nil
}

func (e *RemoteEngine) post(ctx context.Context, body reconstructRequest) (*models.Model, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/reconstruct", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{status: resp.StatusCode, body: logging.Truncate(string(data), 200)}
	}

	var out reconstructResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("reconstruction service error: %s", out.Error)
	}
	if out.Model == nil || len(out.Model.Reactions) == 0 {
		return nil, fmt.Errorf("reconstruction service returned an empty model")
	}
	if err := out.Model.Reindex(); err != nil {
		return nil, fmt.Errorf("reconstruction service returned an invalid model: %w", err)
	}
	if out.Model.Template == "" {
		out.Model.Template = body.Template
	}
	if out.Model.Objective == "" {
		out.Model.Objective = "bio1"
	}
	out.Model.ID = ""
	out.Model.CreatedAt = time.Now().UTC()
	return out.Model, nil
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
