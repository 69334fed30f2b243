package mcp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"sync"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-gem/pkg/auth"
	"github.com/ekaya-inc/ekaya-gem/pkg/logging"
	"github.com/ekaya-inc/ekaya-gem/pkg/metrics"
)

// Tool call outcomes recorded in metrics.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error" // structured error result
	OutcomeFault   = "fault" // Go error returned by the handler
)

// maxParamSize is the maximum size of a string parameter kept in audit logs.
const maxParamSize = 1024

// AuditLogger logs every tool call with its duration and outcome and feeds
// the tool-call metrics.
type AuditLogger struct {
	metrics *metrics.Metrics
	logger  *zap.Logger

	// startTimes tracks when tool calls begin, keyed by request ID.
	startTimes sync.Map
}

// NewAuditLogger creates an AuditLogger. m may be nil.
func NewAuditLogger(m *metrics.Metrics, logger *zap.Logger) *AuditLogger {
	return &AuditLogger{
		metrics: m,
		logger:  logger.Named("mcp-audit"),
	}
}

// Hooks returns mcp-go Hooks configured to capture tool call events.
func (a *AuditLogger) Hooks() *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(a.beforeCallTool)
	hooks.AddAfterCallTool(a.afterCallTool)
	hooks.AddOnError(a.onError)
	return hooks
}

func (a *AuditLogger) beforeCallTool(_ context.Context, id any, _ *mcplib.CallToolRequest) {
	a.startTimes.Store(id, time.Now())
}

func (a *AuditLogger) afterCallTool(ctx context.Context, id any, req *mcplib.CallToolRequest, result *mcplib.CallToolResult) {
	duration := a.elapsed(id)
	tool := req.Params.Name

	outcome := OutcomeSuccess
	fields := []zap.Field{
		zap.String("tool", tool),
		zap.Duration("duration", duration),
		zap.Any("params", sanitizeParams(req.Params.Arguments)),
	}
	if caller := auth.Caller(ctx); caller != "" {
		fields = append(fields, zap.String("caller", caller))
	}
	if result != nil && result.IsError {
		outcome = OutcomeError
		fields = append(fields, zap.String("error_code", errorCode(result)))
	}
	fields = append(fields, zap.String("outcome", outcome))

	a.metrics.ObserveToolCall(tool, outcome, duration)
	a.logger.Info("Tool call", fields...)
}

func (a *AuditLogger) onError(ctx context.Context, id any, method mcplib.MCPMethod, message any, err error) {
	if method != mcplib.MethodToolsCall {
		return
	}

	req, ok := message.(*mcplib.CallToolRequest)
	if !ok {
		return
	}

	duration := a.elapsed(id)
	a.metrics.ObserveToolCall(req.Params.Name, OutcomeFault, duration)
	a.logger.Error("Tool call failed",
		zap.String("tool", req.Params.Name),
		zap.Duration("duration", duration),
		zap.String("caller", auth.Caller(ctx)),
		zap.Any("params", sanitizeParams(req.Params.Arguments)),
		zap.String("error", logging.SanitizeError(err)))
}

// RecordAuthFailure logs a rejected request on the HTTP transport.
// Called from the MCP auth middleware when authentication fails.
func (a *AuditLogger) RecordAuthFailure(reason, clientIP string) {
	a.logger.Warn("MCP authentication failed",
		zap.String("reason", reason),
		zap.String("client_ip", clientIP))
}

func (a *AuditLogger) elapsed(id any) time.Duration {
	if v, ok := a.startTimes.LoadAndDelete(id); ok {
		return time.Since(v.(time.Time))
	}
	return 0
}

// sensitiveKeyPattern identifies parameter keys whose values are hashed.
var sensitiveKeyPattern = regexp.MustCompile(`(?i)(password|secret|token|api[_-]?key|credential)`)

// sanitizeParams prepares request parameters for logging: protein sets are
// digested, sensitive values hashed and long strings truncated.
func sanitizeParams(args any) map[string]any {
	params, ok := args.(map[string]any)
	if !ok || len(params) == 0 {
		return nil
	}

	sanitized := make(map[string]any, len(params))
	for k, v := range params {
		sanitized[k] = sanitizeValue(k, v)
	}
	return sanitized
}

func sanitizeValue(key string, value any) any {
	if sensitiveKeyPattern.MatchString(key) {
		return hashSensitiveValue(value)
	}
	if key == "proteins" {
		if m, ok := value.(map[string]any); ok {
			return summarizeProteins(m)
		}
	}

	switch val := value.(type) {
	case string:
		return logging.Truncate(val, maxParamSize)
	case map[string]any:
		return sanitizeParams(val)
	default:
		return value
	}
}

func summarizeProteins(m map[string]any) map[string]any {
	proteins := make(map[string]string, len(m))
	for id, v := range m {
		if s, ok := v.(string); ok {
			proteins[id] = s
		} else {
			proteins[id] = fmt.Sprintf("%v", v)
		}
	}
	s := logging.SummarizeProteins(proteins)
	return map[string]any{
		"count":          s.Count,
		"total_residues": s.TotalResidues,
		"sample":         s.Sample,
	}
}

// hashSensitiveValue returns a SHA-256 hash prefix for sensitive values,
// allowing correlation across log entries without storing the actual value.
func hashSensitiveValue(value any) string {
	str, ok := value.(string)
	if !ok {
		str = fmt.Sprintf("%v", value)
	}
	hash := sha256.Sum256([]byte(str))
	return "sha256:" + hex.EncodeToString(hash[:8]) // First 8 bytes = 16 hex chars
}

// errorCode extracts the code field of a structured error result.
func errorCode(result *mcplib.CallToolResult) string {
	for _, c := range result.Content {
		tc, ok := c.(mcplib.TextContent)
		if !ok {
			continue
		}
		var partial struct {
			Code string `json:"code"`
		}
		if err := json.Unmarshal([]byte(tc.Text), &partial); err == nil && partial.Code != "" {
			return partial.Code
		}
	}
	return "unknown"
}
