package tools

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-gem/pkg/apperrors"
)

// ErrorResponse represents a structured error in tool results.
// This is used to return actionable error information to the client
// as a tool result, ensuring error details are visible
// rather than being swallowed by the MCP client.
type ErrorResponse struct {
	Error      bool     `json:"error"`
	Code       string   `json:"code"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
	Available  []string `json:"available,omitempty"`
	Details    any      `json:"details,omitempty"`
}

// NewErrorResult creates a tool result containing a structured error.
// Use this for recoverable/actionable errors that the client should see and
// can potentially fix (e.g., invalid parameters, resource not found).
//
// Do NOT use this for system failures - those should still return Go errors.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	return newErrorResult(ErrorResponse{Code: code, Message: message})
}

// NewErrorResultWithDetails creates an error result with additional context.
//
// Example:
//
//	return NewErrorResultWithDetails(
//	    "invalid_parameters",
//	    "compound bounds could not be parsed",
//	    map[string]any{"compound": "cpd00027"},
//	), nil
func NewErrorResultWithDetails(code, message string, details any) *mcp.CallToolResult {
	return newErrorResult(ErrorResponse{Code: code, Message: message, Details: details})
}

// NewAppErrorResult renders a domain error as a structured error result.
// Returns nil if err is not a domain error (caller should return a Go error instead).
func NewAppErrorResult(err error) *mcp.CallToolResult {
	appErr, ok := apperrors.As(err)
	if !ok {
		return nil
	}
	resp := ErrorResponse{
		Code:       string(appErr.Kind),
		Message:    appErr.Error(),
		Suggestion: appErr.Suggestion,
		Available:  appErr.Available,
	}
	if len(appErr.Details) > 0 {
		resp.Details = appErr.Details
	}
	if appErr.IsRetryable() {
		resp.Details = mergeDetails(resp.Details, "retryable", true)
	}
	return newErrorResult(resp)
}

func newErrorResult(resp ErrorResponse) *mcp.CallToolResult {
	resp.Error = true
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

func mergeDetails(details any, key string, value any) map[string]any {
	out := map[string]any{key: value}
	if m, ok := details.(map[string]any); ok {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

// IsInputError returns true if the error was caused by the caller's input or
// by the state of their models rather than a server failure. Input errors are
// logged at DEBUG level, not ERROR level.
func IsInputError(err error) bool {
	if err == nil {
		return false
	}
	kind := apperrors.KindOf(err)
	return kind != "" && kind != apperrors.KindSolver
}

// toolError converts a service error into the tool's return values: domain
// errors become structured results, anything else is a Go error.
func toolError(logger *zap.Logger, tool string, err error) (*mcp.CallToolResult, error) {
	if result := NewAppErrorResult(err); result != nil {
		if IsInputError(err) {
			logger.Debug("Tool returned error result",
				zap.String("tool", tool),
				zap.String("code", string(apperrors.KindOf(err))),
				zap.Error(err))
		} else {
			logger.Error("Tool failed",
				zap.String("tool", tool),
				zap.Error(err))
		}
		return result, nil
	}
	logger.Error("Tool failed with system error",
		zap.String("tool", tool),
		zap.Error(err))
	return nil, fmt.Errorf("%s: %w", tool, err)
}
