package jsonutil

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FlexibleStringValue converts a json.RawMessage to a string, handling cases where
// clients send numbers or booleans instead of strings. Returns empty string for null/empty.
func FlexibleStringValue(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	// Try string first
	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		return strVal
	}

	// Try number
	var numVal float64
	if err := json.Unmarshal(raw, &numVal); err == nil {
		if numVal == float64(int64(numVal)) {
			return fmt.Sprintf("%d", int64(numVal))
		}
		return fmt.Sprintf("%g", numVal)
	}

	// Try boolean
	var boolVal bool
	if err := json.Unmarshal(raw, &boolVal); err == nil {
		return fmt.Sprintf("%t", boolVal)
	}

	// Fallback: return raw string representation
	return string(raw)
}

// FlexibleFloat converts a json.RawMessage to a float64. JSON has no infinity
// literal, so strings such as "inf", "-Infinity" or "1e3" are accepted too.
func FlexibleFloat(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, fmt.Errorf("missing number")
	}

	var numVal float64
	if err := json.Unmarshal(raw, &numVal); err == nil {
		return numVal, nil
	}

	var strVal string
	if err := json.Unmarshal(raw, &strVal); err != nil {
		return 0, fmt.Errorf("expected a number, got %s", string(raw))
	}
	strVal = strings.TrimSpace(strVal)
	f, err := strconv.ParseFloat(strVal, 64)
	if err != nil {
		return 0, fmt.Errorf("expected a number, got %q", strVal)
	}
	if math.IsNaN(f) {
		return 0, fmt.Errorf("NaN is not a valid number")
	}
	return f, nil
}

// FlexibleBound parses a [lower, upper] pair given either as a two-element
// array or as an object with "lower"/"upper" keys ("min"/"max" are accepted).
func FlexibleBound(raw json.RawMessage) (lower, upper float64, err error) {
	trimmed := strings.TrimSpace(string(raw))
	switch {
	case strings.HasPrefix(trimmed, "["):
		var pair []json.RawMessage
		if err := json.Unmarshal(raw, &pair); err != nil {
			return 0, 0, fmt.Errorf("invalid bound array: %w", err)
		}
		if len(pair) != 2 {
			return 0, 0, fmt.Errorf("bound array must have 2 elements, got %d", len(pair))
		}
		return boundPair(pair[0], pair[1])

	case strings.HasPrefix(trimmed, "{"):
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return 0, 0, fmt.Errorf("invalid bound object: %w", err)
		}
		lo, ok := obj["lower"]
		if !ok {
			lo, ok = obj["min"]
		}
		if !ok {
			return 0, 0, fmt.Errorf("bound object needs a lower key")
		}
		up, ok := obj["upper"]
		if !ok {
			up, ok = obj["max"]
		}
		if !ok {
			return 0, 0, fmt.Errorf("bound object needs an upper key")
		}
		return boundPair(lo, up)
	}
	return 0, 0, fmt.Errorf("bound must be [lower, upper] or {\"lower\": ..., \"upper\": ...}, got %s", trimmed)
}

func boundPair(lo, up json.RawMessage) (float64, float64, error) {
	lower, err := FlexibleFloat(lo)
	if err != nil {
		return 0, 0, fmt.Errorf("lower: %w", err)
	}
	upper, err := FlexibleFloat(up)
	if err != nil {
		return 0, 0, fmt.Errorf("upper: %w", err)
	}
	return lower, upper, nil
}
