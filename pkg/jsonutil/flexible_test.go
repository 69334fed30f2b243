package jsonutil

import (
	"encoding/json"
	"math"
	"testing"
)

func TestFlexibleStringValue(t *testing.T) {
	tests := []struct {
		name  string
		input json.RawMessage
		want  string
	}{
		{
			name:  "string value",
			input: json.RawMessage(`"hello"`),
			want:  "hello",
		},
		{
			name:  "integer value",
			input: json.RawMessage(`42`),
			want:  "42",
		},
		{
			name:  "float value",
			input: json.RawMessage(`3.14`),
			want:  "3.14",
		},
		{
			name:  "boolean true",
			input: json.RawMessage(`true`),
			want:  "true",
		},
		{
			name:  "boolean false",
			input: json.RawMessage(`false`),
			want:  "false",
		},
		{
			name:  "null value",
			input: json.RawMessage(`null`),
			want:  "",
		},
		{
			name:  "empty raw message",
			input: json.RawMessage{},
			want:  "",
		},
		{
			name:  "nil raw message",
			input: nil,
			want:  "",
		},
		{
			name:  "large integer preserves precision",
			input: json.RawMessage(`9007199254740992`),
			want:  "9007199254740992",
		},
		{
			name:  "nested object falls back to raw string",
			input: json.RawMessage(`{"key":"value"}`),
			want:  `{"key":"value"}`,
		},
		{
			name:  "array falls back to raw string",
			input: json.RawMessage(`[1,2,3]`),
			want:  `[1,2,3]`,
		},
		{
			name:  "negative integer",
			input: json.RawMessage(`-7`),
			want:  "-7",
		},
		{
			name:  "zero",
			input: json.RawMessage(`0`),
			want:  "0",
		},
		{
			name:  "empty string",
			input: json.RawMessage(`""`),
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FlexibleStringValue(tt.input)
			if got != tt.want {
				t.Errorf("FlexibleStringValue(%s) = %q, want %q", string(tt.input), got, tt.want)
			}
		})
	}
}

func TestFlexibleFloat(t *testing.T) {
	tests := []struct {
		name    string
		input   json.RawMessage
		want    float64
		wantErr bool
	}{
		{name: "number", input: json.RawMessage(`-10`), want: -10},
		{name: "numeric string", input: json.RawMessage(`"1e3"`), want: 1000},
		{name: "positive infinity", input: json.RawMessage(`"inf"`), want: math.Inf(1)},
		{name: "negative infinity", input: json.RawMessage(`"-Infinity"`), want: math.Inf(-1)},
		{name: "NaN", input: json.RawMessage(`"NaN"`), wantErr: true},
		{name: "word", input: json.RawMessage(`"lots"`), wantErr: true},
		{name: "null", input: json.RawMessage(`null`), wantErr: true},
		{name: "boolean", input: json.RawMessage(`true`), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FlexibleFloat(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("FlexibleFloat(%s) = %g, want error", string(tt.input), got)
				}
				return
			}
			if err != nil {
				t.Fatalf("FlexibleFloat(%s) failed: %v", string(tt.input), err)
			}
			if got != tt.want {
				t.Errorf("FlexibleFloat(%s) = %g, want %g", string(tt.input), got, tt.want)
			}
		})
	}
}

func TestFlexibleBound(t *testing.T) {
	tests := []struct {
		name      string
		input     json.RawMessage
		wantLower float64
		wantUpper float64
		wantErr   bool
	}{
		{name: "array", input: json.RawMessage(`[-10, 1000]`), wantLower: -10, wantUpper: 1000},
		{name: "object", input: json.RawMessage(`{"lower": -5, "upper": 5}`), wantLower: -5, wantUpper: 5},
		{name: "min max object", input: json.RawMessage(`{"min": -1, "max": 2}`), wantLower: -1, wantUpper: 2},
		{name: "infinite strings", input: json.RawMessage(`["-inf", "inf"]`), wantLower: math.Inf(-1), wantUpper: math.Inf(1)},
		{name: "short array", input: json.RawMessage(`[1]`), wantErr: true},
		{name: "missing upper", input: json.RawMessage(`{"lower": 1}`), wantErr: true},
		{name: "scalar", input: json.RawMessage(`5`), wantErr: true},
		{name: "bad element", input: json.RawMessage(`["x", 1]`), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, up, err := FlexibleBound(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("FlexibleBound(%s) = [%g, %g], want error", string(tt.input), lo, up)
				}
				return
			}
			if err != nil {
				t.Fatalf("FlexibleBound(%s) failed: %v", string(tt.input), err)
			}
			if lo != tt.wantLower || up != tt.wantUpper {
				t.Errorf("FlexibleBound(%s) = [%g, %g], want [%g, %g]", string(tt.input), lo, up, tt.wantLower, tt.wantUpper)
			}
		})
	}
}
