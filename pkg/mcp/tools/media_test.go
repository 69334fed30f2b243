package tools

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-gem/pkg/services"
)

func TestBuildMediaTool(t *testing.T) {
	s, _ := newTestServer(t)

	var detail services.MediaDetail
	callToolOK(t, s, "build_media", map[string]any{
		"media_name":  "my_glc",
		"description": "glucose and oxygen",
		"compounds": map[string]any{
			"cpd00027": []any{-10, 1000},
			"cpd00007": map[string]any{"lower": "-20", "upper": 1000},
			"cpd00011": []any{0, "inf"},
		},
	}, &detail)

	assert.Equal(t, "my_glc", detail.ID)
	assert.False(t, detail.IsPredefined)
	assert.Equal(t, 3, detail.Compounds)
	assert.Equal(t, "glucose and oxygen", detail.Description)
	assert.Equal(t, -10.0, detail.Bounds["cpd00027"].Lower)
	assert.Equal(t, -20.0, detail.Bounds["cpd00007"].Lower)
	assert.ElementsMatch(t, []string{"cpd00007", "cpd00027"}, detail.UptakeCompounds)
}

func TestBuildMediaTool_InvalidInput(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name     string
		args     map[string]any
		contains string
	}{
		{"missing name", map[string]any{"compounds": map[string]any{"cpd00027": []any{-10, 10}}}, "media_name is required"},
		{"missing compounds", map[string]any{"media_name": "x"}, "compounds is required"},
		{"malformed bound", map[string]any{"media_name": "x", "compounds": map[string]any{"cpd00027": "lots"}}, "compound cpd00027"},
		{"short bound", map[string]any{"media_name": "x", "compounds": map[string]any{"cpd00027": []any{-10}}}, "compound cpd00027"},
		{"inverted bound", map[string]any{"media_name": "x", "compounds": map[string]any{"cpd00027": []any{10, -10}}}, "exceeds upper bound"},
		{"bad name", map[string]any{"media_name": "bad name", "compounds": map[string]any{"cpd00027": []any{-10, 10}}}, "media_name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errResp := callToolErr(t, s, "build_media", tt.args)
			assert.Equal(t, "validation_error", errResp.Code)
			assert.Contains(t, errResp.Message, tt.contains)
		})
	}
}

func TestBuildMediaTool_CannotReplacePredefined(t *testing.T) {
	s, _ := newTestServer(t)

	errResp := callToolErr(t, s, "build_media", map[string]any{
		"media_name": "glucose_minimal",
		"compounds":  map[string]any{"cpd00027": []any{-1, 1}},
	})
	assert.Contains(t, []string{"conflict", "immutable"}, errResp.Code)
}

func TestParseCompoundBounds(t *testing.T) {
	bounds, err := parseCompoundBounds(map[string]json.RawMessage{
		"cpd00027": json.RawMessage(`[-10, 1000]`),
		"cpd00007": json.RawMessage(`{"min": "-inf", "max": 0}`),
	})
	require.NoError(t, err)
	assert.Equal(t, -10.0, bounds["cpd00027"].Lower)
	assert.True(t, math.IsInf(bounds["cpd00007"].Lower, -1))
	assert.Equal(t, 0.0, bounds["cpd00007"].Upper)

	_, err = parseCompoundBounds(map[string]json.RawMessage{
		"cpd00002": json.RawMessage(`"nan"`),
		"cpd00001": json.RawMessage(`[1, 2, 3]`),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compound cpd00001")
}

func TestGetAndListMediaTools(t *testing.T) {
	s, _ := newTestServer(t)

	var detail services.MediaDetail
	callToolOK(t, s, "get_media", map[string]any{"media_id": "glucose_minimal"}, &detail)
	assert.True(t, detail.IsPredefined)
	assert.Contains(t, detail.UptakeCompounds, "cpd00027")

	errResp := callToolErr(t, s, "get_media", map[string]any{"media_id": "lb"})
	assert.Equal(t, "not_found", errResp.Code)
	assert.Contains(t, errResp.Available, "glucose_minimal")

	var list listMediaResult
	callToolOK(t, s, "list_media", nil, &list)
	assert.Equal(t, len(list.Media), list.Count)
	assert.Contains(t, list.Summary, "media")

	ids := make([]string, len(list.Media))
	for i, m := range list.Media {
		ids[i] = m.ID
	}
	assert.Contains(t, ids, "glucose_minimal")
	assert.Contains(t, ids, "empty")
}

func TestDeleteMediaTool(t *testing.T) {
	s, store := newTestServer(t)
	before := store.MediaCount()

	callToolOK(t, s, "build_media", map[string]any{
		"media_name": "tmp",
		"compounds":  map[string]any{"cpd00027": []any{-5, 5}},
	}, nil)
	require.Equal(t, before+1, store.MediaCount())

	var res deleteMediaResult
	callToolOK(t, s, "delete_media", map[string]any{"media_id": "tmp"}, &res)
	assert.Equal(t, deleteMediaResult{MediaID: "tmp", Deleted: true}, res)
	assert.Equal(t, before, store.MediaCount())

	errResp := callToolErr(t, s, "delete_media", map[string]any{"media_id": "glucose_minimal"})
	assert.Equal(t, "immutable", errResp.Code)

	errResp = callToolErr(t, s, "delete_media", map[string]any{"media_id": "tmp"})
	assert.Equal(t, "not_found", errResp.Code)
}
