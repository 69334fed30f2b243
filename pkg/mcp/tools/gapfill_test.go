package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-gem/pkg/services"
)

func TestGapfillTool(t *testing.T) {
	s, store := newTestServer(t)
	callToolOK(t, s, "build_model", map[string]any{"proteins": proteinArgs(3), "model_name": "model"}, nil)

	var res services.GapfillResult
	callToolOK(t, s, "gapfill_model", map[string]any{
		"model_id": "model.draft",
		"media_id": "glucose_minimal",
	}, &res)

	assert.Equal(t, "model.draft.gf", res.ModelID)
	assert.Equal(t, "model.draft", res.SourceModelID)
	assert.Equal(t, services.ModeFull, res.Mode)
	assert.Equal(t, services.DefaultTargetGrowth, res.TargetGrowth)
	assert.True(t, res.TargetAchieved)
	assert.True(t, res.ATPCorrection.Ran)
	assert.NotEmpty(t, res.ReactionsAdded)
	assert.NotNil(t, res.Warnings)
	assert.Contains(t, res.Summary, "model.draft.gf")

	gf, err := store.GetModel("model.draft.gf")
	require.NoError(t, err)
	assert.Equal(t, "model.draft", gf.DerivedFrom)
}

func TestGapfillTool_Modes(t *testing.T) {
	s, _ := newTestServer(t)
	callToolOK(t, s, "build_model", map[string]any{"proteins": proteinArgs(3), "model_name": "model"}, nil)

	errResp := callToolErr(t, s, "gapfill_model", map[string]any{
		"model_id": "model.draft",
		"media_id": "glucose_minimal",
		"mode":     "genomescale_only",
	})
	assert.Equal(t, "usage_error", errResp.Code)
	assert.Contains(t, errResp.Suggestion, "full or atp_only")

	var first services.GapfillResult
	callToolOK(t, s, "gapfill_model", map[string]any{
		"model_id": "model.draft",
		"media_id": "glucose_minimal",
		"mode":     "atp_only",
	}, &first)
	assert.Equal(t, services.ModeATPOnly, first.Mode)
	assert.False(t, first.TargetAchieved)

	var second services.GapfillResult
	callToolOK(t, s, "gapfill_model", map[string]any{
		"model_id": first.ModelID,
		"media_id": "glucose_minimal",
		"mode":     "genomescale_only",
	}, &second)
	assert.Equal(t, "model.draft.gf.gf", second.ModelID)
	assert.True(t, second.ATPCorrection.Reused)
	assert.True(t, second.TargetAchieved)
}

func TestGapfillTool_UnreachableTarget(t *testing.T) {
	s, _ := newTestServer(t)
	callToolOK(t, s, "build_model", map[string]any{"proteins": proteinArgs(3), "model_name": "model"}, nil)

	var res services.GapfillResult
	callToolOK(t, s, "gapfill_model", map[string]any{
		"model_id":           "model.draft",
		"media_id":           "glucose_minimal",
		"target_growth_rate": 1e6,
	}, &res)
	assert.False(t, res.TargetAchieved)
	assert.Greater(t, res.GrowthAfter, 0.0)
}

func TestGapfillTool_InvalidInput(t *testing.T) {
	s, _ := newTestServer(t)
	callToolOK(t, s, "build_model", map[string]any{"proteins": proteinArgs(3), "model_name": "model"}, nil)

	tests := []struct {
		name     string
		args     map[string]any
		code     string
		contains string
	}{
		{"missing model", map[string]any{"media_id": "glucose_minimal"}, "validation_error", "model_id is required"},
		{"missing media", map[string]any{"model_id": "model.draft"}, "validation_error", "media_id is required"},
		{"zero target", map[string]any{"model_id": "model.draft", "media_id": "glucose_minimal", "target_growth_rate": 0}, "validation_error", "target_growth_rate must be greater than 0"},
		{"negative target", map[string]any{"model_id": "model.draft", "media_id": "glucose_minimal", "target_growth_rate": -0.5}, "validation_error", "target_growth_rate"},
		{"string target", map[string]any{"model_id": "model.draft", "media_id": "glucose_minimal", "target_growth_rate": "fast"}, "validation_error", "target_growth_rate must be a number"},
		{"unknown mode", map[string]any{"model_id": "model.draft", "media_id": "glucose_minimal", "mode": "quick"}, "validation_error", "mode must be one of"},
		{"unknown model", map[string]any{"model_id": "nope.draft", "media_id": "glucose_minimal"}, "not_found", "nope.draft"},
		{"unknown media", map[string]any{"model_id": "model.draft", "media_id": "seawater"}, "not_found", "seawater"},
		{"empty media", map[string]any{"model_id": "model.draft", "media_id": "empty"}, "infeasible", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errResp := callToolErr(t, s, "gapfill_model", tt.args)
			assert.Equal(t, tt.code, errResp.Code)
			assert.Contains(t, errResp.Message, tt.contains)
		})
	}
}

func TestGapfillTool_RepeatIsConflict(t *testing.T) {
	s, _ := newTestServer(t)
	callToolOK(t, s, "build_model", map[string]any{"proteins": proteinArgs(3), "model_name": "model"}, nil)
	args := map[string]any{"model_id": "model.draft", "media_id": "glucose_minimal"}

	callToolOK(t, s, "gapfill_model", args, nil)
	errResp := callToolErr(t, s, "gapfill_model", args)
	assert.Equal(t, "conflict", errResp.Code)
	assert.Nil(t, errResp.Details)
}
