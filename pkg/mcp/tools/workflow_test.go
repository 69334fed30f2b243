package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-gem/pkg/services"
)

// TestWorkflow_BuildGapfillSimulate drives the reconstruction pipeline
// the way an agent would: build, check it cannot grow, gapfill, simulate.
func TestWorkflow_BuildGapfillSimulate(t *testing.T) {
	s, _ := newTestServer(t)

	var draft services.ModelDetail
	callToolOK(t, s, "build_model", map[string]any{"proteins": proteinArgs(3), "model_name": "ecoli"}, &draft)
	require.Equal(t, "ecoli.draft", draft.ID)

	errResp := callToolErr(t, s, "run_fba", map[string]any{"model_id": draft.ID, "media_id": "empty"})
	assert.Equal(t, "infeasible", errResp.Code)
	assert.Contains(t, errResp.Suggestion, "gapfill")

	var gf services.GapfillResult
	callToolOK(t, s, "gapfill_model", map[string]any{"model_id": draft.ID, "media_id": "glucose_minimal"}, &gf)
	require.True(t, gf.TargetAchieved)

	var fba services.FBAResult
	callToolOK(t, s, "run_fba", map[string]any{
		"model_id":        gf.ModelID,
		"media_id":        "glucose_minimal",
		"reset_exchanges": true,
	}, &fba)
	assert.Equal(t, "optimal", fba.Status)
	assert.Greater(t, fba.ObjectiveValue, 0.0)

	var detail services.ModelDetail
	callToolOK(t, s, "get_model", map[string]any{"model_id": gf.ModelID}, &detail)
	assert.Equal(t, "gapfilled", detail.State)
	assert.Equal(t, 1, detail.GapfillPasses)
	assert.Equal(t, []string{"ecoli.draft"}, detail.Lineage)
	assert.True(t, detail.HasTestConditions)

	var list listModelsResult
	callToolOK(t, s, "list_models", map[string]any{"state": "gapfilled"}, &list)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, gf.ModelID, list.Models[0].ID)

	// Deleting the draft leaves the gapfilled model usable.
	callToolOK(t, s, "delete_model", map[string]any{"model_id": draft.ID}, nil)
	callToolOK(t, s, "run_fba", map[string]any{"model_id": gf.ModelID, "media_id": "glucose_minimal", "reset_exchanges": true}, &fba)
	assert.Greater(t, fba.ObjectiveValue, 0.0)
}

func TestWorkflow_CustomMedia(t *testing.T) {
	s, _ := newTestServer(t)

	var glucose services.MediaDetail
	callToolOK(t, s, "get_media", map[string]any{"media_id": "glucose_minimal"}, &glucose)

	compounds := make(map[string]any, len(glucose.Bounds))
	for id, b := range glucose.Bounds {
		compounds[id] = []any{b.Lower, b.Upper}
	}
	callToolOK(t, s, "build_media", map[string]any{"media_name": "my_glc", "compounds": compounds}, nil)

	callToolOK(t, s, "build_model", map[string]any{"proteins": proteinArgs(3), "model_name": "m"}, nil)

	var gf services.GapfillResult
	callToolOK(t, s, "gapfill_model", map[string]any{"model_id": "m.draft", "media_id": "my_glc"}, &gf)
	assert.True(t, gf.TargetAchieved)
	assert.Equal(t, "my_glc", gf.MediaID)
}
