package modelid

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-gem/pkg/apperrors"
)

func TestGenerate_UserName(t *testing.T) {
	id, err := Generate("ecoli_k12")
	require.NoError(t, err)
	assert.Equal(t, "ecoli_k12.draft", id)
	assert.Equal(t, StateDraft, Classify(id))
}

func TestGenerate_RejectsInvalidNames(t *testing.T) {
	for _, name := range []string{"model.draft", "has space", "-leading", strings.Repeat("a", 129)} {
		_, err := Generate(name)
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, apperrors.ErrValidation), name)
	}
}

func TestGenerate_AutoTokens(t *testing.T) {
	original := now
	now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }
	t.Cleanup(func() { now = original })

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		id, err := Generate("")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(id, "model_20260304050607_"), id)
		assert.True(t, strings.HasSuffix(id, DraftSuffix), id)
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestAdvance_IsDeterministicAndGapfilled(t *testing.T) {
	for _, id := range []string{"model.draft", "model.draft.gf", "x", ""} {
		next := Advance(id)
		assert.Equal(t, next, Advance(id))
		assert.Equal(t, StateGapfilled, Classify(next))
		assert.Equal(t, GapfillPasses(id)+1, GapfillPasses(next))
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		id   string
		want State
	}{
		{"model.draft", StateDraft},
		{"model.draft.gf", StateGapfilled},
		{"model.draft.gf.gf", StateGapfilled},
		{"model.gfx", StateDraft},
		{"imported", StateDraft},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.id), tt.id)
	}
}

func TestParseStateAndMatches(t *testing.T) {
	all, err := ParseState("ALL")
	require.NoError(t, err)
	assert.True(t, Matches("a.draft", all))
	assert.True(t, Matches("a.draft.gf", all))

	gf, err := ParseState("gapfilled")
	require.NoError(t, err)
	assert.False(t, Matches("a.draft", gf))
	assert.True(t, Matches("a.draft.gf", gf))

	_, err = ParseState("finished")
	assert.Error(t, err)
}

func TestTestConditionsKey(t *testing.T) {
	assert.Equal(t, "m.draft.gf.test_conditions", TestConditionsKey("m.draft.gf"))
}
