package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotFound_SortsAvailableAndMatchesSentinel(t *testing.T) {
	err := NotFound("model", "x.draft", []string{"b.draft", "a.draft"})

	assert.Equal(t, KindNotFound, err.Kind)
	assert.Equal(t, []string{"a.draft", "b.draft"}, err.Available)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), `"x.draft"`)
}

func TestAs_UnwrapsWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("gapfill: %w", Infeasible("no growth"))

	appErr, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindInfeasible, appErr.Kind)
	assert.NotEmpty(t, appErr.Suggestion)
	assert.Equal(t, KindInfeasible, KindOf(wrapped))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestInfeasibleAndUnbounded_HaveDistinctSuggestions(t *testing.T) {
	inf := Infeasible("a")
	unb := Unbounded("b")

	assert.NotEqual(t, inf.Kind, unb.Kind)
	assert.NotEqual(t, inf.Suggestion, unb.Suggestion)
	assert.Contains(t, inf.Suggestion, "gapfill")
	assert.Contains(t, unb.Suggestion, "exchange bounds")
}

func TestConflict_Retryable(t *testing.T) {
	assert.True(t, Conflict("taken", true).IsRetryable())
	assert.False(t, Conflict("taken", false).IsRetryable())
	assert.True(t, errors.Is(Conflict("taken", false), ErrConflict))
}

func TestSolver_WrapsCause(t *testing.T) {
	cause := errors.New("singular basis")
	err := Solver("solve failed", cause)

	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "solve failed: singular basis", err.Error())
}

func TestWithDetail(t *testing.T) {
	err := Validation("bad %s", "input").WithDetail("field", "target_growth_rate")

	assert.Equal(t, "bad input", err.Message)
	assert.Equal(t, "target_growth_rate", err.Details["field"])
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestWithSuggestion(t *testing.T) {
	err := Validation("objective %q is not a reaction", "bio2").WithSuggestion("use bio1")

	assert.Equal(t, "use bio1", err.Suggestion)
	assert.Empty(t, err.Details)
	assert.Equal(t, KindValidation, err.Kind)
}
