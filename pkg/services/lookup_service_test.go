package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-gem/pkg/apperrors"
)

func TestLookup_Compound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, id := range []string{"cpd00027", "cpd00027_e0", "EX_cpd00027_e0", " cpd00027 "} {
		c, err := env.lookup.Compound(ctx, id)
		require.NoError(t, err, id)
		assert.Equal(t, "D-Glucose", c.Name, id)
	}

	_, err := env.lookup.Compound(ctx, "cpd99999")
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindNotFound, appErr.Kind)
	assert.Contains(t, appErr.Details["hint"], "search_compounds")

	_, err = env.lookup.Compound(ctx, "")
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestLookup_Reaction(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	r, err := env.lookup.Reaction(ctx, "rxn05226_c0")
	require.NoError(t, err)
	assert.Equal(t, "D-glucose transport via PEP:Pyr PTS", r.Name)

	_, err = env.lookup.Reaction(ctx, "rxn00000")
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestLookup_SearchCompounds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.lookup.SearchCompounds(ctx, "glucose", 0)
	require.NoError(t, err)
	assert.Equal(t, "glucose", res.Query)
	assert.Equal(t, len(res.Results), res.Count)

	ids := make([]string, len(res.Results))
	for i, c := range res.Results {
		ids[i] = c.ID
	}
	assert.Contains(t, ids, "cpd00027")
	assert.Contains(t, ids, "cpd00079")

	res, err = env.lookup.SearchCompounds(ctx, "glucose", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)

	res, err = env.lookup.SearchCompounds(ctx, "unobtainium", 0)
	require.NoError(t, err)
	assert.Zero(t, res.Count)
	assert.NotNil(t, res.Results)

	_, err = env.lookup.SearchCompounds(ctx, "  ", 0)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	_, err = env.lookup.SearchCompounds(ctx, "glucose", -1)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestLookup_SearchReactionsByECNumber(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.lookup.SearchReactions(context.Background(), "1.1.1.27", 0)
	require.NoError(t, err)
	require.Equal(t, 1, res.Count)
	assert.Equal(t, "rxn00499", res.Results[0].ID)
}

func TestSearchArgs_ClampsLimit(t *testing.T) {
	_, limit, err := searchArgs("x", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultSearchLimit, limit)

	_, limit, err = searchArgs("x", 10_000)
	require.NoError(t, err)
	assert.Equal(t, MaxSearchLimit, limit)
}

func TestLookup_Templates(t *testing.T) {
	env := newTestEnv(t)

	list, err := env.lookup.Templates(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)

	core := list[0]
	assert.Equal(t, "core", core.Name)
	assert.Equal(t, 6, core.Universal)
	assert.Equal(t, 12, core.Candidates)
	assert.Equal(t, "bio1", core.Biomass)
	assert.Equal(t, 50, core.ATPConditions)
}
