package services

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-gem/pkg/biochem"
	"github.com/ekaya-inc/ekaya-gem/pkg/compat"
	"github.com/ekaya-inc/ekaya-gem/pkg/metrics"
	"github.com/ekaya-inc/ekaya-gem/pkg/reconstruction"
	"github.com/ekaya-inc/ekaya-gem/pkg/session"
	"github.com/ekaya-inc/ekaya-gem/pkg/solver"
	"github.com/ekaya-inc/ekaya-gem/pkg/template"
	"github.com/ekaya-inc/ekaya-gem/pkg/testhelpers"
)

// testEnv wires the real services against a fresh session store.
type testEnv struct {
	store      session.Store
	registry   *template.Registry
	engine     solver.Engine
	converter  compat.MediaConverter
	metrics    *metrics.Metrics
	corrector  *countingCorrector
	searcher   CandidateSearcher
	integrator *Integrator

	models  ModelService
	media   MediaService
	gapfill GapfillService
	fba     FBAService
	lookup  LookupService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()

	env := &testEnv{
		store:     session.NewStore(),
		registry:  testhelpers.Registry(t),
		engine:    solver.NewSimplexEngine(0, logger),
		converter: compat.NewMediaConverter(),
		metrics:   metrics.New(),
	}
	env.searcher = NewCandidateSearcher(env.engine, env.converter, DefaultFluxTolerance, logger)
	env.integrator = NewIntegrator(env.converter, logger)
	env.corrector = &countingCorrector{
		next: NewEnergyCorrector(env.engine, env.converter, env.searcher, env.integrator, 0, 0, logger),
	}

	db, err := biochem.Load()
	require.NoError(t, err)

	env.media = NewMediaService(env.store, logger)
	_, err = env.media.LoadPredefined()
	require.NoError(t, err)

	env.models = NewModelService(env.store, reconstruction.NewTemplateEngine(env.registry, 0, logger), "core", logger)
	env.gapfill = NewGapfillService(GapfillDeps{
		Store:      env.store,
		Templates:  env.registry,
		Engine:     env.engine,
		Converter:  env.converter,
		Corrector:  env.corrector,
		Searcher:   env.searcher,
		Integrator: env.integrator,
		Metrics:    env.metrics,
		Config:     GapfillConfig{DefaultTemplate: "core"},
		Logger:     logger,
	})
	env.fba = NewFBAService(env.store, env.engine, env.converter, db, DefaultFluxThreshold, env.metrics, logger)
	env.lookup = NewLookupService(db, env.registry, logger)
	return env
}

// buildDraft reconstructs a named draft from the core template.
func (env *testEnv) buildDraft(t *testing.T, name string) string {
	t.Helper()
	detail, err := env.models.Build(context.Background(), BuildModelRequest{
		Proteins:  testhelpers.Proteins(3),
		Template:  "core",
		ModelName: name,
	})
	require.NoError(t, err)
	return detail.ID
}

// countingCorrector counts how often energy correction actually runs.
type countingCorrector struct {
	next  EnergyCorrector
	calls atomic.Int32
}

func (c *countingCorrector) Correct(ctx context.Context, req EnergyCorrectionRequest) (*EnergyCorrection, error) {
	c.calls.Add(1)
	return c.next.Correct(ctx, req)
}
