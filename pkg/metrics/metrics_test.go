package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct{ models, media int }

func (f fakeStore) ModelCount() int { return f.models }
func (f fakeStore) MediaCount() int { return f.media }

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ObserveToolCall("run_fba", "success", 10*time.Millisecond)
	m.ObserveToolCall("run_fba", "success", 20*time.Millisecond)
	m.ObserveGapfill("full", "success")
	m.IncStage1Reused()
	m.AddReactions("growth", 3)
	m.AddReactions("growth", 0)
	m.ObserveFBA("infeasible")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.toolCalls.WithLabelValues("run_fba", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.gapfillRuns.WithLabelValues("full", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stage1Reused))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.reactionsAdded.WithLabelValues("growth")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fbaRuns.WithLabelValues("infeasible")))
}

func TestMetrics_NilReceiverIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveToolCall("health", "success", time.Millisecond)
		m.ObserveGapfill("full", "error")
		m.IncStage1Reused()
		m.ObserveFBA("optimal")
		m.TrackStore(fakeStore{})
		m.SetBreakerState("x", 1)
	})
}

func TestMetrics_HandlerExposesStoreGauges(t *testing.T) {
	m := New()
	m.TrackStore(fakeStore{models: 3, media: 6})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ekaya_gem_stored_models 3")
	assert.Contains(t, rec.Body.String(), "ekaya_gem_stored_media 6")
}
