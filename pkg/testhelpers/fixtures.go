// Package testhelpers provides fixtures for testing ekaya-gem components.
package testhelpers

import (
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-gem/pkg/models"
	"github.com/ekaya-inc/ekaya-gem/pkg/template"
)

var (
	sharedRegistry     *template.Registry
	sharedRegistryOnce sync.Once
	sharedRegistryErr  error
)

// Registry returns the embedded template registry. It is built once and
// shared across all tests in the run; templates are read-only.
func Registry(t *testing.T) *template.Registry {
	t.Helper()

	sharedRegistryOnce.Do(func() {
		sharedRegistry, sharedRegistryErr = template.NewRegistry("", zap.NewNop())
	})

	if sharedRegistryErr != nil {
		t.Fatalf("Failed to load templates: %v", sharedRegistryErr)
	}
	return sharedRegistry
}

// Proteins returns n small protein sequences keyed gene_001..gene_n.
func Proteins(n int) map[string]string {
	out := make(map[string]string, n)
	for i := 1; i <= n; i++ {
		out[fmt.Sprintf("gene_%03d", i)] = "MSTNPKPQRKTKRNTNRRPQDVKFPGG"
	}
	return out
}

// Media builds a user medium from compound -> {lower, upper} pairs.
func Media(id string, bounds map[string][2]float64) *models.Media {
	m := &models.Media{ID: id, Name: id, Bounds: make(map[string]models.Bound, len(bounds)), CreatedAt: time.Now().UTC()}
	for cpd, b := range bounds {
		m.Bounds[cpd] = models.Bound{Lower: b[0], Upper: b[1]}
	}
	return m
}

// GlucoseChainModel is a five-reaction linear pathway: glucose uptake,
// glucose transport, biomass (glucose -> CO2) and CO2 export. The growth rate
// equals the glucose uptake allowed by the medium.
func GlucoseChainModel(t *testing.T, id string) *models.Model {
	t.Helper()
	m := models.NewModel(id, "bio1")
	m.Template = "core"
	for _, met := range []*models.Metabolite{
		{ID: "cpd00027_e0", Name: "D-Glucose", Compartment: "e0"},
		{ID: "cpd00027_c0", Name: "D-Glucose", Compartment: "c0"},
		{ID: "cpd00011_c0", Name: "CO2", Compartment: "c0"},
		{ID: "cpd00011_e0", Name: "CO2", Compartment: "e0"},
	} {
		m.AddMetabolite(met)
	}
	addReactions(t, m, []*models.Reaction{
		{ID: "EX_cpd00027_e0", Metabolites: map[string]float64{"cpd00027_e0": -1}, LowerBound: 0, UpperBound: 1000},
		{ID: "GLCt_c0", Name: "glucose transport", Metabolites: map[string]float64{"cpd00027_e0": -1, "cpd00027_c0": 1}, UpperBound: 1000},
		{ID: "bio1", Name: "Biomass", Metabolites: map[string]float64{"cpd00027_c0": -1, "cpd00011_c0": 1}, UpperBound: 1000},
		{ID: "CO2t_c0", Name: "CO2 transport", Metabolites: map[string]float64{"cpd00011_c0": -1, "cpd00011_e0": 1}, UpperBound: 1000},
		{ID: "EX_cpd00011_e0", Metabolites: map[string]float64{"cpd00011_e0": -1}, LowerBound: 0, UpperBound: 1000},
	})
	return m
}

// UnboundedModel is a model whose exchange, transport and biomass reactions
// all carry infinite bounds, so maximizing growth has no optimum.
func UnboundedModel(t *testing.T, id string) *models.Model {
	t.Helper()
	inf := math.Inf(1)
	m := models.NewModel(id, "bio1")
	m.AddMetabolite(&models.Metabolite{ID: "cpd00027_e0", Compartment: "e0"})
	m.AddMetabolite(&models.Metabolite{ID: "cpd00027_c0", Compartment: "c0"})
	addReactions(t, m, []*models.Reaction{
		{ID: "EX_cpd00027_e0", Metabolites: map[string]float64{"cpd00027_e0": -1}, LowerBound: -inf, UpperBound: inf},
		{ID: "GLCt_c0", Metabolites: map[string]float64{"cpd00027_e0": -1, "cpd00027_c0": 1}, LowerBound: -inf, UpperBound: inf},
		{ID: "bio1", Metabolites: map[string]float64{"cpd00027_c0": -1}, UpperBound: inf},
	})
	return m
}

func addReactions(t *testing.T, m *models.Model, reactions []*models.Reaction) {
	t.Helper()
	for _, r := range reactions {
		if err := m.AddReaction(r); err != nil {
			t.Fatalf("Failed to add reaction %s: %v", r.ID, err)
		}
	}
}
