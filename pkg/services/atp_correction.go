package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-gem/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-gem/pkg/compat"
	"github.com/ekaya-inc/ekaya-gem/pkg/models"
	"github.com/ekaya-inc/ekaya-gem/pkg/solver"
	"github.com/ekaya-inc/ekaya-gem/pkg/template"
)

const (
	DefaultATPMultiplier  = 1.2
	DefaultATPMinFraction = 0.1
)

// EnergyCorrectionRequest asks for energy correction of a working model.
type EnergyCorrectionRequest struct {
	// Model is corrected in place.
	Model    *models.Model
	Template *template.Template
}

// EnergyCorrection is the outcome of stage 1.
type EnergyCorrection struct {
	TestConditions *models.TestConditions
	CoreCondition  string
	CoreExpected   float64
	CoreBefore     float64
	CoreAfter      float64
	// Corrected is true when ATP production had to be gapfilled.
	Corrected bool
	Added     []AddedReaction
	Exchanges []AddedReaction
	Filtered  []string
	Warnings  []IntegrationWarning
}

// EnergyCorrector runs stage 1: it evaluates the ATP test panel, repairs
// ATP production on the core condition when it falls short, and derives the
// test conditions that later gapfilling must respect.
type EnergyCorrector interface {
	Correct(ctx context.Context, req EnergyCorrectionRequest) (*EnergyCorrection, error)
}

type atpCorrector struct {
	eval        evaluator
	searcher    CandidateSearcher
	integrator  *Integrator
	multiplier  float64
	minFraction float64
	logger      *zap.Logger
}

// NewEnergyCorrector creates the panel-based corrector. Non-positive
// multiplier or minFraction select the defaults.
func NewEnergyCorrector(engine solver.Engine, converter compat.MediaConverter, searcher CandidateSearcher,
	integrator *Integrator, multiplier, minFraction float64, logger *zap.Logger) EnergyCorrector {
	if multiplier <= 0 {
		multiplier = DefaultATPMultiplier
	}
	if minFraction <= 0 {
		minFraction = DefaultATPMinFraction
	}
	return &atpCorrector{
		eval:        evaluator{engine: engine, converter: converter},
		searcher:    searcher,
		integrator:  integrator,
		multiplier:  multiplier,
		minFraction: minFraction,
		logger:      logger.Named("energy-correction"),
	}
}

var _ EnergyCorrector = (*atpCorrector)(nil)

func (c *atpCorrector) Correct(ctx context.Context, req EnergyCorrectionRequest) (*EnergyCorrection, error) {
	panel := req.Template.ATPPanel
	if panel == nil {
		return nil, apperrors.Usage(
			fmt.Sprintf("template %s defines no ATP test panel", req.Template.Name),
			"use a template with an atp_panel for energy correction")
	}
	objective := compat.ToModelID(panel.Objective, c.eval.converter.CompartmentIndex)
	if !req.Model.HasReaction(objective) {
		return nil, apperrors.Validation("model %s has no ATP maintenance reaction %s", req.Model.ID, objective)
	}

	conditions := panel.Conditions()
	var core *template.PanelCondition
	for _, pc := range conditions {
		if pc.Core {
			core = pc
		}
	}

	observed, err := c.evaluatePanel(ctx, req.Model, conditions, objective)
	if err != nil {
		return nil, err
	}
	tc := c.testConditions(req.Model, req.Template, conditions, objective, observed)

	out := &EnergyCorrection{
		CoreCondition: core.ID,
		CoreExpected:  core.Expected,
		CoreBefore:    observedFor(tc, core.ID),
		Filtered:      []string{},
	}
	out.CoreAfter = out.CoreBefore

	target := c.minFraction * core.Expected
	if out.CoreBefore < target {
		c.logger.Info("Core ATP production below minimum, gapfilling ATP",
			zap.String("model_id", req.Model.ID),
			zap.String("condition", core.ID),
			zap.Float64("observed", out.CoreBefore),
			zap.Float64("target", target))

		found, err := c.searcher.Search(ctx, SearchRequest{
			Model:      req.Model,
			Template:   req.Template,
			Media:      core.Media,
			Objective:  objective,
			Target:     target,
			Conditions: tc.Conditions,
		})
		if err != nil {
			return nil, fmt.Errorf("energy correction: %w", err)
		}
		integrated, err := c.integrator.Integrate(req.Model, req.Template, found.Candidates, core.Media, StageATPCorrection)
		if err != nil {
			return nil, fmt.Errorf("energy correction: %w", err)
		}
		out.Corrected = true
		out.Added = integrated.Added
		out.Exchanges = integrated.Exchanges
		out.Warnings = integrated.Warnings
		out.Filtered = found.Filtered

		if observed, err = c.evaluatePanel(ctx, req.Model, conditions, objective); err != nil {
			return nil, err
		}
		tc = c.testConditions(req.Model, req.Template, conditions, objective, observed)
		out.CoreAfter = observedFor(tc, core.ID)
	}

	out.TestConditions = tc
	return out, nil
}

func (c *atpCorrector) evaluatePanel(ctx context.Context, m *models.Model, conditions []*template.PanelCondition, objective string) ([]float64, error) {
	observed := make([]float64, len(conditions))
	for i, pc := range conditions {
		v, status, err := c.eval.maximize(ctx, m, pc.Media, objective, true)
		if err != nil {
			return nil, err
		}
		if status == solver.StatusUnbounded {
			return nil, apperrors.Unbounded(fmt.Sprintf("ATP production of model %s is unbounded on %s", m.ID, pc.ID))
		}
		observed[i] = v
	}
	return observed, nil
}

// testConditions builds the artifact. Threshold = max(observed, expected) * multiplier.
func (c *atpCorrector) testConditions(m *models.Model, tmpl *template.Template, conditions []*template.PanelCondition,
	objective string, observed []float64) *models.TestConditions {
	tc := &models.TestConditions{
		ModelID:    m.ID,
		Template:   tmpl.Name,
		Conditions: make([]*models.TestCondition, len(conditions)),
		CreatedAt:  time.Now().UTC(),
	}
	for i, pc := range conditions {
		tc.Conditions[i] = &models.TestCondition{
			ID:        pc.ID,
			Media:     pc.Media,
			Objective: objective,
			Threshold: math.Max(observed[i], pc.Expected) * c.multiplier,
			Observed:  observed[i],
			Expected:  pc.Expected,
		}
	}
	return tc
}

func observedFor(tc *models.TestConditions, id string) float64 {
	for _, cond := range tc.Conditions {
		if cond.ID == id {
			return cond.Observed
		}
	}
	return 0
}
