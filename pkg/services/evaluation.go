package services

import (
	"context"
	"fmt"
	"math"

	"github.com/ekaya-inc/ekaya-gem/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-gem/pkg/compat"
	"github.com/ekaya-inc/ekaya-gem/pkg/models"
	"github.com/ekaya-inc/ekaya-gem/pkg/solver"
)

// evaluator maximizes an objective of a stored model on a medium.
type evaluator struct {
	engine    solver.Engine
	converter compat.MediaConverter
}

// maximize applies media to a copy of m with every exchange reset first and
// maximizes objective. relaxLower drops a positive lower bound on the
// objective itself (maintenance reactions). Infeasible problems yield zero.
func (e evaluator) maximize(ctx context.Context, m *models.Model, media *models.Media, objective string, relaxLower bool) (float64, solver.Status, error) {
	work := m.Copy()
	conv := e.converter.Convert(media, work)
	if err := compat.ApplyMedia(work, conv, compat.ApplyOptions{ResetExchanges: true}); err != nil {
		return 0, "", err
	}
	if relaxLower {
		lo, up, ok := work.Bounds(objective)
		if !ok {
			return 0, "", apperrors.Validation("objective %s is not a reaction of model %s", objective, m.ID)
		}
		if err := work.SetBounds(objective, math.Min(lo, 0), up); err != nil {
			return 0, "", err
		}
	}
	sol, err := e.engine.Optimize(ctx, work, objective, solver.Maximize)
	if err != nil {
		return 0, "", fmt.Errorf("failed to optimize %s: %w", objective, err)
	}
	if sol.Status != solver.StatusOptimal {
		return 0, sol.Status, nil
	}
	return sol.ObjectiveValue, sol.Status, nil
}

// ValidationSummary reports how a model fares against its test conditions.
type ValidationSummary struct {
	Conditions int      `json:"conditions"`
	Passed     int      `json:"passed"`
	Failed     []string `json:"failed"`
}

// validate checks every condition of tc against m.
func (e evaluator) validate(ctx context.Context, m *models.Model, tc *models.TestConditions, tol float64) (*ValidationSummary, error) {
	summary := &ValidationSummary{Conditions: tc.Len(), Failed: []string{}}
	if tc == nil {
		return summary, nil
	}
	for _, cond := range tc.Conditions {
		if !m.HasReaction(cond.Objective) {
			summary.Failed = append(summary.Failed, cond.ID)
			continue
		}
		v, status, err := e.maximize(ctx, m, cond.Media, cond.Objective, true)
		if err != nil {
			return nil, err
		}
		if status == solver.StatusUnbounded || v > cond.Threshold+tol {
			summary.Failed = append(summary.Failed, cond.ID)
			continue
		}
		summary.Passed++
	}
	return summary, nil
}
