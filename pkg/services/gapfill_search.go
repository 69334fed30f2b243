package services

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-gem/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-gem/pkg/compat"
	"github.com/ekaya-inc/ekaya-gem/pkg/models"
	"github.com/ekaya-inc/ekaya-gem/pkg/solver"
	"github.com/ekaya-inc/ekaya-gem/pkg/template"
)

const (
	// DefaultFluxTolerance separates carried flux from numerical noise.
	DefaultFluxTolerance = 1e-6

	forwardColumnPrefix = "gapfill_fwd_"
	reverseColumnPrefix = "gapfill_rev_"
	netColumnPrefix     = "gapfill_net_"
	virtualExchPrefix   = "gapfill_vex_"

	// unreachableTargetScale keeps the fallback target strictly inside the
	// feasible region so the penalty solve stays feasible.
	unreachableTargetScale = 1 - 1e-6
)

// Candidate is a template reaction selected for integration, in the model's
// id space (rxn05226_c0).
type Candidate struct {
	ID         string  `json:"id"`
	TemplateID string  `json:"template_id"`
	Direction  string  `json:"direction"`
	Penalty    float64 `json:"penalty"`
	Flux       float64 `json:"flux"`
}

// SearchRequest describes one minimum-penalty gapfilling problem.
type SearchRequest struct {
	Model     *models.Model
	Template  *template.Template
	Media     *models.Media
	Objective string
	Target    float64
	// Conditions exclude candidates that would let any condition's objective
	// exceed its threshold.
	Conditions []*models.TestCondition
}

// SearchResult is the outcome of a search.
type SearchResult struct {
	Candidates   []Candidate
	TotalPenalty float64
	Target       float64
	// Achieved is the objective flux the selection was sized for. It is
	// below Target when TargetAchieved is false.
	Achieved       float64
	TargetAchieved bool
	// Filtered lists template reactions removed by the test conditions.
	Filtered []string
}

// CandidateSearcher selects the template reactions to add to a model.
type CandidateSearcher interface {
	Search(ctx context.Context, req SearchRequest) (*SearchResult, error)
}

type lpCandidateSearcher struct {
	engine    solver.Engine
	converter compat.MediaConverter
	tol       float64
	logger    *zap.Logger
}

// NewCandidateSearcher creates a searcher that solves the minimum-penalty LP
// with engine.
func NewCandidateSearcher(engine solver.Engine, converter compat.MediaConverter, tol float64, logger *zap.Logger) CandidateSearcher {
	if tol <= 0 {
		tol = DefaultFluxTolerance
	}
	return &lpCandidateSearcher{
		engine:    engine,
		converter: converter,
		tol:       tol,
		logger:    logger.Named("gapfill-search"),
	}
}

var _ CandidateSearcher = (*lpCandidateSearcher)(nil)

// templateCandidate is a template reaction absent from the model.
type templateCandidate struct {
	reaction *template.Reaction
	id       string
	lower    float64
	upper    float64
	penalty  float64
}

// candidateColumn maps an LP column back to its candidate.
type candidateColumn struct {
	candidate *templateCandidate
	direction string
}

// extendedProblem is the steady-state LP of a model plus candidate columns
// and virtual exchanges.
type extendedProblem struct {
	lp      *solver.LinearProgram
	columns map[string]candidateColumn
}

func (s *lpCandidateSearcher) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	if !req.Model.HasReaction(req.Objective) {
		return nil, apperrors.Validation("objective %s is not a reaction of model %s", req.Objective, req.Model.ID)
	}

	all := s.candidatesFor(req.Model, req.Template)
	allowed, filtered, err := s.filter(ctx, req.Model, req.Template, all, req.Conditions)
	if err != nil {
		return nil, err
	}

	prob, err := s.buildProblem(req.Model, req.Template, req.Media, allowed, true)
	if err != nil {
		return nil, err
	}
	j, _ := prob.lp.VariableIndex(req.Objective)
	lower, upper := prob.lp.Variables[j].Lower, prob.lp.Variables[j].Upper

	result := &SearchResult{Target: req.Target, Achieved: req.Target, TargetAchieved: true, Filtered: filtered}

	penaltyLP := prob.lp.Clone()
	penaltyLP.SetBounds(j, math.Max(lower, req.Target), upper)
	sol, err := s.engine.SolveLP(ctx, penaltyLP)
	if err != nil {
		return nil, apperrors.Solver("gapfilling solve failed", err)
	}

	if sol.Status == solver.StatusInfeasible {
		best, err := s.maxObjective(ctx, prob.lp, j, req)
		if err != nil {
			return nil, err
		}
		result.Achieved = best * unreachableTargetScale
		result.TargetAchieved = false

		s.logger.Info("Target unreachable, gapfilling to maximum achievable flux",
			zap.String("model_id", req.Model.ID),
			zap.String("objective", req.Objective),
			zap.Float64("target", req.Target),
			zap.Float64("achievable", best))

		penaltyLP = prob.lp.Clone()
		penaltyLP.SetBounds(j, math.Max(lower, result.Achieved), upper)
		if sol, err = s.engine.SolveLP(ctx, penaltyLP); err != nil {
			return nil, apperrors.Solver("gapfilling solve failed", err)
		}
	}
	if sol.Status != solver.StatusOptimal {
		return nil, apperrors.Solver(fmt.Sprintf("gapfilling problem ended %s", sol.Status), nil)
	}

	result.Candidates = s.selected(prob, sol)
	for _, c := range result.Candidates {
		result.TotalPenalty += c.Penalty * math.Abs(c.Flux)
	}

	s.logger.Debug("Gapfilling search finished",
		zap.String("model_id", req.Model.ID),
		zap.Int("candidates", len(all)),
		zap.Int("filtered", len(filtered)),
		zap.Int("selected", len(result.Candidates)),
		zap.Float64("penalty", result.TotalPenalty))
	return result, nil
}

// maxObjective maximizes the objective over the model and every allowed
// candidate. Zero flux is an infeasible gapfill.
func (s *lpCandidateSearcher) maxObjective(ctx context.Context, lp *solver.LinearProgram, j int, req SearchRequest) (float64, error) {
	maxLP := lp.Clone()
	maxLP.ClearCosts()
	maxLP.SetCost(j, -1)
	sol, err := s.engine.SolveLP(ctx, maxLP)
	if err != nil {
		return 0, apperrors.Solver("gapfilling solve failed", err)
	}
	switch sol.Status {
	case solver.StatusUnbounded:
		return 0, apperrors.Unbounded(fmt.Sprintf("objective %s of model %s is unbounded on media %s",
			req.Objective, req.Model.ID, req.Media.ID))
	case solver.StatusOptimal:
		if v := sol.Value(req.Objective); v > s.tol {
			return v, nil
		}
	}
	return 0, apperrors.Infeasible(fmt.Sprintf(
		"objective %s of model %s cannot carry flux on media %s, even with every allowed template reaction",
		req.Objective, req.Model.ID, req.Media.ID))
}

// selected returns the candidates whose columns carry flux, sorted by id.
func (s *lpCandidateSearcher) selected(prob *extendedProblem, sol *solver.LPSolution) []Candidate {
	byID := make(map[string]Candidate)
	for col, cc := range prob.columns {
		v := sol.Value(col)
		if v <= s.tol {
			continue
		}
		if prev, ok := byID[cc.candidate.id]; ok && math.Abs(prev.Flux) >= v {
			continue
		}
		flux := v
		if cc.direction == "<" {
			flux = -v
		}
		byID[cc.candidate.id] = Candidate{
			ID:         cc.candidate.id,
			TemplateID: cc.candidate.reaction.ID,
			Direction:  cc.direction,
			Penalty:    cc.candidate.penalty,
			Flux:       flux,
		}
	}
	out := make([]Candidate, 0, len(byID))
	for _, id := range sortedKeys(byID) {
		out = append(out, byID[id])
	}
	return out
}

// candidatesFor lists the template reactions not yet in m, in template order.
func (s *lpCandidateSearcher) candidatesFor(m *models.Model, tmpl *template.Template) []*templateCandidate {
	var out []*templateCandidate
	for _, r := range tmpl.Reactions {
		id := compat.ToModelID(r.ID, s.converter.CompartmentIndex)
		if m.HasReaction(id) {
			continue
		}
		lo, up := template.DirectionBounds(r.Direction)
		penalty := r.Penalty
		if penalty <= 0 {
			penalty = template.DefaultPenalty
		}
		out = append(out, &templateCandidate{reaction: r, id: id, lower: lo, upper: up, penalty: penalty})
	}
	return out
}

// filter drops candidates until no test condition exceeds its threshold with
// the model plus all remaining candidates. Each round removes the candidate
// carrying the most flux in the violating solution. Removing reactions can
// only lower a maximum, so conditions that passed stay passed.
func (s *lpCandidateSearcher) filter(ctx context.Context, m *models.Model, tmpl *template.Template,
	candidates []*templateCandidate, conditions []*models.TestCondition) ([]*templateCandidate, []string, error) {
	allowed := candidates
	var filtered []string

	for _, cond := range conditions {
		if !m.HasReaction(cond.Objective) {
			s.logger.Warn("Skipping test condition with unknown objective",
				zap.String("condition", cond.ID),
				zap.String("objective", cond.Objective))
			continue
		}
		for len(allowed) > 0 {
			prob, err := s.buildProblem(m, tmpl, cond.Media, allowed, false)
			if err != nil {
				return nil, nil, err
			}
			j, _ := prob.lp.VariableIndex(cond.Objective)
			v := prob.lp.Variables[j]
			prob.lp.SetBounds(j, math.Min(v.Lower, 0), v.Upper)
			prob.lp.ClearCosts()
			prob.lp.SetCost(j, -1)

			sol, err := s.engine.SolveLP(ctx, prob.lp)
			if err != nil {
				return nil, nil, apperrors.Solver("test condition solve failed", err)
			}
			if sol.Status != solver.StatusOptimal || sol.Value(cond.Objective) <= cond.Threshold+s.tol {
				break
			}

			worst, worstFlux := "", s.tol
			for _, col := range sortedKeys(prob.columns) {
				if f := math.Abs(sol.Value(col)); f > worstFlux {
					worst, worstFlux = prob.columns[col].candidate.id, f
				}
			}
			if worst == "" {
				// The model alone exceeds the threshold; no candidate is to blame.
				break
			}
			allowed = withoutCandidate(allowed, worst)
			filtered = append(filtered, worst)

			s.logger.Debug("Candidate excluded by test condition",
				zap.String("candidate", worst),
				zap.String("condition", cond.ID),
				zap.Float64("observed", sol.Value(cond.Objective)),
				zap.Float64("threshold", cond.Threshold))
		}
	}
	sort.Strings(filtered)
	return allowed, filtered, nil
}

func withoutCandidate(candidates []*templateCandidate, id string) []*templateCandidate {
	out := make([]*templateCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.id != id {
			out = append(out, c)
		}
	}
	return out
}

// buildProblem applies media to a copy of m (exchanges reset) and extends its
// program with the candidates and a zero-cost virtual exchange for every
// extracellular metabolite a candidate introduces. Integration creates exactly
// those exchanges, so metabolites already in m never get one here. Virtual
// exchanges take their uptake from the same media. With split, each candidate direction is a separate
// non-negative column costed by penalty; otherwise a candidate is a single
// free-signed column without cost, which keeps forward/reverse pairs from
// forming zero-net loops when costs are cleared.
func (s *lpCandidateSearcher) buildProblem(m *models.Model, tmpl *template.Template, media *models.Media,
	candidates []*templateCandidate, split bool) (*extendedProblem, error) {
	work := m.Copy()
	conv := s.converter.Convert(media, work)
	if err := compat.ApplyMedia(work, conv, compat.ApplyOptions{ResetExchanges: true}); err != nil {
		return nil, err
	}
	lp, err := solver.FromNetwork(work)
	if err != nil {
		return nil, err
	}
	prob := &extendedProblem{lp: lp, columns: make(map[string]candidateColumn)}

	idx := s.converter.CompartmentIndex
	needsExchange := make(map[string]bool)

	for _, c := range candidates {
		cpds := sortedKeys(c.reaction.Stoichiometry)
		addColumn := func(prefix, direction string, lower, upper, cost, sign float64) error {
			j, err := lp.AddVariable(solver.Variable{ID: prefix + c.id, Lower: lower, Upper: upper, Cost: cost})
			if err != nil {
				return err
			}
			for _, cpd := range cpds {
				lp.AddCoefficient(compat.ToModelID(cpd, idx), j, sign*c.reaction.Stoichiometry[cpd])
			}
			prob.columns[prefix+c.id] = candidateColumn{candidate: c, direction: direction}
			return nil
		}
		if !split {
			if err := addColumn(netColumnPrefix, "", c.lower, c.upper, 0, 1); err != nil {
				return nil, err
			}
		} else {
			if c.upper > 0 {
				if err := addColumn(forwardColumnPrefix, ">", 0, c.upper, c.penalty, 1); err != nil {
					return nil, err
				}
			}
			if c.lower < 0 {
				if err := addColumn(reverseColumnPrefix, "<", 0, -c.lower, c.penalty, -1); err != nil {
					return nil, err
				}
			}
		}
		for _, cpd := range cpds {
			comp, ok := tmpl.GetCompound(cpd)
			if !ok || !template.IsExtracellular(comp.Compartment) {
				continue
			}
			metID := compat.ToModelID(cpd, idx)
			if _, ok := work.Metabolite(metID); !ok {
				needsExchange[metID] = true
			}
		}
	}

	for _, metID := range sortedKeys(needsExchange) {
		j, err := lp.AddVariable(solver.Variable{
			ID:    virtualExchPrefix + metID,
			Lower: -s.mediaUptake(media, metID),
			Upper: models.DefaultFluxBound,
		})
		if err != nil {
			return nil, err
		}
		lp.AddCoefficient(metID, j, -1)
	}
	return prob, nil
}

// mediaUptake is the converted uptake media allows for an extracellular
// metabolite, zero when the medium does not list its compound.
func (s *lpCandidateSearcher) mediaUptake(media *models.Media, metID string) float64 {
	return mediaUptake(s.converter, media, metID)
}

func mediaUptake(conv compat.MediaConverter, media *models.Media, metID string) float64 {
	target := compat.NormalizeCompound(metID)
	for _, cpd := range media.CompoundIDs() {
		if compat.NormalizeCompound(cpd) == target {
			return conv.Uptake(media.Bounds[cpd].Lower)
		}
	}
	return 0
}
