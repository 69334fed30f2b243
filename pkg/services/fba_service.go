package services

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-gem/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-gem/pkg/biochem"
	"github.com/ekaya-inc/ekaya-gem/pkg/compat"
	"github.com/ekaya-inc/ekaya-gem/pkg/metrics"
	"github.com/ekaya-inc/ekaya-gem/pkg/models"
	"github.com/ekaya-inc/ekaya-gem/pkg/session"
	"github.com/ekaya-inc/ekaya-gem/pkg/solver"
)

// DefaultFluxThreshold hides fluxes at or below this magnitude in results.
const DefaultFluxThreshold = 1e-6

// FBARequest runs flux balance analysis.
type FBARequest struct {
	ModelID   string
	MediaID   string
	Objective string
	// Minimize flips the default maximization.
	Minimize       bool
	FluxThreshold  float64
	ResetExchanges bool
}

// Flux is one reported reaction flux.
type Flux struct {
	ReactionID string  `json:"reaction_id"`
	Name       string  `json:"name,omitempty"`
	Flux       float64 `json:"flux"`
}

// FBAResult is an optimal flux distribution, partitioned so that every
// reported flux appears in exactly one of the three lists.
type FBAResult struct {
	ModelID            string   `json:"model_id"`
	MediaID            string   `json:"media_id"`
	Objective          string   `json:"objective"`
	Direction          string   `json:"direction"`
	Status             string   `json:"status"`
	ObjectiveValue     float64  `json:"objective_value"`
	FluxThreshold      float64  `json:"flux_threshold"`
	Uptake             []Flux   `json:"uptake_fluxes"`
	Secretion          []Flux   `json:"secretion_fluxes"`
	Internal           []Flux   `json:"internal_fluxes"`
	MatchedCompounds   int      `json:"matched_media_compounds"`
	UnmatchedCompounds []string `json:"unmatched_media_compounds"`
	Summary            string   `json:"summary"`
}

// FBAService runs flux balance analysis on stored models.
type FBAService interface {
	Run(ctx context.Context, req FBARequest) (*FBAResult, error)
}

type fbaService struct {
	store            session.Store
	engine           solver.Engine
	converter        compat.MediaConverter
	db               biochem.DB
	defaultThreshold float64
	metrics          *metrics.Metrics
	logger           *zap.Logger
}

// NewFBAService creates the FBA service. db may be nil, in which case fluxes
// are reported without names.
func NewFBAService(store session.Store, engine solver.Engine, converter compat.MediaConverter, db biochem.DB,
	defaultThreshold float64, m *metrics.Metrics, logger *zap.Logger) FBAService {
	if defaultThreshold <= 0 {
		defaultThreshold = DefaultFluxThreshold
	}
	return &fbaService{
		store:            store,
		engine:           engine,
		converter:        converter,
		db:               db,
		defaultThreshold: defaultThreshold,
		metrics:          m,
		logger:           logger.Named("fba"),
	}
}

var _ FBAService = (*fbaService)(nil)

func (s *fbaService) Run(ctx context.Context, req FBARequest) (*FBAResult, error) {
	m, err := requireModel(s.store, req.ModelID)
	if err != nil {
		return nil, err
	}
	media, err := requireMedia(s.store, req.MediaID)
	if err != nil {
		return nil, err
	}
	threshold := req.FluxThreshold
	if threshold == 0 {
		threshold = s.defaultThreshold
	}
	if threshold < 0 || math.IsNaN(threshold) || math.IsInf(threshold, 0) {
		return nil, apperrors.Validation("flux_threshold must be a non-negative number, got %g", req.FluxThreshold)
	}

	work := m.Copy()
	conv := s.converter.Convert(media, work)
	if err := compat.ApplyMedia(work, conv, compat.ApplyOptions{ResetExchanges: req.ResetExchanges}); err != nil {
		return nil, err
	}

	objective := req.Objective
	if objective == "" {
		objective = m.Objective
	}
	if !work.HasReaction(objective) {
		return nil, apperrors.Validation("objective %q is not a reaction of model %s", objective, m.ID).
			WithSuggestion(fmt.Sprintf("use the model objective %q (usually bio1)", m.Objective))
	}
	direction := solver.Maximize
	if req.Minimize {
		direction = solver.Minimize
	}

	sol, err := s.engine.Optimize(ctx, work, objective, direction)
	if err != nil {
		return nil, apperrors.Solver("flux balance analysis failed", err)
	}
	s.metrics.ObserveFBA(string(sol.Status))

	switch sol.Status {
	case solver.StatusInfeasible:
		return nil, apperrors.Infeasible(fmt.Sprintf(
			"model %s cannot satisfy its constraints on media %s", m.ID, media.ID)).
			WithDetail("unmatched_media_compounds", nonNil(conv.Unmatched))
	case solver.StatusUnbounded:
		return nil, apperrors.Unbounded(fmt.Sprintf(
			"objective %s of model %s is unbounded on media %s", objective, m.ID, media.ID))
	}

	result := &FBAResult{
		ModelID:            m.ID,
		MediaID:            media.ID,
		Objective:          objective,
		Direction:          string(direction),
		Status:             string(sol.Status),
		ObjectiveValue:     sol.ObjectiveValue,
		FluxThreshold:      threshold,
		Uptake:             []Flux{},
		Secretion:          []Flux{},
		Internal:           []Flux{},
		MatchedCompounds:   len(conv.Matched),
		UnmatchedCompounds: nonNil(conv.Unmatched),
	}
	for _, id := range work.ReactionIDs() {
		v := sol.Fluxes[id]
		if math.Abs(v) <= threshold {
			continue
		}
		r, _ := work.Reaction(id)
		f := Flux{ReactionID: id, Name: s.name(r), Flux: v}
		switch {
		case !work.IsExchange(r):
			result.Internal = append(result.Internal, f)
		case v < 0:
			result.Uptake = append(result.Uptake, f)
		default:
			result.Secretion = append(result.Secretion, f)
		}
	}
	for _, list := range [][]Flux{result.Uptake, result.Secretion, result.Internal} {
		sortFluxes(list)
	}
	result.Summary = fmt.Sprintf("%s %s = %.6g on %s: %d uptake, %d secretion and %d internal fluxes above %g",
		direction, objective, sol.ObjectiveValue, media.ID,
		len(result.Uptake), len(result.Secretion), len(result.Internal), threshold)

	s.logger.Debug("FBA solved",
		zap.String("model_id", m.ID),
		zap.String("media_id", media.ID),
		zap.Float64("objective_value", sol.ObjectiveValue))
	return result, nil
}

// name prefers the database name and falls back to the model's own.
func (s *fbaService) name(r *models.Reaction) string {
	if s.db != nil {
		if n := s.db.DisplayName(r.ID); n != "" {
			return n
		}
	}
	return r.Name
}

// sortFluxes orders by descending magnitude, then id.
func sortFluxes(list []Flux) {
	sort.Slice(list, func(i, j int) bool {
		a, b := math.Abs(list[i].Flux), math.Abs(list[j].Flux)
		if a != b {
			return a > b
		}
		return list[i].ReactionID < list[j].ReactionID
	})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
