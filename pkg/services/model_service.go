package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-gem/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-gem/pkg/logging"
	"github.com/ekaya-inc/ekaya-gem/pkg/modelid"
	"github.com/ekaya-inc/ekaya-gem/pkg/models"
	"github.com/ekaya-inc/ekaya-gem/pkg/reconstruction"
	"github.com/ekaya-inc/ekaya-gem/pkg/retry"
	"github.com/ekaya-inc/ekaya-gem/pkg/session"
)

// maxIDAttempts bounds regeneration of colliding auto-generated ids.
const maxIDAttempts = 3

// BuildModelRequest reconstructs a draft model from protein sequences.
type BuildModelRequest struct {
	Proteins  map[string]string
	Template  string
	ModelName string
}

// ModelSummary is the listing view of a model.
type ModelSummary struct {
	ID                string    `json:"model_id"`
	Name              string    `json:"name,omitempty"`
	State             string    `json:"state"`
	GapfillPasses     int       `json:"gapfill_passes"`
	Template          string    `json:"template,omitempty"`
	Objective         string    `json:"objective"`
	DerivedFrom       string    `json:"derived_from,omitempty"`
	Reactions         int       `json:"reaction_count"`
	Metabolites       int       `json:"metabolite_count"`
	Genes             int       `json:"gene_count"`
	Exchanges         int       `json:"exchange_count"`
	HasTestConditions bool      `json:"has_test_conditions"`
	CreatedAt         time.Time `json:"created_at"`
}

// ReactionInfo describes one reaction of a model.
type ReactionInfo struct {
	ID         string  `json:"id"`
	Name       string  `json:"name,omitempty"`
	Equation   string  `json:"equation"`
	Direction  string  `json:"direction"`
	LowerBound float64 `json:"lower_bound"`
	UpperBound float64 `json:"upper_bound"`
	Source     string  `json:"source,omitempty"`
}

// ModelDetail is the full view of a model.
type ModelDetail struct {
	ModelSummary
	// Lineage lists ancestors from the direct parent to the root.
	Lineage     []string       `json:"lineage"`
	ExchangeIDs []string       `json:"exchange_ids"`
	Reactions   []ReactionInfo `json:"reactions,omitempty"`
	Summary     string         `json:"summary"`
}

// DeleteModelResult reports what a delete removed.
type DeleteModelResult struct {
	ModelID         string `json:"model_id"`
	ArtifactRemoved bool   `json:"test_conditions_removed"`
}

// ModelService builds and manages models in the session store.
type ModelService interface {
	// Build reconstructs a draft and stores it under a ".draft" id.
	Build(ctx context.Context, req BuildModelRequest) (*ModelDetail, error)
	// Get returns a model; includeReactions adds the reaction list.
	Get(ctx context.Context, id string, includeReactions bool) (*ModelDetail, error)
	// List returns models matching a state filter ("", "all", "draft", "gapfilled").
	List(ctx context.Context, state string) ([]*ModelSummary, error)
	// Delete removes a model and its cached test conditions.
	Delete(ctx context.Context, id string) (*DeleteModelResult, error)
}

type modelService struct {
	store           session.Store
	engine          reconstruction.Engine
	defaultTemplate string
	logger          *zap.Logger
}

// NewModelService creates a model service.
func NewModelService(store session.Store, engine reconstruction.Engine, defaultTemplate string, logger *zap.Logger) ModelService {
	return &modelService{
		store:           store,
		engine:          engine,
		defaultTemplate: defaultTemplate,
		logger:          logger.Named("models"),
	}
}

var _ ModelService = (*modelService)(nil)

func (s *modelService) Build(ctx context.Context, req BuildModelRequest) (*ModelDetail, error) {
	if err := reconstruction.ValidateProteins(req.Proteins); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.ModelName)
	if name != "" {
		if err := modelid.ValidateName(name); err != nil {
			return nil, err
		}
	}
	tmplName := req.Template
	if tmplName == "" {
		tmplName = s.defaultTemplate
	}

	summary := logging.SummarizeProteins(req.Proteins)
	s.logger.Info("Reconstructing draft model",
		zap.String("template", tmplName),
		zap.Int("proteins", summary.Count),
		zap.Int("residues", summary.TotalResidues),
		zap.String("sample", summary.Sample))

	draft, err := s.engine.BuildDraft(ctx, req.Proteins, tmplName)
	if err != nil {
		return nil, err
	}
	draft.Name = name

	// A user-chosen id is reported on collision; generated ids get a fresh token.
	_, err = retry.DoIfRetryable(ctx, retry.ImmediateConfig(maxIDAttempts-1), func() (string, error) {
		id, err := modelid.Generate(name)
		if err != nil {
			return "", err
		}
		draft.ID = id
		if err := s.store.InsertModel(draft); err != nil {
			if name == "" && apperrors.KindOf(err) == apperrors.KindConflict {
				return "", apperrors.Conflict(err.Error(), true)
			}
			return "", err
		}
		return id, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Draft model stored",
		zap.String("model_id", draft.ID),
		zap.Int("reactions", len(draft.Reactions)))

	detail := s.detail(draft, false)
	detail.Summary = fmt.Sprintf("Built draft model %s with %s, %s and %s",
		draft.ID,
		countOf(len(draft.Reactions), "reaction"),
		countOf(len(draft.Metabolites), "metabolite"),
		countOf(len(draft.Genes), "gene"))
	return detail, nil
}

func (s *modelService) Get(ctx context.Context, id string, includeReactions bool) (*ModelDetail, error) {
	m, err := s.store.GetModel(id)
	if err != nil {
		return nil, err
	}
	return s.detail(m, includeReactions), nil
}

func (s *modelService) List(ctx context.Context, state string) ([]*ModelSummary, error) {
	filter, err := modelid.ParseState(state)
	if err != nil {
		return nil, err
	}
	all := s.store.ListModels(filter)
	out := make([]*ModelSummary, len(all))
	for i, m := range all {
		out[i] = s.summary(m)
	}
	return out, nil
}

func (s *modelService) Delete(ctx context.Context, id string) (*DeleteModelResult, error) {
	removed, err := s.store.DeleteModel(id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Deleted model",
		zap.String("model_id", id),
		zap.Bool("test_conditions_removed", removed))
	return &DeleteModelResult{ModelID: id, ArtifactRemoved: removed}, nil
}

func (s *modelService) summary(m *models.Model) *ModelSummary {
	_, hasTC := s.store.TestConditions(m.ID)
	return &ModelSummary{
		ID:                m.ID,
		Name:              m.Name,
		State:             string(modelid.Classify(m.ID)),
		GapfillPasses:     modelid.GapfillPasses(m.ID),
		Template:          m.Template,
		Objective:         m.Objective,
		DerivedFrom:       m.DerivedFrom,
		Reactions:         len(m.Reactions),
		Metabolites:       len(m.Metabolites),
		Genes:             len(m.Genes),
		Exchanges:         len(m.ExchangeIDs()),
		HasTestConditions: hasTC,
		CreatedAt:         m.CreatedAt,
	}
}

func (s *modelService) detail(m *models.Model, includeReactions bool) *ModelDetail {
	d := &ModelDetail{
		ModelSummary: *s.summary(m),
		Lineage:      s.lineage(m),
		ExchangeIDs:  m.ExchangeIDs(),
	}
	if d.ExchangeIDs == nil {
		d.ExchangeIDs = []string{}
	}
	if includeReactions {
		d.Reactions = make([]ReactionInfo, len(m.Reactions))
		for i, r := range m.Reactions {
			d.Reactions[i] = ReactionInfo{
				ID:         r.ID,
				Name:       r.Name,
				Equation:   equation(r),
				Direction:  r.Direction(),
				LowerBound: r.LowerBound,
				UpperBound: r.UpperBound,
				Source:     r.Source,
			}
		}
	}
	d.Summary = fmt.Sprintf("%s model %s with %s", d.State, m.ID, countOf(len(m.Reactions), "reaction"))
	return d
}

func (s *modelService) lineage(m *models.Model) []string {
	lineage := []string{}
	seen := map[string]bool{m.ID: true}
	for parent := m.DerivedFrom; parent != "" && !seen[parent]; {
		seen[parent] = true
		lineage = append(lineage, parent)
		p, err := s.store.GetModel(parent)
		if err != nil {
			break
		}
		parent = p.DerivedFrom
	}
	return lineage
}

// equation renders "a + 2 b => c" with the arrow matching the bounds.
func equation(r *models.Reaction) string {
	var lhs, rhs []string
	for _, id := range r.MetaboliteIDs() {
		coef := r.Metabolites[id]
		term := id
		if c := abs(coef); c != 1 {
			term = fmt.Sprintf("%g %s", c, id)
		}
		if coef < 0 {
			lhs = append(lhs, term)
		} else {
			rhs = append(rhs, term)
		}
	}
	arrow := map[string]string{">": "=>", "<": "<=", "=": "<=>"}[r.Direction()]
	return strings.TrimSpace(strings.Join(lhs, " + ") + " " + arrow + " " + strings.Join(rhs, " + "))
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// countOf renders "1 reaction" or "3 reactions".
func countOf(n int, noun string) string {
	if n != 1 {
		noun = inflection.Plural(noun)
	}
	return fmt.Sprintf("%d %s", n, noun)
}

// sortedKeys returns the keys of m in sorted order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// requireModel loads a model, wrapping a miss with the listing hint.
func requireModel(store session.Store, id string) (*models.Model, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperrors.Validation("model_id is required")
	}
	return store.GetModel(id)
}

// requireMedia loads a medium.
func requireMedia(store session.Store, id string) (*models.Media, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperrors.Validation("media_id is required")
	}
	return store.GetMedia(id)
}
