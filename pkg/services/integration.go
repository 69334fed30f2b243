package services

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-gem/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-gem/pkg/compat"
	"github.com/ekaya-inc/ekaya-gem/pkg/models"
	"github.com/ekaya-inc/ekaya-gem/pkg/reconstruction"
	"github.com/ekaya-inc/ekaya-gem/pkg/template"
)

// Gapfilling stages. They double as the Source of integrated reactions.
const (
	StageATPCorrection = "atp_correction"
	StageGapfilling    = "gapfilling"
)

// IntegrationWarning reports a candidate that could not be integrated.
type IntegrationWarning struct {
	CandidateID string `json:"candidate_id"`
	TemplateID  string `json:"template_id"`
	Reason      string `json:"reason"`
}

// AddedReaction describes a reaction integrated into a model.
type AddedReaction struct {
	ID         string  `json:"id"`
	Name       string  `json:"name,omitempty"`
	Direction  string  `json:"direction"`
	LowerBound float64 `json:"lower_bound"`
	UpperBound float64 `json:"upper_bound"`
	Stage      string  `json:"stage"`
}

// IntegrationResult is the outcome of integrating candidates.
type IntegrationResult struct {
	Added     []AddedReaction
	Exchanges []AddedReaction
	Warnings  []IntegrationWarning
}

// Integrator adds selected candidates to a model. Candidate order does not
// affect the result.
type Integrator struct {
	converter compat.MediaConverter
	logger    *zap.Logger
}

// NewIntegrator creates an integrator that bounds new exchanges with converter.
func NewIntegrator(converter compat.MediaConverter, logger *zap.Logger) *Integrator {
	return &Integrator{converter: converter, logger: logger.Named("integration")}
}

// Integrate mutates m in three steps: (1) add every non-exchange candidate
// through the compartment translator, (2) create exchanges for extracellular
// metabolites introduced by step 1, (3) bound those exchanges from media.
// Unresolvable candidates become warnings; integration fails only when
// no candidate resolves.
func (in *Integrator) Integrate(m *models.Model, tmpl *template.Template, candidates []Candidate,
	media *models.Media, stage string) (*IntegrationResult, error) {
	sorted := append([]Candidate(nil), candidates...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	res := &IntegrationResult{}
	var newMets []*models.Metabolite
	var unresolved []string
	attempted := 0

	for _, c := range sorted {
		if strings.HasPrefix(c.ID, models.ExchangePrefix) {
			continue
		}
		attempted++
		tid := compat.ToTemplateID(c.ID)
		idx, ok := compat.CompartmentIndex(c.ID)
		if !ok {
			idx = in.converter.CompartmentIndex
		}

		tr, ok := tmpl.GetReaction(tid)
		if !ok {
			unresolved = append(unresolved, c.ID)
			res.Warnings = append(res.Warnings, IntegrationWarning{
				CandidateID: c.ID,
				TemplateID:  tid,
				Reason:      fmt.Sprintf("reaction not found in template %s", tmpl.Name),
			})
			continue
		}
		if m.HasReaction(c.ID) {
			res.Warnings = append(res.Warnings, IntegrationWarning{
				CandidateID: c.ID,
				TemplateID:  tid,
				Reason:      "reaction already present in model",
			})
			continue
		}

		var mets []*models.Metabolite
		for _, cpd := range sortedKeys(tr.Stoichiometry) {
			comp, _ := tmpl.GetCompound(cpd)
			met := comp.ToModel(idx)
			if _, exists := m.Metabolite(met.ID); !exists {
				mets = append(mets, met)
			}
		}
		for _, met := range mets {
			m.AddMetabolite(met)
		}
		newMets = append(newMets, mets...)

		lo, up := template.DirectionBounds(c.Direction)
		rxn := tr.ToModel(idx, lo, up, stage)
		if err := m.AddReaction(rxn); err != nil {
			return nil, fmt.Errorf("failed to integrate %s: %w", c.ID, err)
		}
		res.Added = append(res.Added, addedReaction(rxn, stage))
	}

	if attempted > 0 && len(res.Added) == 0 && len(unresolved) > 0 {
		return nil, apperrors.IntegrationFailed(unresolved)
	}

	created, err := reconstruction.CreateExchanges(m, newMets)
	if err != nil {
		return nil, err
	}

	conv := in.converter.Convert(media, m)
	for _, exID := range created {
		_, up, _ := m.Bounds(exID)
		if uptake, ok := conv.Bounds[exID]; ok {
			if err := m.SetBounds(exID, -uptake, up); err != nil {
				return nil, fmt.Errorf("failed to bound exchange %s: %w", exID, err)
			}
		}
		r, _ := m.Reaction(exID)
		res.Exchanges = append(res.Exchanges, addedReaction(r, stage))
	}

	if len(res.Warnings) > 0 {
		in.logger.Warn("Some candidates were not integrated",
			zap.String("model_id", m.ID),
			zap.Int("warnings", len(res.Warnings)))
	}
	return res, nil
}

func addedReaction(r *models.Reaction, stage string) AddedReaction {
	return AddedReaction{
		ID:         r.ID,
		Name:       r.Name,
		Direction:  r.Direction(),
		LowerBound: r.LowerBound,
		UpperBound: r.UpperBound,
		Stage:      stage,
	}
}
