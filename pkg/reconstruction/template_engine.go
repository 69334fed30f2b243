package reconstruction

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-gem/pkg/models"
	"github.com/ekaya-inc/ekaya-gem/pkg/template"
)

// TemplateEngine builds drafts locally from a template: every universal
// reaction, the biomass reaction, one gene per protein and an exchange for
// every extracellular metabolite. It performs no annotation, so the draft
// is identical for any protein set.
type TemplateEngine struct {
	templates        *template.Registry
	compartmentIndex int
	logger           *zap.Logger
}

// NewTemplateEngine creates a local engine.
func NewTemplateEngine(templates *template.Registry, compartmentIndex int, logger *zap.Logger) *TemplateEngine {
	return &TemplateEngine{
		templates:        templates,
		compartmentIndex: compartmentIndex,
		logger:           logger.Named("reconstruction"),
	}
}

var _ Engine = (*TemplateEngine)(nil)

func (e *TemplateEngine) BuildDraft(ctx context.Context, proteins map[string]string, templateName string) (*models.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidateProteins(proteins); err != nil {
		return nil, err
	}
	tmpl, err := e.templates.Get(templateName)
	if err != nil {
		return nil, err
	}

	idx := e.compartmentIndex
	m := models.NewModel("", tmpl.Biomass.ID)
	m.Template = tmpl.Name
	m.CreatedAt = time.Now().UTC()

	addMetabolites := func(stoich map[string]float64) error {
		for cpdID := range stoich {
			cpd, ok := tmpl.GetCompound(cpdID)
			if !ok {
				return fmt.Errorf("template %s: unknown compound %q", tmpl.Name, cpdID)
			}
			m.AddMetabolite(cpd.ToModel(idx))
		}
		return nil
	}

	for _, r := range tmpl.ReactionsOfType(template.TypeUniversal) {
		if err := addMetabolites(r.Stoichiometry); err != nil {
			return nil, err
		}
		lo, up := r.Bounds()
		if err := m.AddReaction(r.ToModel(idx, lo, up, "reconstruction")); err != nil {
			return nil, fmt.Errorf("failed to add %s: %w", r.ID, err)
		}
	}

	if err := addMetabolites(tmpl.Biomass.Stoichiometry); err != nil {
		return nil, err
	}
	biomass := &models.Reaction{
		ID:          tmpl.Biomass.ID,
		Name:        tmpl.Biomass.Name,
		Metabolites: make(map[string]float64, len(tmpl.Biomass.Stoichiometry)),
		UpperBound:  models.DefaultFluxBound,
		Source:      "reconstruction",
	}
	for cpdID, coef := range tmpl.Biomass.Stoichiometry {
		cpd, _ := tmpl.GetCompound(cpdID)
		biomass.Metabolites[cpd.ToModel(idx).ID] = coef
	}
	if err := m.AddReaction(biomass); err != nil {
		return nil, fmt.Errorf("failed to add biomass: %w", err)
	}

	if _, err := CreateExchanges(m, m.Metabolites); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(proteins))
	for id := range proteins {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		m.AddGene(&models.Gene{ID: id, Length: len(strings.TrimSpace(proteins[id]))})
	}

	e.logger.Debug("Draft reconstructed",
		zap.String("template", tmpl.Name),
		zap.Int("proteins", len(proteins)),
		zap.Int("reactions", len(m.Reactions)))
	return m, nil
}

// CreateExchanges creates EX_{met} (bounds 0..1000) for every extracellular
// metabolite in mets that has no exchange in m yet and returns the new ids.
func CreateExchanges(m *models.Model, mets []*models.Metabolite) ([]string, error) {
	candidates := append([]*models.Metabolite(nil), mets...)
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })

	var created []string
	for _, met := range candidates {
		if !met.IsExtracellular() {
			continue
		}
		if _, ok := m.ExchangeFor(met.ID); ok {
			continue
		}
		ex := &models.Reaction{
			ID:          models.ExchangePrefix + met.ID,
			Name:        met.Name + " exchange",
			Metabolites: map[string]float64{met.ID: -1},
			LowerBound:  0,
			UpperBound:  models.DefaultFluxBound,
			Source:      "exchange",
		}
		if err := m.AddReaction(ex); err != nil {
			return created, fmt.Errorf("failed to create exchange for %s: %w", met.ID, err)
		}
		created = append(created, ex.ID)
	}
	return created, nil
}
