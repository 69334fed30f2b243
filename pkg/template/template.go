// Package template loads reconstruction/gapfilling templates: the universal
// and candidate reaction sets, the biomass definition and the ATP test panel.
// Template ids carry no compartment index (rxn00154_c, cpd00002_e).
package template

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-gem/pkg/compat"
	"github.com/ekaya-inc/ekaya-gem/pkg/models"
)

// ReactionType distinguishes reactions every draft receives from those only
// gapfilling may add.
type ReactionType string

const (
	TypeUniversal ReactionType = "universal"
	TypeCandidate ReactionType = "candidate"
)

// DefaultPenalty is used for candidates without an explicit penalty.
const DefaultPenalty = 1.0

// Compound is a template metabolite.
type Compound struct {
	ID          string  `yaml:"id"`
	Name        string  `yaml:"name"`
	Formula     string  `yaml:"formula"`
	Charge      float64 `yaml:"charge"`
	Compartment string  `yaml:"compartment"`
}

// ToModel instantiates the compound in compartment index idx.
func (c *Compound) ToModel(idx int) *models.Metabolite {
	return &models.Metabolite{
		ID:          compat.ToModelID(c.ID, idx),
		Name:        c.Name,
		Formula:     c.Formula,
		Charge:      c.Charge,
		Compartment: compat.ToModelID(c.Compartment, idx),
	}
}

// Reaction is a template reaction.
type Reaction struct {
	ID            string             `yaml:"id"`
	Name          string             `yaml:"name"`
	Type          ReactionType       `yaml:"type"`
	Direction     string             `yaml:"direction"`
	Penalty       float64            `yaml:"penalty"`
	LowerBound    *float64           `yaml:"lower_bound"`
	Stoichiometry map[string]float64 `yaml:"stoichiometry"`
}

// Bounds returns the default flux bounds implied by the direction. An
// explicit lower bound overrides the direction's lower bound.
func (r *Reaction) Bounds() (float64, float64) {
	lo, up := DirectionBounds(r.Direction)
	if r.LowerBound != nil {
		lo = *r.LowerBound
	}
	return lo, up
}

// ToModel instantiates the reaction in compartment index idx with the given
// bounds. Metabolite ids are translated the same way.
func (r *Reaction) ToModel(idx int, lower, upper float64, source string) *models.Reaction {
	mets := make(map[string]float64, len(r.Stoichiometry))
	for cpd, coef := range r.Stoichiometry {
		mets[compat.ToModelID(cpd, idx)] = coef
	}
	return &models.Reaction{
		ID:          compat.ToModelID(r.ID, idx),
		Name:        r.Name,
		Metabolites: mets,
		LowerBound:  lower,
		UpperBound:  upper,
		Source:      source,
	}
}

// Reversible reports whether the reaction may run in both directions.
func (r *Reaction) Reversible() bool {
	return r.Direction == "="
}

// DirectionBounds maps ">", "<" and "=" to flux bounds.
func DirectionBounds(direction string) (float64, float64) {
	switch direction {
	case "<":
		return -models.DefaultFluxBound, 0
	case "=":
		return -models.DefaultFluxBound, models.DefaultFluxBound
	default:
		return 0, models.DefaultFluxBound
	}
}

// Biomass is the growth objective definition.
type Biomass struct {
	ID            string             `yaml:"id"`
	Name          string             `yaml:"name"`
	Stoichiometry map[string]float64 `yaml:"stoichiometry"`
}

// Template is an immutable, loaded template.
type Template struct {
	Name         string            `yaml:"name"`
	Description  string            `yaml:"description"`
	Compartments map[string]string `yaml:"compartments"`
	Compounds    []*Compound       `yaml:"compounds"`
	Reactions    []*Reaction       `yaml:"reactions"`
	Biomass      Biomass           `yaml:"biomass"`
	ATPPanel     *PanelSpec        `yaml:"atp_panel"`

	compounds map[string]*Compound
	reactions map[string]*Reaction
}

// index validates the template and builds lookups.
func (t *Template) index() error {
	if t.Name == "" {
		return fmt.Errorf("template name is required")
	}
	t.compounds = make(map[string]*Compound, len(t.Compounds))
	for _, c := range t.Compounds {
		if _, dup := t.compounds[c.ID]; dup {
			return fmt.Errorf("template %s: duplicate compound %q", t.Name, c.ID)
		}
		t.compounds[c.ID] = c
	}
	t.reactions = make(map[string]*Reaction, len(t.Reactions))
	for _, r := range t.Reactions {
		if _, dup := t.reactions[r.ID]; dup {
			return fmt.Errorf("template %s: duplicate reaction %q", t.Name, r.ID)
		}
		switch r.Direction {
		case ">", "<", "=":
		default:
			return fmt.Errorf("template %s: reaction %q has invalid direction %q", t.Name, r.ID, r.Direction)
		}
		if r.Type == "" {
			r.Type = TypeCandidate
		}
		if r.Type == TypeCandidate && r.Penalty <= 0 {
			r.Penalty = DefaultPenalty
		}
		for cpd := range r.Stoichiometry {
			if _, ok := t.compounds[cpd]; !ok {
				return fmt.Errorf("template %s: reaction %q references unknown compound %q", t.Name, r.ID, cpd)
			}
		}
		t.reactions[r.ID] = r
	}
	if t.Biomass.ID == "" {
		return fmt.Errorf("template %s: biomass id is required", t.Name)
	}
	for cpd := range t.Biomass.Stoichiometry {
		if _, ok := t.compounds[cpd]; !ok {
			return fmt.Errorf("template %s: biomass references unknown compound %q", t.Name, cpd)
		}
	}
	if t.ATPPanel != nil {
		if err := t.ATPPanel.validate(); err != nil {
			return fmt.Errorf("template %s: %w", t.Name, err)
		}
	}
	return nil
}

// GetReaction looks up a reaction by template id.
func (t *Template) GetReaction(id string) (*Reaction, bool) {
	r, ok := t.reactions[id]
	return r, ok
}

// GetCompound looks up a compound by template id.
func (t *Template) GetCompound(id string) (*Compound, bool) {
	c, ok := t.compounds[id]
	return c, ok
}

// ReactionsOfType returns the reactions of type typ in template order.
func (t *Template) ReactionsOfType(typ ReactionType) []*Reaction {
	var out []*Reaction
	for _, r := range t.Reactions {
		if r.Type == typ {
			out = append(out, r)
		}
	}
	return out
}

// ATPObjective returns the template id of the ATP maintenance reaction.
func (t *Template) ATPObjective() string {
	if t.ATPPanel == nil {
		return ""
	}
	return t.ATPPanel.Objective
}

// IsExtracellular reports whether a template compound id lives outside the cell.
func IsExtracellular(compartment string) bool {
	return strings.HasPrefix(compartment, "e")
}

// Summary describes a template for listings.
type Summary struct {
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	Reactions     int    `json:"reactions"`
	Universal     int    `json:"universal_reactions"`
	Candidates    int    `json:"candidate_reactions"`
	Compounds     int    `json:"compounds"`
	Biomass       string `json:"biomass"`
	ATPConditions int    `json:"atp_test_conditions"`
}

// Summarize returns a listing summary of t.
func (t *Template) Summarize() Summary {
	s := Summary{
		Name:        t.Name,
		Description: t.Description,
		Reactions:   len(t.Reactions),
		Universal:   len(t.ReactionsOfType(TypeUniversal)),
		Candidates:  len(t.ReactionsOfType(TypeCandidate)),
		Compounds:   len(t.Compounds),
		Biomass:     t.Biomass.ID,
	}
	if t.ATPPanel != nil {
		s.ATPConditions = len(t.ATPPanel.CarbonSources) * len(t.ATPPanel.Acceptors)
	}
	return s
}
