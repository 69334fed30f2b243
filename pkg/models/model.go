package models

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// DefaultFluxBound is the magnitude used for "open" reaction bounds in
// reconstructed models.
const DefaultFluxBound = 1000.0

// ExchangePrefix is the canonical prefix of exchange reaction ids.
const ExchangePrefix = "EX_"

// Network is the narrow capability surface the core needs from a metabolic
// model: reaction lookup, bound get/set, and exchange enumeration.
// Adapters for other model representations implement it once.
type Network interface {
	Reaction(id string) (*Reaction, bool)
	ReactionIDs() []string
	Bounds(id string) (lower, upper float64, ok bool)
	SetBounds(id string, lower, upper float64) error
	ExchangeIDs() []string
}

// Metabolite is a compound scoped to a compartment instance (e.g. cpd00027_e0).
type Metabolite struct {
	ID          string  `json:"id" yaml:"id"`
	Name        string  `json:"name,omitempty" yaml:"name,omitempty"`
	Formula     string  `json:"formula,omitempty" yaml:"formula,omitempty"`
	Charge      float64 `json:"charge,omitempty" yaml:"charge,omitempty"`
	Compartment string  `json:"compartment" yaml:"compartment"`
}

// IsExtracellular reports whether the metabolite lives in an extracellular compartment.
func (m *Metabolite) IsExtracellular() bool {
	return strings.HasPrefix(m.Compartment, "e")
}

// Reaction is a stoichiometric reaction with flux bounds.
// Negative coefficients are substrates, positive ones products.
type Reaction struct {
	ID          string             `json:"id" yaml:"id"`
	Name        string             `json:"name,omitempty" yaml:"name,omitempty"`
	Metabolites map[string]float64 `json:"metabolites" yaml:"metabolites"`
	LowerBound  float64            `json:"lower_bound" yaml:"lower_bound"`
	UpperBound  float64            `json:"upper_bound" yaml:"upper_bound"`
	GeneRule    string             `json:"gene_reaction_rule,omitempty" yaml:"gene_reaction_rule,omitempty"`
	// Source records how the reaction entered the model: "reconstruction",
	// "atp_correction", "gapfilling" or "exchange".
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
}

// Copy returns a deep copy of r.
func (r *Reaction) Copy() *Reaction {
	c := *r
	c.Metabolites = make(map[string]float64, len(r.Metabolites))
	for k, v := range r.Metabolites {
		c.Metabolites[k] = v
	}
	return &c
}

// MetaboliteIDs returns the participating metabolite ids in sorted order.
func (r *Reaction) MetaboliteIDs() []string {
	ids := make([]string, 0, len(r.Metabolites))
	for id := range r.Metabolites {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Direction renders the bounds as ">" (forward), "<" (reverse) or "=" (reversible).
func (r *Reaction) Direction() string {
	switch {
	case r.LowerBound < 0 && r.UpperBound > 0:
		return "="
	case r.LowerBound < 0:
		return "<"
	default:
		return ">"
	}
}

// Gene is a gene (protein-coding feature) of the organism.
type Gene struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	// Length is the protein length in residues.
	Length int `json:"length,omitempty" yaml:"length,omitempty"`
}

// Model is a genome-scale metabolic model held in the session store.
// A stored Model is never mutated; callers mutate a Copy.
type Model struct {
	ID          string        `json:"id"`
	Name        string        `json:"name,omitempty"`
	Template    string        `json:"template,omitempty"`
	Objective   string        `json:"objective"`
	DerivedFrom string        `json:"derived_from,omitempty"`
	Reactions   []*Reaction   `json:"reactions"`
	Metabolites []*Metabolite `json:"metabolites"`
	Genes       []*Gene       `json:"genes,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`

	reactionIndex   map[string]int
	metaboliteIndex map[string]int
}

var _ Network = (*Model)(nil)

// NewModel creates an empty model.
func NewModel(id, objective string) *Model {
	return &Model{
		ID:              id,
		Objective:       objective,
		CreatedAt:       time.Now().UTC(),
		reactionIndex:   make(map[string]int),
		metaboliteIndex: make(map[string]int),
	}
}

// Reindex rebuilds the id indexes. It must be called after decoding a Model
// from JSON and before the model is shared between goroutines.
func (m *Model) Reindex() error {
	m.reactionIndex = make(map[string]int, len(m.Reactions))
	for i, r := range m.Reactions {
		if _, dup := m.reactionIndex[r.ID]; dup {
			return fmt.Errorf("duplicate reaction id %q", r.ID)
		}
		m.reactionIndex[r.ID] = i
	}
	m.metaboliteIndex = make(map[string]int, len(m.Metabolites))
	for i, met := range m.Metabolites {
		if _, dup := m.metaboliteIndex[met.ID]; dup {
			return fmt.Errorf("duplicate metabolite id %q", met.ID)
		}
		m.metaboliteIndex[met.ID] = i
	}
	return nil
}

// Copy returns a deep copy of m, including indexes.
func (m *Model) Copy() *Model {
	c := &Model{
		ID:              m.ID,
		Name:            m.Name,
		Template:        m.Template,
		Objective:       m.Objective,
		DerivedFrom:     m.DerivedFrom,
		CreatedAt:       m.CreatedAt,
		Reactions:       make([]*Reaction, len(m.Reactions)),
		Metabolites:     make([]*Metabolite, len(m.Metabolites)),
		Genes:           make([]*Gene, len(m.Genes)),
		reactionIndex:   make(map[string]int, len(m.Reactions)),
		metaboliteIndex: make(map[string]int, len(m.Metabolites)),
	}
	for i, r := range m.Reactions {
		c.Reactions[i] = r.Copy()
		c.reactionIndex[r.ID] = i
	}
	for i, met := range m.Metabolites {
		cm := *met
		c.Metabolites[i] = &cm
		c.metaboliteIndex[met.ID] = i
	}
	for i, g := range m.Genes {
		cg := *g
		c.Genes[i] = &cg
	}
	return c
}

// Reaction looks up a reaction by id.
func (m *Model) Reaction(id string) (*Reaction, bool) {
	if m.reactionIndex == nil {
		for _, r := range m.Reactions {
			if r.ID == id {
				return r, true
			}
		}
		return nil, false
	}
	i, ok := m.reactionIndex[id]
	if !ok {
		return nil, false
	}
	return m.Reactions[i], true
}

// HasReaction reports whether id is a reaction of m.
func (m *Model) HasReaction(id string) bool {
	_, ok := m.Reaction(id)
	return ok
}

// ReactionIDs returns reaction ids in model order.
func (m *Model) ReactionIDs() []string {
	ids := make([]string, len(m.Reactions))
	for i, r := range m.Reactions {
		ids[i] = r.ID
	}
	return ids
}

// Metabolite looks up a metabolite by id.
func (m *Model) Metabolite(id string) (*Metabolite, bool) {
	if m.metaboliteIndex == nil {
		for _, met := range m.Metabolites {
			if met.ID == id {
				return met, true
			}
		}
		return nil, false
	}
	i, ok := m.metaboliteIndex[id]
	if !ok {
		return nil, false
	}
	return m.Metabolites[i], true
}

// AddReaction appends r. Every metabolite r references must already exist.
func (m *Model) AddReaction(r *Reaction) error {
	if r.ID == "" {
		return fmt.Errorf("reaction id is required")
	}
	if m.HasReaction(r.ID) {
		return fmt.Errorf("reaction %q already exists", r.ID)
	}
	if r.LowerBound > r.UpperBound {
		return fmt.Errorf("reaction %q: lower bound %g exceeds upper bound %g", r.ID, r.LowerBound, r.UpperBound)
	}
	for metID := range r.Metabolites {
		if _, ok := m.Metabolite(metID); !ok {
			return fmt.Errorf("reaction %q references unknown metabolite %q", r.ID, metID)
		}
	}
	m.ensureIndex()
	m.reactionIndex[r.ID] = len(m.Reactions)
	m.Reactions = append(m.Reactions, r)
	return nil
}

// AddMetabolite appends met unless a metabolite with the same id exists.
// It reports whether the metabolite was added.
func (m *Model) AddMetabolite(met *Metabolite) bool {
	if _, ok := m.Metabolite(met.ID); ok {
		return false
	}
	m.ensureIndex()
	m.metaboliteIndex[met.ID] = len(m.Metabolites)
	m.Metabolites = append(m.Metabolites, met)
	return true
}

// AddGene appends g.
func (m *Model) AddGene(g *Gene) {
	m.Genes = append(m.Genes, g)
}

func (m *Model) ensureIndex() {
	if m.reactionIndex == nil || m.metaboliteIndex == nil {
		// Duplicates were rejected on the way in, so Reindex cannot fail here.
		_ = m.Reindex()
	}
}

// Bounds returns the flux bounds of reaction id.
func (m *Model) Bounds(id string) (float64, float64, bool) {
	r, ok := m.Reaction(id)
	if !ok {
		return 0, 0, false
	}
	return r.LowerBound, r.UpperBound, true
}

// SetBounds sets the flux bounds of reaction id.
func (m *Model) SetBounds(id string, lower, upper float64) error {
	r, ok := m.Reaction(id)
	if !ok {
		return fmt.Errorf("reaction %q not found", id)
	}
	if math.IsNaN(lower) || math.IsNaN(upper) {
		return fmt.Errorf("reaction %q: bounds must be numbers", id)
	}
	if lower > upper {
		return fmt.Errorf("reaction %q: lower bound %g exceeds upper bound %g", id, lower, upper)
	}
	r.LowerBound = lower
	r.UpperBound = upper
	return nil
}

// IsExchange reports whether r is a boundary reaction exchanging a metabolite
// with the environment.
func (m *Model) IsExchange(r *Reaction) bool {
	if strings.HasPrefix(r.ID, ExchangePrefix) {
		return true
	}
	if len(r.Metabolites) != 1 {
		return false
	}
	for metID := range r.Metabolites {
		if met, ok := m.Metabolite(metID); ok {
			return met.IsExtracellular()
		}
	}
	return false
}

// ExchangeIDs returns the ids of all exchange reactions in model order.
func (m *Model) ExchangeIDs() []string {
	var ids []string
	for _, r := range m.Reactions {
		if m.IsExchange(r) {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

// ExchangeFor returns the exchange reaction consuming or producing metID, if any.
func (m *Model) ExchangeFor(metID string) (*Reaction, bool) {
	for _, r := range m.Reactions {
		if _, ok := r.Metabolites[metID]; ok && len(r.Metabolites) == 1 && m.IsExchange(r) {
			return r, true
		}
	}
	return nil, false
}
