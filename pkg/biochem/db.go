// Package biochem is the read-only compound/reaction database used to put
// names on ids in tool output and to answer search queries.
package biochem

import (
	_ "embed"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/biochem.yaml
var builtinData []byte

// Compound is a database compound.
type Compound struct {
	ID      string   `yaml:"id" json:"id"`
	Name    string   `yaml:"name" json:"name"`
	Formula string   `yaml:"formula" json:"formula,omitempty"`
	Charge  float64  `yaml:"charge" json:"charge"`
	Aliases []string `yaml:"aliases" json:"aliases,omitempty"`
}

// Reaction is a database reaction.
type Reaction struct {
	ID       string   `yaml:"id" json:"id"`
	Name     string   `yaml:"name" json:"name"`
	Equation string   `yaml:"equation" json:"equation,omitempty"`
	EC       []string `yaml:"ec" json:"ec_numbers,omitempty"`
	Aliases  []string `yaml:"aliases" json:"aliases,omitempty"`
}

// DB looks up compounds and reactions. Ids may carry compartment suffixes
// ("cpd00027_e0") or an exchange prefix ("EX_cpd00027_e0"); they are
// normalised before lookup.
type DB interface {
	Compound(id string) (*Compound, bool)
	Reaction(id string) (*Reaction, bool)
	SearchCompounds(query string, limit int) []*Compound
	SearchReactions(query string, limit int) []*Reaction
	// DisplayName returns a human-readable name for a model reaction or
	// metabolite id, or "" when unknown.
	DisplayName(id string) string
}

type memoryDB struct {
	compounds     map[string]*Compound
	reactions     map[string]*Reaction
	compoundOrder []string
	reactionOrder []string
}

// Load returns the embedded database.
func Load() (DB, error) {
	return Parse(builtinData)
}

// Parse decodes a YAML database document.
func Parse(data []byte) (DB, error) {
	var doc struct {
		Compounds []*Compound `yaml:"compounds"`
		Reactions []*Reaction `yaml:"reactions"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse biochemistry database: %w", err)
	}
	db := &memoryDB{
		compounds: make(map[string]*Compound, len(doc.Compounds)),
		reactions: make(map[string]*Reaction, len(doc.Reactions)),
	}
	for _, c := range doc.Compounds {
		if _, dup := db.compounds[c.ID]; dup {
			return nil, fmt.Errorf("duplicate compound %q", c.ID)
		}
		db.compounds[c.ID] = c
		db.compoundOrder = append(db.compoundOrder, c.ID)
	}
	for _, r := range doc.Reactions {
		if _, dup := db.reactions[r.ID]; dup {
			return nil, fmt.Errorf("duplicate reaction %q", r.ID)
		}
		db.reactions[r.ID] = r
		db.reactionOrder = append(db.reactionOrder, r.ID)
	}
	sort.Strings(db.compoundOrder)
	sort.Strings(db.reactionOrder)
	return db, nil
}

var (
	seedID      = regexp.MustCompile(`^(cpd|rxn)\d{5}`)
	compartment = regexp.MustCompile(`(_[a-z]\d*|\([a-z]\))$`)
)

// NormalizeID strips exchange prefixes and compartment suffixes.
func NormalizeID(id string) string {
	id = strings.TrimPrefix(id, "EX_")
	if m := seedID.FindString(id); m != "" {
		return m
	}
	return compartment.ReplaceAllString(id, "")
}

func (db *memoryDB) Compound(id string) (*Compound, bool) {
	c, ok := db.compounds[NormalizeID(id)]
	return c, ok
}

func (db *memoryDB) Reaction(id string) (*Reaction, bool) {
	if r, ok := db.reactions[id]; ok {
		return r, true
	}
	r, ok := db.reactions[NormalizeID(id)]
	return r, ok
}

func (db *memoryDB) DisplayName(id string) string {
	if strings.HasPrefix(id, "EX_") {
		if c, ok := db.Compound(id); ok {
			return c.Name + " exchange"
		}
		return ""
	}
	if r, ok := db.Reaction(id); ok {
		return r.Name
	}
	if c, ok := db.Compound(id); ok {
		return c.Name
	}
	return ""
}

func (db *memoryDB) SearchCompounds(query string, limit int) []*Compound {
	var out []*Compound
	for _, id := range db.compoundOrder {
		c := db.compounds[id]
		if matches(query, c.ID, c.Name, c.Formula, c.Aliases) {
			out = append(out, c)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out
}

func (db *memoryDB) SearchReactions(query string, limit int) []*Reaction {
	var out []*Reaction
	for _, id := range db.reactionOrder {
		r := db.reactions[id]
		if matches(query, r.ID, r.Name, "", append(append([]string(nil), r.Aliases...), r.EC...)) {
			out = append(out, r)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out
}

func matches(query, id, name, formula string, aliases []string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return false
	}
	if strings.Contains(strings.ToLower(id), q) ||
		strings.Contains(strings.ToLower(name), q) ||
		strings.EqualFold(formula, q) {
		return true
	}
	for _, a := range aliases {
		if strings.Contains(strings.ToLower(a), q) {
			return true
		}
	}
	return false
}
