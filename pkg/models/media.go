package models

import (
	"encoding/json"
	"math"
	"sort"
	"time"

	"github.com/ekaya-inc/ekaya-gem/pkg/jsonutil"
)

// Bound is a flux bound pair in the compound-ID convention: a negative Lower
// allows uptake, a positive Upper allows secretion.
type Bound struct {
	Lower float64 `json:"lower" yaml:"lower"`
	Upper float64 `json:"upper" yaml:"upper"`
}

// MarshalJSON writes infinite bounds as "inf" and "-inf", which JSON numbers cannot carry.
func (b Bound) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Lower any `json:"lower"`
		Upper any `json:"upper"`
	}{boundValue(b.Lower), boundValue(b.Upper)})
}

// UnmarshalJSON accepts the forms jsonutil.FlexibleBound does.
func (b *Bound) UnmarshalJSON(data []byte) error {
	lo, up, err := jsonutil.FlexibleBound(data)
	if err != nil {
		return err
	}
	b.Lower, b.Upper = lo, up
	return nil
}

func boundValue(v float64) any {
	switch {
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return v
}

// Media is a growth medium keyed by compound id (e.g. cpd00027).
type Media struct {
	ID           string           `json:"id" yaml:"id"`
	Name         string           `json:"name,omitempty" yaml:"name,omitempty"`
	Description  string           `json:"description,omitempty" yaml:"description,omitempty"`
	Bounds       map[string]Bound `json:"bounds" yaml:"bounds"`
	IsPredefined bool             `json:"is_predefined" yaml:"-"`
	CreatedAt    time.Time        `json:"created_at" yaml:"-"`
}

// CompoundIDs returns the media compounds in sorted order.
func (m *Media) CompoundIDs() []string {
	ids := make([]string, 0, len(m.Bounds))
	for id := range m.Bounds {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Copy returns a deep copy of m.
func (m *Media) Copy() *Media {
	c := *m
	c.Bounds = make(map[string]Bound, len(m.Bounds))
	for k, v := range m.Bounds {
		c.Bounds[k] = v
	}
	return &c
}
