package template

import (
	"fmt"

	"github.com/ekaya-inc/ekaya-gem/pkg/models"
)

// acceptorUptake is written as an effectively unlimited uptake; the media
// converter caps it to its default uptake.
const acceptorUptake = -1000.0

// PanelSpec is the compact YAML form of the ATP test panel: every carbon
// source is crossed with every electron-acceptor regime.
type PanelSpec struct {
	Objective     string                        `yaml:"objective"`
	CarbonUptake  float64                       `yaml:"carbon_uptake"`
	Core          PanelKey                      `yaml:"core"`
	CarbonSources []PanelSubstrate              `yaml:"carbon_sources"`
	Acceptors     []PanelSubstrate              `yaml:"acceptors"`
	Expected      map[string]map[string]float64 `yaml:"expected"`
}

// PanelKey names one carbon/acceptor pair.
type PanelKey struct {
	Carbon   string `yaml:"carbon"`
	Acceptor string `yaml:"acceptor"`
}

// PanelSubstrate is a carbon source or acceptor. Compound is empty for the
// "no acceptor" regime.
type PanelSubstrate struct {
	ID       string `yaml:"id"`
	Compound string `yaml:"compound"`
}

// PanelCondition is one expanded test condition.
type PanelCondition struct {
	ID       string
	Carbon   string
	Acceptor string
	Media    *models.Media
	// Expected is the ATP maintenance flux the full template supports.
	Expected float64
	Core     bool
}

func (p *PanelSpec) validate() error {
	if p.Objective == "" {
		return fmt.Errorf("atp panel objective is required")
	}
	if p.CarbonUptake <= 0 {
		return fmt.Errorf("atp panel carbon_uptake must be positive")
	}
	if len(p.CarbonSources) == 0 || len(p.Acceptors) == 0 {
		return fmt.Errorf("atp panel needs carbon sources and acceptors")
	}
	coreFound := false
	for _, c := range p.CarbonSources {
		for _, a := range p.Acceptors {
			if c.ID == p.Core.Carbon && a.ID == p.Core.Acceptor {
				coreFound = true
			}
		}
	}
	if !coreFound {
		return fmt.Errorf("atp panel core condition %s/%s is not part of the panel", p.Core.Carbon, p.Core.Acceptor)
	}
	return nil
}

// Conditions expands the panel in carbon-major order.
func (p *PanelSpec) Conditions() []*PanelCondition {
	out := make([]*PanelCondition, 0, len(p.CarbonSources)*len(p.Acceptors))
	for _, c := range p.CarbonSources {
		for _, a := range p.Acceptors {
			id := fmt.Sprintf("atp_%s_%s", c.ID, a.ID)
			media := &models.Media{
				ID:   id,
				Name: fmt.Sprintf("ATP test: %s / %s", c.ID, a.ID),
				Bounds: map[string]models.Bound{
					c.Compound: {Lower: -p.CarbonUptake, Upper: models.DefaultFluxBound},
				},
			}
			if a.Compound != "" {
				media.Bounds[a.Compound] = models.Bound{Lower: acceptorUptake, Upper: models.DefaultFluxBound}
			}
			out = append(out, &PanelCondition{
				ID:       id,
				Carbon:   c.ID,
				Acceptor: a.ID,
				Media:    media,
				Expected: p.Expected[c.ID][a.ID],
				Core:     c.ID == p.Core.Carbon && a.ID == p.Core.Acceptor,
			})
		}
	}
	return out
}
