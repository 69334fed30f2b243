package compat

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ekaya-inc/ekaya-gem/pkg/models"
)

const (
	DefaultUnboundedThreshold = 100.0
	DefaultUptake             = 100.0
)

// MediaConverter turns compound-keyed media bounds into exchange-reaction
// uptake rates for a specific network.
type MediaConverter struct {
	// UnboundedThreshold is the uptake magnitude at or above which a media
	// entry is treated as "unlimited" and capped to DefaultUptake.
	UnboundedThreshold float64
	DefaultUptake      float64
	// CompartmentIndex is the extracellular compartment index of the model.
	CompartmentIndex int
}

// NewMediaConverter returns a converter with the default thresholds.
func NewMediaConverter() MediaConverter {
	return MediaConverter{
		UnboundedThreshold: DefaultUnboundedThreshold,
		DefaultUptake:      DefaultUptake,
	}
}

// Conversion is the result of converting a medium against a network.
type Conversion struct {
	// Bounds maps exchange reaction id to a non-negative uptake rate.
	Bounds map[string]float64
	// Matched maps media compound id to the exchange reaction it resolved to.
	Matched map[string]string
	// Unmatched lists media compounds with no exchange in the network, sorted.
	Unmatched []string
}

// Uptake applies the sign inversion and capping rules to a media lower bound.
func (c MediaConverter) Uptake(lower float64) float64 {
	if lower >= 0 {
		return 0
	}
	if math.IsInf(lower, -1) || math.Abs(lower) >= c.UnboundedThreshold {
		return c.DefaultUptake
	}
	return math.Abs(lower)
}

// Convert resolves every media compound to an exchange reaction of network.
// Compounds without an exchange are reported in Unmatched, never as an error.
func (c MediaConverter) Convert(media *models.Media, network models.Network) Conversion {
	conv := Conversion{
		Bounds:  make(map[string]float64),
		Matched: make(map[string]string),
	}
	for _, cpd := range media.CompoundIDs() {
		exID, ok := c.ResolveExchange(cpd, network)
		if !ok {
			conv.Unmatched = append(conv.Unmatched, cpd)
			continue
		}
		conv.Matched[cpd] = exID
		conv.Bounds[exID] = c.Uptake(media.Bounds[cpd].Lower)
	}
	sort.Strings(conv.Unmatched)
	return conv
}

// ResolveExchange finds the exchange reaction for a compound using the
// candidate id patterns in priority order.
func (c MediaConverter) ResolveExchange(compound string, network models.Network) (string, bool) {
	for _, id := range c.exchangeCandidates(NormalizeCompound(compound)) {
		if _, ok := network.Reaction(id); ok {
			return id, true
		}
	}
	return "", false
}

func (c MediaConverter) exchangeCandidates(cpd string) []string {
	return []string{
		fmt.Sprintf("EX_%s_e%d", cpd, c.CompartmentIndex),
		fmt.Sprintf("EX_%s_e", cpd),
		fmt.Sprintf("EX_%s(e)", cpd),
		fmt.Sprintf("%s_e%d", cpd, c.CompartmentIndex),
		fmt.Sprintf("%s_e", cpd),
	}
}

// NormalizeCompound strips an extracellular compartment suffix
// ("cpd00027_e0", "cpd00027_e", "cpd00027(e)") from a compound id.
func NormalizeCompound(id string) string {
	if strings.HasSuffix(id, "(e)") {
		return strings.TrimSuffix(id, "(e)")
	}
	trimmed := ToTemplateID(id)
	if strings.HasSuffix(trimmed, "_e") {
		return strings.TrimSuffix(trimmed, "_e")
	}
	return id
}

// ApplyOptions controls how a conversion is written into a network.
type ApplyOptions struct {
	// ResetExchanges closes uptake on every exchange before applying the medium.
	ResetExchanges bool
}

// ApplyMedia writes the converted uptake rates into network as exchange lower
// bounds. network must be a working copy; upper bounds are left untouched.
func ApplyMedia(network models.Network, conv Conversion, opts ApplyOptions) error {
	if opts.ResetExchanges {
		for _, id := range network.ExchangeIDs() {
			_, upper, _ := network.Bounds(id)
			if err := network.SetBounds(id, 0, math.Max(upper, 0)); err != nil {
				return fmt.Errorf("failed to reset exchange %s: %w", id, err)
			}
		}
	}

	ids := make([]string, 0, len(conv.Bounds))
	for id := range conv.Bounds {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		_, upper, ok := network.Bounds(id)
		if !ok {
			return fmt.Errorf("exchange %s not found in network", id)
		}
		if err := network.SetBounds(id, -conv.Bounds[id], math.Max(upper, 0)); err != nil {
			return fmt.Errorf("failed to apply media bound to %s: %w", id, err)
		}
	}
	return nil
}
