// Package compat bridges the reconstruction naming convention (indexed
// compartments, compound-keyed media) and the simulation convention
// (template ids, exchange-reaction bounds).
package compat

import "strconv"

// ToTemplateID strips exactly one trailing compartment index digit:
// "rxn00001_c0" becomes "rxn00001_c". Ids without a trailing digit are
// returned unchanged.
func ToTemplateID(indexed string) string {
	if n := len(indexed); n > 0 && isDigit(indexed[n-1]) {
		return indexed[:n-1]
	}
	return indexed
}

// ToModelID appends the compartment index to a template id.
func ToModelID(templateID string, index int) string {
	return templateID + strconv.Itoa(index)
}

// CompartmentIndex returns the trailing compartment index digit of id.
func CompartmentIndex(id string) (int, bool) {
	if n := len(id); n > 0 && isDigit(id[n-1]) {
		return int(id[n-1] - '0'), true
	}
	return 0, false
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
