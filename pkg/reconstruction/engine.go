// Package reconstruction turns a set of protein sequences into a draft
// metabolic model.
package reconstruction

import (
	"context"
	"strings"

	"github.com/ekaya-inc/ekaya-gem/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-gem/pkg/models"
)

// Engine builds draft models. The returned model has no id; the caller
// assigns one when storing it.
type Engine interface {
	BuildDraft(ctx context.Context, proteins map[string]string, template string) (*models.Model, error)
}

const aminoAcids = "ACDEFGHIKLMNPQRSTVWYBXZJUO*"

// ValidateProteins checks that every entry has an id and a plausible amino
// acid sequence.
func ValidateProteins(proteins map[string]string) error {
	if len(proteins) == 0 {
		return apperrors.Validation("at least one protein sequence is required")
	}
	for id, seq := range proteins {
		if strings.TrimSpace(id) == "" {
			return apperrors.Validation("protein ids must not be empty")
		}
		seq = strings.TrimSpace(seq)
		if seq == "" {
			return apperrors.Validation("protein %q has an empty sequence", id)
		}
		for _, r := range strings.ToUpper(seq) {
			if !strings.ContainsRune(aminoAcids, r) {
				return apperrors.Validation("protein %q contains invalid residue %q", id, string(r))
			}
		}
	}
	return nil
}
