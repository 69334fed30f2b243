// Package modelid generates model identifiers and derives lifecycle state from
// the suffix chain. Every state check in the system goes through this package.
package modelid

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-gem/pkg/apperrors"
)

const (
	// DraftSuffix marks a freshly reconstructed model.
	DraftSuffix = ".draft"
	// GapfillSuffix is appended once per gapfilling pass.
	GapfillSuffix = ".gf"
	// TestConditionsSuffix is the derived key suffix for cached stage-1 artifacts.
	TestConditionsSuffix = ".test_conditions"
)

// State is the lifecycle state encoded in a model id.
type State string

const (
	StateDraft     State = "draft"
	StateGapfilled State = "gapfilled"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,127}$`)

// now is replaced in tests.
var now = time.Now

// Generate returns "{name}.draft" for a user-supplied name, or an auto-generated
// "model_{timestamp}_{token}.draft" when name is empty.
// Names may not contain dots so the suffix chain stays unambiguous.
func Generate(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return autoToken() + DraftSuffix, nil
	}
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return name + DraftSuffix, nil
}

// ValidateName checks a user-supplied model or media name.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return apperrors.Validation(
			"invalid name %q: use 1-128 letters, digits, '_' or '-', starting with a letter or digit", name)
	}
	return nil
}

func autoToken() string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return "model_" + now().UTC().Format("20060102150405") + "_" + token
}

// Advance returns the id of the model produced by gapfilling id.
func Advance(id string) string {
	return id + GapfillSuffix
}

// Classify derives the lifecycle state from the id alone.
func Classify(id string) State {
	if strings.HasSuffix(id, GapfillSuffix) {
		return StateGapfilled
	}
	return StateDraft
}

// GapfillPasses counts the trailing ".gf" segments of id.
func GapfillPasses(id string) int {
	n := 0
	for strings.HasSuffix(id, GapfillSuffix) {
		id = strings.TrimSuffix(id, GapfillSuffix)
		n++
	}
	return n
}

// ParseState parses a state filter. The empty string and "all" return ok with
// an empty State, meaning no filter.
func ParseState(s string) (State, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return "", nil
	case string(StateDraft):
		return StateDraft, nil
	case string(StateGapfilled):
		return StateGapfilled, nil
	}
	return "", apperrors.Validation("unknown state %q: expected all, draft or gapfilled", s)
}

// Matches reports whether id passes the state filter.
func Matches(id string, filter State) bool {
	return filter == "" || Classify(id) == filter
}

// TestConditionsKey is the session key under which the stage-1 artifact for id is cached.
func TestConditionsKey(id string) string {
	return id + TestConditionsSuffix
}
