package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-gem/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-gem/pkg/biochem"
	"github.com/ekaya-inc/ekaya-gem/pkg/template"
)

const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 100
)

// CompoundSearchResult is the response of a compound search.
type CompoundSearchResult struct {
	Query   string              `json:"query"`
	Count   int                 `json:"count"`
	Results []*biochem.Compound `json:"results"`
}

// ReactionSearchResult is the response of a reaction search.
type ReactionSearchResult struct {
	Query   string              `json:"query"`
	Count   int                 `json:"count"`
	Results []*biochem.Reaction `json:"results"`
}

// LookupService answers database and template lookups. It never touches the
// session store.
type LookupService interface {
	// Compound returns the database entry for a compound id. Compartment
	// suffixes and exchange prefixes are accepted.
	Compound(ctx context.Context, id string) (*biochem.Compound, error)

	// Reaction returns the database entry for a reaction id.
	Reaction(ctx context.Context, id string) (*biochem.Reaction, error)

	SearchCompounds(ctx context.Context, query string, limit int) (*CompoundSearchResult, error)
	SearchReactions(ctx context.Context, query string, limit int) (*ReactionSearchResult, error)

	// Templates lists the registered reconstruction templates.
	Templates(ctx context.Context) ([]template.Summary, error)
}

type lookupService struct {
	db        biochem.DB
	templates *template.Registry
	logger    *zap.Logger
}

var _ LookupService = (*lookupService)(nil)

func NewLookupService(db biochem.DB, templates *template.Registry, logger *zap.Logger) LookupService {
	return &lookupService{
		db:        db,
		templates: templates,
		logger:    logger.Named("lookup"),
	}
}

func (s *lookupService) Compound(ctx context.Context, id string) (*biochem.Compound, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperrors.Validation("compound_id is required")
	}
	c, ok := s.db.Compound(id)
	if !ok {
		return nil, apperrors.NotFound("compound", id, nil).
			WithDetail("hint", "use search_compounds to find compound ids by name")
	}
	return c, nil
}

func (s *lookupService) Reaction(ctx context.Context, id string) (*biochem.Reaction, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperrors.Validation("reaction_id is required")
	}
	r, ok := s.db.Reaction(id)
	if !ok {
		return nil, apperrors.NotFound("reaction", id, nil).
			WithDetail("hint", "use search_reactions to find reaction ids by name")
	}
	return r, nil
}

func (s *lookupService) SearchCompounds(ctx context.Context, query string, limit int) (*CompoundSearchResult, error) {
	query, limit, err := searchArgs(query, limit)
	if err != nil {
		return nil, err
	}
	found := s.db.SearchCompounds(query, limit)
	s.logger.Debug("Compound search",
		zap.String("query", query),
		zap.Int("results", len(found)))
	if found == nil {
		found = []*biochem.Compound{}
	}
	return &CompoundSearchResult{Query: query, Count: len(found), Results: found}, nil
}

func (s *lookupService) SearchReactions(ctx context.Context, query string, limit int) (*ReactionSearchResult, error) {
	query, limit, err := searchArgs(query, limit)
	if err != nil {
		return nil, err
	}
	found := s.db.SearchReactions(query, limit)
	s.logger.Debug("Reaction search",
		zap.String("query", query),
		zap.Int("results", len(found)))
	if found == nil {
		found = []*biochem.Reaction{}
	}
	return &ReactionSearchResult{Query: query, Count: len(found), Results: found}, nil
}

func (s *lookupService) Templates(ctx context.Context) ([]template.Summary, error) {
	names := s.templates.Names()
	out := make([]template.Summary, 0, len(names))
	for _, name := range names {
		t, err := s.templates.Get(name)
		if err != nil {
			return nil, err
		}
		out = append(out, t.Summarize())
	}
	return out, nil
}

func searchArgs(query string, limit int) (string, int, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", 0, apperrors.Validation("query is required")
	}
	switch {
	case limit == 0:
		limit = DefaultSearchLimit
	case limit < 0:
		return "", 0, apperrors.Validation("limit must be positive, got %d", limit)
	case limit > MaxSearchLimit:
		limit = MaxSearchLimit
	}
	return query, limit, nil
}
