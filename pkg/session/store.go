// Package session holds the models, media and cached validation artifacts of
// one server session. Nothing is persisted.
package session

import (
	"fmt"
	"sort"
	"sync"

	"github.com/patrickmn/go-cache"

	"github.com/ekaya-inc/ekaya-gem/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-gem/pkg/modelid"
	"github.com/ekaya-inc/ekaya-gem/pkg/models"
)

// Store is the session-scoped state. Stored values are shared and must be
// treated as read-only; callers copy before mutating.
type Store interface {
	InsertModel(m *models.Model) error
	GetModel(id string) (*models.Model, error)
	ListModels(filter modelid.State) []*models.Model
	// DeleteModel removes the model and its cached test conditions.
	// It reports whether an artifact was removed as well.
	DeleteModel(id string) (bool, error)

	PutTestConditions(modelID string, tc *models.TestConditions)
	TestConditions(modelID string) (*models.TestConditions, bool)
	// LineageTestConditions returns the artifact of modelID or of the closest
	// ancestor reachable through DerivedFrom, together with the owning id.
	LineageTestConditions(modelID string) (*models.TestConditions, string, bool)

	InsertMedia(m *models.Media) error
	GetMedia(id string) (*models.Media, error)
	ListMedia() []*models.Media
	DeleteMedia(id string) error

	ModelCount() int
	MediaCount() int
}

type store struct {
	// mu serialises multi-key mutations; single-key reads go straight to the caches.
	mu        sync.Mutex
	models    *cache.Cache
	media     *cache.Cache
	artifacts *cache.Cache
}

// NewStore creates an empty in-memory session store.
func NewStore() Store {
	return &store{
		models:    cache.New(cache.NoExpiration, 0),
		media:     cache.New(cache.NoExpiration, 0),
		artifacts: cache.New(cache.NoExpiration, 0),
	}
}

var _ Store = (*store)(nil)

func (s *store) InsertModel(m *models.Model) error {
	if m == nil || m.ID == "" {
		return apperrors.Validation("model id is required")
	}
	if err := s.models.Add(m.ID, m, cache.NoExpiration); err != nil {
		return apperrors.Conflict(fmt.Sprintf("model %q already exists", m.ID), false)
	}
	return nil
}

func (s *store) GetModel(id string) (*models.Model, error) {
	if v, ok := s.models.Get(id); ok {
		return v.(*models.Model), nil
	}
	return nil, apperrors.NotFound("model", id, keys(s.models))
}

func (s *store) ListModels(filter modelid.State) []*models.Model {
	var out []*models.Model
	for id, item := range s.models.Items() {
		if modelid.Matches(id, filter) {
			out = append(out, item.Object.(*models.Model))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *store) DeleteModel(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.models.Get(id); !ok {
		return false, apperrors.NotFound("model", id, keys(s.models))
	}
	key := modelid.TestConditionsKey(id)
	_, hadArtifact := s.artifacts.Get(key)
	s.models.Delete(id)
	s.artifacts.Delete(key)
	return hadArtifact, nil
}

func (s *store) PutTestConditions(modelID string, tc *models.TestConditions) {
	s.artifacts.Set(modelid.TestConditionsKey(modelID), tc, cache.NoExpiration)
}

func (s *store) TestConditions(modelID string) (*models.TestConditions, bool) {
	v, ok := s.artifacts.Get(modelid.TestConditionsKey(modelID))
	if !ok {
		return nil, false
	}
	return v.(*models.TestConditions), true
}

func (s *store) LineageTestConditions(modelID string) (*models.TestConditions, string, bool) {
	seen := make(map[string]bool)
	for id := modelID; id != "" && !seen[id]; {
		seen[id] = true
		if tc, ok := s.TestConditions(id); ok {
			return tc, id, true
		}
		v, ok := s.models.Get(id)
		if !ok {
			break
		}
		id = v.(*models.Model).DerivedFrom
	}
	return nil, "", false
}

func (s *store) InsertMedia(m *models.Media) error {
	if m == nil || m.ID == "" {
		return apperrors.Validation("media id is required")
	}
	if err := s.media.Add(m.ID, m, cache.NoExpiration); err != nil {
		return apperrors.Conflict(fmt.Sprintf("media %q already exists", m.ID), false)
	}
	return nil
}

func (s *store) GetMedia(id string) (*models.Media, error) {
	if v, ok := s.media.Get(id); ok {
		return v.(*models.Media), nil
	}
	return nil, apperrors.NotFound("media", id, keys(s.media))
}

func (s *store) ListMedia() []*models.Media {
	items := s.media.Items()
	out := make([]*models.Media, 0, len(items))
	for _, item := range items {
		out = append(out, item.Object.(*models.Media))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *store) DeleteMedia(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.media.Get(id)
	if !ok {
		return apperrors.NotFound("media", id, keys(s.media))
	}
	if v.(*models.Media).IsPredefined {
		return apperrors.Immutable(fmt.Sprintf("media %q is predefined", id))
	}
	s.media.Delete(id)
	return nil
}

func (s *store) ModelCount() int { return s.models.ItemCount() }

func (s *store) MediaCount() int { return s.media.ItemCount() }

func keys(c *cache.Cache) []string {
	items := c.Items()
	out := make([]string, 0, len(items))
	for k := range items {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
