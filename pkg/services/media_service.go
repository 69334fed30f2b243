package services

import (
	"context"
	_ "embed"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-gem/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-gem/pkg/modelid"
	"github.com/ekaya-inc/ekaya-gem/pkg/models"
	"github.com/ekaya-inc/ekaya-gem/pkg/session"
)

//go:embed data/media.yaml
var predefinedMediaYAML []byte

// BuildMediaRequest creates a user-defined medium.
type BuildMediaRequest struct {
	Name        string
	Description string
	Compounds   map[string]models.Bound
}

// MediaSummary is the listing view of a medium.
type MediaSummary struct {
	ID           string `json:"id"`
	Name         string `json:"name,omitempty"`
	Compounds    int    `json:"compound_count"`
	IsPredefined bool   `json:"is_predefined"`
}

// MediaDetail is the full view of a medium.
type MediaDetail struct {
	MediaSummary
	Description string                  `json:"description,omitempty"`
	Bounds      map[string]models.Bound `json:"bounds"`
	// UptakeCompounds lists compounds with a negative lower bound.
	UptakeCompounds []string  `json:"uptake_compounds"`
	CreatedAt       time.Time `json:"created_at"`
}

// MediaService manages growth media in the session store.
type MediaService interface {
	// LoadPredefined inserts the built-in media. It returns the number loaded.
	LoadPredefined() (int, error)
	// Build validates and stores a new medium named req.Name.
	Build(ctx context.Context, req BuildMediaRequest) (*MediaDetail, error)
	Get(ctx context.Context, id string) (*MediaDetail, error)
	List(ctx context.Context) ([]*MediaSummary, error)
	// Delete removes a user-defined medium. Predefined media are immutable.
	Delete(ctx context.Context, id string) error
}

type mediaService struct {
	store  session.Store
	logger *zap.Logger
}

// NewMediaService creates a media service over store.
func NewMediaService(store session.Store, logger *zap.Logger) MediaService {
	return &mediaService{
		store:  store,
		logger: logger.Named("media"),
	}
}

var _ MediaService = (*mediaService)(nil)

func (s *mediaService) LoadPredefined() (int, error) {
	media, err := parseMedia(predefinedMediaYAML)
	if err != nil {
		return 0, fmt.Errorf("failed to parse predefined media: %w", err)
	}
	for _, m := range media {
		m.IsPredefined = true
		m.CreatedAt = time.Now().UTC()
		if err := s.store.InsertMedia(m); err != nil {
			return 0, fmt.Errorf("failed to load predefined media %s: %w", m.ID, err)
		}
	}
	s.logger.Info("Loaded predefined media", zap.Int("count", len(media)))
	return len(media), nil
}

func parseMedia(data []byte) ([]*models.Media, error) {
	var media []*models.Media
	if err := yaml.Unmarshal(data, &media); err != nil {
		return nil, err
	}
	for _, m := range media {
		if m.ID == "" {
			return nil, fmt.Errorf("media id is required")
		}
		if m.Bounds == nil {
			m.Bounds = make(map[string]models.Bound)
		}
		if err := validateBounds(m.Bounds); err != nil {
			return nil, fmt.Errorf("media %s: %w", m.ID, err)
		}
	}
	return media, nil
}

func (s *mediaService) Build(ctx context.Context, req BuildMediaRequest) (*MediaDetail, error) {
	name := strings.TrimSpace(req.Name)
	if err := modelid.ValidateName(name); err != nil {
		return nil, err
	}
	if len(req.Compounds) == 0 {
		return nil, apperrors.Validation("at least one compound is required")
	}
	bounds := make(map[string]models.Bound, len(req.Compounds))
	for cpd, b := range req.Compounds {
		cpd = strings.TrimSpace(cpd)
		if cpd == "" {
			return nil, apperrors.Validation("compound ids must not be empty")
		}
		bounds[cpd] = b
	}
	if err := validateBounds(bounds); err != nil {
		return nil, err
	}

	media := &models.Media{
		ID:          name,
		Name:        name,
		Description: req.Description,
		Bounds:      bounds,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.InsertMedia(media); err != nil {
		return nil, err
	}

	s.logger.Info("Built media",
		zap.String("media_id", media.ID),
		zap.Int("compounds", len(bounds)))
	return mediaDetail(media), nil
}

func validateBounds(bounds map[string]models.Bound) error {
	for cpd, b := range bounds {
		if math.IsNaN(b.Lower) || math.IsNaN(b.Upper) {
			return apperrors.Validation("compound %s: bounds must be numbers", cpd)
		}
		if b.Lower > b.Upper {
			return apperrors.Validation("compound %s: lower bound %g exceeds upper bound %g", cpd, b.Lower, b.Upper)
		}
	}
	return nil
}

func (s *mediaService) Get(ctx context.Context, id string) (*MediaDetail, error) {
	media, err := s.store.GetMedia(id)
	if err != nil {
		return nil, err
	}
	return mediaDetail(media), nil
}

func (s *mediaService) List(ctx context.Context) ([]*MediaSummary, error) {
	all := s.store.ListMedia()
	out := make([]*MediaSummary, len(all))
	for i, m := range all {
		out[i] = mediaSummary(m)
	}
	return out, nil
}

func (s *mediaService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteMedia(id); err != nil {
		return err
	}
	s.logger.Info("Deleted media", zap.String("media_id", id))
	return nil
}

func mediaSummary(m *models.Media) *MediaSummary {
	return &MediaSummary{
		ID:           m.ID,
		Name:         m.Name,
		Compounds:    len(m.Bounds),
		IsPredefined: m.IsPredefined,
	}
}

func mediaDetail(m *models.Media) *MediaDetail {
	d := &MediaDetail{
		MediaSummary:    *mediaSummary(m),
		Description:     m.Description,
		Bounds:          m.Copy().Bounds,
		UptakeCompounds: []string{},
		CreatedAt:       m.CreatedAt,
	}
	for _, cpd := range m.CompoundIDs() {
		if m.Bounds[cpd].Lower < 0 {
			d.UptakeCompounds = append(d.UptakeCompounds, cpd)
		}
	}
	return d
}
