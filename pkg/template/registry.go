package template

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-gem/pkg/apperrors"
)

//go:embed data/*.yaml
var builtin embed.FS

// Registry holds the templates available to reconstruction and gapfilling.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]*Template
	logger    *zap.Logger
}

// NewRegistry loads the embedded templates and, when dir is non-empty, every
// *.yaml template in dir. Directory templates may replace embedded ones.
func NewRegistry(dir string, logger *zap.Logger) (*Registry, error) {
	r := &Registry{templates: make(map[string]*Template), logger: logger.Named("templates")}

	entries, err := builtin.ReadDir("data")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded templates: %w", err)
	}
	for _, e := range entries {
		data, err := builtin.ReadFile("data/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read embedded template %s: %w", e.Name(), err)
		}
		if err := r.add(data, e.Name()); err != nil {
			return nil, err
		}
	}

	if dir != "" {
		if err := r.loadDir(dir); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) loadDir(dir string) error {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return fmt.Errorf("failed to list templates in %s: %w", dir, err)
	}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read template %s: %w", path, err)
		}
		if err := r.add(data, path); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) add(data []byte, source string) error {
	t, err := Parse(data)
	if err != nil {
		return fmt.Errorf("failed to load template %s: %w", source, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.templates[t.Name]; exists {
		r.logger.Info("Template replaced", zap.String("template", t.Name), zap.String("source", source))
	}
	r.templates[t.Name] = t
	r.logger.Debug("Template loaded",
		zap.String("template", t.Name),
		zap.Int("reactions", len(t.Reactions)),
		zap.String("source", source))
	return nil
}

// Parse decodes and validates a YAML template.
func Parse(data []byte) (*Template, error) {
	var t Template
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	t.Name = strings.TrimSpace(t.Name)
	if err := t.index(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Get returns the named template.
func (r *Registry) Get(name string) (*Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.templates[name]; ok {
		return t, nil
	}
	return nil, apperrors.NotFound("template", name, r.namesLocked())
}

// Names returns the registered template names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
