// Package registry provides a process-wide class registry: a mapping from
// (category, name) to a registered implementation, populated at startup and
// consulted by link nodes during configuration loading.
package registry

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// CategoryGeneral is the fallback category consulted when a name is not
// found under its primary category.
const CategoryGeneral = "general"

// Common categories. Callers may use any category string; these exist so
// registration and lookup sites agree on spelling.
const (
	CategoryOptimizer   = "optimizer"
	CategoryLRScheduler = "lr_scheduler"
	CategoryLoss        = "loss"
	CategoryCallback    = "callback"
	CategoryPipeStep    = "pipe_step"
)

// Registry maps (category, name) pairs to implementations. It is designed
// to be populated during startup and read afterwards; registration is
// append-only.
type Registry struct {
	mu      sync.RWMutex
	classes map[string]map[string]any
	logger  *zap.Logger
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		classes: make(map[string]map[string]any),
		logger:  zap.NewNop(),
	}
}

// SetLogger installs a logger for registration events. Nil is ignored.
func (r *Registry) SetLogger(l *zap.Logger) {
	if l != nil {
		r.logger = l
	}
}

// Register adds an implementation under a category and name. Registering
// the same pair twice is an error.
func (r *Registry) Register(category, name string, impl any) error {
	if category == "" || name == "" {
		return fmt.Errorf("registry category and name must be non-empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.classes[category][name]; exists {
		return fmt.Errorf("class %s already registered under category %s", name, category)
	}

	if r.classes[category] == nil {
		r.classes[category] = make(map[string]any)
	}
	r.classes[category][name] = impl

	r.logger.Info("class registered",
		zap.String("category", category),
		zap.String("name", name),
	)
	return nil
}

// MustRegister is like Register but panics on error. Intended for
// package-level registration in init functions.
func (r *Registry) MustRegister(category, name string, impl any) {
	if err := r.Register(category, name, impl); err != nil {
		panic(err)
	}
}

// Lookup returns the implementation registered under (category, name).
// When the primary category misses, the general category is consulted as a
// fallback.
func (r *Registry) Lookup(category, name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if impl, ok := r.classes[category][name]; ok {
		return impl, true
	}
	if category != CategoryGeneral {
		if impl, ok := r.classes[CategoryGeneral][name]; ok {
			return impl, true
		}
	}
	return nil, false
}

// Has reports whether (category, name) resolves, including the fallback.
func (r *Registry) Has(category, name string) bool {
	_, ok := r.Lookup(category, name)
	return ok
}

// List returns the names registered under a category.
func (r *Registry) List(category string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.classes[category]))
	for name := range r.classes[category] {
		names = append(names, name)
	}
	return names
}

// Categories returns all categories with at least one registration.
func (r *Registry) Categories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	categories := make([]string, 0, len(r.classes))
	for category := range r.classes {
		categories = append(categories, category)
	}
	return categories
}

// Clear removes all registrations (mainly for tests).
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classes = make(map[string]map[string]any)
}

// defaultRegistry is the process-wide instance used by the package-level
// helpers.
var defaultRegistry = New()

// Default returns the process-wide registry instance.
func Default() *Registry {
	return defaultRegistry
}

// Register adds an implementation to the default registry.
func Register(category, name string, impl any) error {
	return defaultRegistry.Register(category, name, impl)
}

// MustRegister adds an implementation to the default registry, panicking
// on error.
func MustRegister(category, name string, impl any) {
	defaultRegistry.MustRegister(category, name, impl)
}

// Lookup consults the default registry.
func Lookup(category, name string) (any, bool) {
	return defaultRegistry.Lookup(category, name)
}

// Has consults the default registry.
func Has(category, name string) bool {
	return defaultRegistry.Has(category, name)
}
