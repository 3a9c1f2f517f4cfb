package estimator

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Estimator guesses how many minutes a described task needs.
// ok=false means the estimate is unknown; err is reserved for provider failures.
type Estimator interface {
	EstimateMinutes(ctx context.Context, description string) (minutes int, ok bool, err error)
}

// Factory creates an estimator from string configuration
type Factory func(config map[string]string) (Estimator, error)

// Registry stores available estimator factories by name
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register registers an estimator factory
func (r *Registry) Register(name string, factory Factory) {
	r.factories[name] = factory
}

// Get builds the estimator registered under name
func (r *Registry) Get(name string, config map[string]string) (Estimator, error) {
	factory, ok := r.factories[name]
	if !ok {
		return nil, &ErrEstimatorNotFound{Name: name}
	}
	est, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s estimator: %w", name, err)
	}
	return est, nil
}

// Names returns the registered estimator names in sorted order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ErrEstimatorNotFound is returned when no factory is registered under a name
type ErrEstimatorNotFound struct {
	Name string
}

func (e *ErrEstimatorNotFound) Error() string {
	return "estimator not found: " + e.Name
}

// Build creates the named estimator from the default registry and, when
// cache is non-nil, wraps it in a CachedEstimator.
func Build(name string, config map[string]string, cache Cache, logger *zap.Logger) (Estimator, error) {
	registry := NewRegistry()
	RegisterDefaults(registry, logger)

	est, err := registry.Get(name, config)
	if err != nil {
		return nil, err
	}
	if cache == nil {
		return est, nil
	}
	return NewCachedEstimator(est, cache, logger), nil
}
