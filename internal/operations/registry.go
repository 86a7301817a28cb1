package operations

import (
	"fmt"
	"strings"
	"sync"
)

// Registry holds dataset specs by name in registration order
type Registry struct {
	mu       sync.RWMutex
	datasets map[string]DatasetSpec
	order    []string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		datasets: make(map[string]DatasetSpec),
		order:    make([]string, 0),
	}
}

// Register validates spec and adds it under its name
func (r *Registry) Register(spec DatasetSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.datasets[spec.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDatasetExists, spec.Name)
	}
	r.datasets[spec.Name] = spec
	r.order = append(r.order, spec.Name)
	return nil
}

// Get retrieves a dataset by name
func (r *Registry) Get(name string) (DatasetSpec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	spec, exists := r.datasets[name]
	if !exists {
		return DatasetSpec{}, fmt.Errorf("%w: %s", ErrDatasetNotFound, name)
	}
	return spec, nil
}

// Has checks if a dataset is registered
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.datasets[name]
	return exists
}

// List returns all datasets in registration order
func (r *Registry) List() []DatasetSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]DatasetSpec, 0, len(r.order))
	for _, name := range r.order {
		specs = append(specs, r.datasets[name])
	}
	return specs
}

// Names returns all registered names in registration order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Count returns the number of registered datasets
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.datasets)
}

// Select returns the named datasets in the order given. No names selects
// every dataset. Unknown names are reported together.
func (r *Registry) Select(names ...string) ([]DatasetSpec, error) {
	if len(names) == 0 {
		return r.List(), nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]DatasetSpec, 0, len(names))
	var unknown []string
	for _, name := range names {
		spec, exists := r.datasets[name]
		if !exists {
			unknown = append(unknown, name)
			continue
		}
		specs = append(specs, spec)
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, strings.Join(unknown, ", "))
	}
	return specs, nil
}
