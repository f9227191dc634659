package merge

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// Factory creates a zero-state branch of one kind, ready for LoadStateDict.
type Factory func() Branch

// Registry maps kind tags to branch factories. It is used to rebuild a
// heterogeneous branch collection from a saved file.
//
// Registry is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory for kind.
func (r *Registry) Register(kind string, factory Factory) error {
	if kind == "" {
		return errors.Wrap(ErrInvalidConfiguration, "register: empty kind")
	}
	if factory == nil {
		return errors.Wrapf(ErrInvalidConfiguration, "register %q: nil factory", kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.factories[kind]; ok {
		return errors.Wrapf(ErrDuplicateKind, "%q", kind)
	}
	r.factories[kind] = factory
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(kind string, factory Factory) {
	if err := r.Register(kind, factory); err != nil {
		panic(err)
	}
}

// New creates a branch of the given kind.
func (r *Registry) New(kind string) (Branch, error) {
	r.mu.RLock()
	factory, ok := r.factories[kind]
	r.mu.RUnlock()

	if !ok {
		return nil, errors.Wrapf(ErrUnknownKind, "%q", kind)
	}
	return factory(), nil
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.factories))
	for kind := range r.factories {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}
