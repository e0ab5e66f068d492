// Package blocks defines the registry that maps configured block types to
// constructors, the construction environment handed to every block, and the
// format templates blocks share. Concrete blocks live in sub-packages
// (e.g., pkg/blocks/clock) and are registered at startup.
package blocks

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"gitlab.com/tinyland/lab/status-pulse/pkg/bar"
	"gitlab.com/tinyland/lab/status-pulse/pkg/config"
)

// Factory builds a block from its environment. Returning an error aborts
// startup with a configuration error.
type Factory func(env Env) (bar.Block, error)

// Registry manages a set of named block factories. It is safe for
// concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry ready for factory registration.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory for a block type. It returns an error if the
// type is already registered.
func (r *Registry) Register(typ string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[typ]; exists {
		return fmt.Errorf("block type %q already registered", typ)
	}
	r.factories[typ] = f
	return nil
}

// Get returns the factory for a block type, or false if not found.
func (r *Registry) Get(typ string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.factories[typ]
	return f, ok
}

// List returns a sorted slice of all registered block types.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build constructs every configured block, in order, and adds it to sched.
// Errors are *bar.ConfigurationError naming the offending block.
func (r *Registry) Build(sched *bar.Scheduler, cfgs []config.BlockConfig, shared bar.Shared, logger *slog.Logger) error {
	for _, bc := range cfgs {
		id := bar.Identity{Name: bc.Type, Instance: bc.Instance}

		f, ok := r.Get(bc.Type)
		if !ok {
			return &bar.ConfigurationError{
				Block: id.String(),
				Err:   fmt.Errorf("unknown block type %q (available: %v)", bc.Type, r.List()),
			}
		}

		env := Env{
			ID:     id,
			Fields: bc.Fields,
			Shared: shared,
			Waker:  sched.Waker(id),
			Logger: logger.With("block", id.String()),
		}
		b, err := f(env)
		if err != nil {
			return &bar.ConfigurationError{Block: id.String(), Err: err}
		}
		if err := sched.Add(id, b, bc.Signal); err != nil {
			return err
		}
	}
	return nil
}
