package appliance

import (
	"fmt"
	"sync"
)

// Registry holds the appliances of a service keyed by id.
type Registry struct {
	mu    sync.RWMutex
	items map[string]*Appliance
	order []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{items: map[string]*Appliance{}}
}

// Add registers a. Ids must be unique.
func (r *Registry) Add(a *Appliance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[a.ID()]; ok {
		return fmt.Errorf("appliance %s already registered", a.ID())
	}
	r.items[a.ID()] = a
	r.order = append(r.order, a.ID())
	return nil
}

// Get returns the appliance with the given id.
func (r *Registry) Get(id string) (*Appliance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAppliance, id)
	}
	return a, nil
}

// All returns the appliances in registration order.
func (r *Registry) All() []*Appliance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]*Appliance, 0, len(r.order))
	for _, id := range r.order {
		res = append(res, r.items[id])
	}
	return res
}
