package oauthkit

import (
	"context"
	"sort"
	"sync"

	"github.com/dpup/oauthkit/errors"
)

// Registry maps client names to configured clients. Register during startup;
// Resolve is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	clients map[ClientName]Client
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[ClientName]Client)}
}

// Register adds c under name. Registering a name twice is an error, even with
// the same client.
func (r *Registry) Register(name ClientName, c Client) error {
	if name.Provider == "" {
		return errors.WrapPrefix(ErrInvalidConfig, "registry: provider name is required", 0)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.clients[name]; exists {
		return errors.WrapPrefix(ErrDuplicateProvider, "registry: "+name.String(), 0)
	}
	r.clients[name] = c
	return nil
}

// Add registers c under its own name.
func (r *Registry) Add(c Client) error {
	return r.Register(c.Name(), c)
}

// Resolve returns the client registered under name.
func (r *Registry) Resolve(name ClientName) (Client, error) {
	r.mu.RLock()
	c, ok := r.clients[name]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.WrapPrefix(ErrClientNotRegistered, "registry: "+name.String(), 0)
	}
	return c, nil
}

// Names lists registered names sorted by group then provider.
func (r *Registry) Names() []ClientName {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]ClientName, 0, len(r.clients))
	for n := range r.clients {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		if names[i].Group == names[j].Group {
			return names[i].Provider < names[j].Provider
		}
		return names[i].Group < names[j].Group
	})
	return names
}

// Len returns the number of registered clients.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

type registryKey struct{}

// WithRegistry attaches a registry to the context.
func WithRegistry(ctx context.Context, r *Registry) context.Context {
	return context.WithValue(ctx, registryKey{}, r)
}

// RegistryFromContext returns the registry attached to ctx, or nil.
func RegistryFromContext(ctx context.Context) *Registry {
	r, _ := ctx.Value(registryKey{}).(*Registry)
	return r
}
