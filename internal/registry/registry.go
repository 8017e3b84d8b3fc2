// Package registry provides the process-wide lookup from provider name to
// adapter instance. The registry is constructed once at startup and passed to
// the orchestrator - there is no hidden package-level state.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/lumapay/payment-core/internal/domain/ports"
)

// Registry maps provider names to adapter instances. Write-once at startup,
// read-many afterwards.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]ports.PaymentProvider
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		providers: make(map[string]ports.PaymentProvider),
	}
}

// Register adds a provider adapter under its own name. Registration is
// idempotent: multiple entry points may each ensure providers are registered
// before first use, so a repeat registration of the same name is a no-op and
// the first adapter wins.
func (r *Registry) Register(provider ports.PaymentProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := provider.Name()
	if _, exists := r.providers[name]; exists {
		return
	}
	r.providers[name] = provider
}

// Get resolves a provider by name. An unregistered name is a configuration
// error surfaced to the caller, never a panic.
func (r *Registry) Get(name string) (ports.PaymentProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("payment provider %q is not registered", name)
	}
	return provider, nil
}

// Names returns the registered provider names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
