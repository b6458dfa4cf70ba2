package payment

import (
	"sync"

	"github.com/bellecare/server/internal/module/payment/provider"
)

// ProviderRegistry manages the configured payment providers.
type ProviderRegistry struct {
	mu       sync.RWMutex
	redirect map[string]provider.RedirectProvider
	local    map[string]provider.LocalPaymentProvider
}

// NewProviderRegistry creates a new provider registry.
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		redirect: make(map[string]provider.RedirectProvider),
		local:    make(map[string]provider.LocalPaymentProvider),
	}
}

// Register registers a provider under the integration patterns it supports.
func (r *ProviderRegistry) Register(p provider.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rp, ok := p.(provider.RedirectProvider); ok {
		r.redirect[p.Name()] = rp
	}
	if lp, ok := p.(provider.LocalPaymentProvider); ok {
		r.local[p.Name()] = lp
	}
}

// Redirect returns the redirect-pattern provider with the given name.
func (r *ProviderRegistry) Redirect(name string) (provider.RedirectProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.redirect[name]
	if !ok {
		return nil, ErrProviderNotRegistered
	}
	return p, nil
}

// Local returns the local-payment provider with the given name.
func (r *ProviderRegistry) Local(name string) (provider.LocalPaymentProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.local[name]
	if !ok {
		return nil, ErrProviderNotRegistered
	}
	return p, nil
}

// List returns all registered provider names.
func (r *ProviderRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool)
	var names []string
	for name := range r.redirect {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for name := range r.local {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}
