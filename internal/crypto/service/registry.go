package service

import (
	"fmt"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
)

// Registry holds the closed set of AEAD providers and selects among them.
//
// Providers are registered once at startup; after that the registry is
// read-only and safe for unlimited concurrent use. Default selection picks the
// highest-priority provider whose availability check passes, with ties broken
// by registration order (first registered wins).
type Registry struct {
	providers map[cryptoDomain.Algorithm]Provider
	order     []cryptoDomain.Algorithm
}

// NewRegistry creates a registry with the given providers registered in order.
func NewRegistry(providers ...Provider) (*Registry, error) {
	r := &Registry{providers: make(map[cryptoDomain.Algorithm]Provider, len(providers))}
	for _, p := range providers {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// NewDefaultRegistry creates a registry with the two reference providers:
// XChaCha20-Poly1305 (prioritized) and AES-256-GCM (guaranteed fallback).
// The personalization string domain-separates key derivation across
// deployments sharing master keys.
func NewDefaultRegistry(personalization string) (*Registry, error) {
	return NewRegistry(
		NewXChaCha20Poly1305Provider(personalization),
		NewAESGCMProvider(personalization),
	)
}

// Register adds a provider. Registering the same algorithm twice is a
// programming error and is rejected.
func (r *Registry) Register(p Provider) error {
	alg := p.Algorithm()
	if _, ok := r.providers[alg]; ok {
		return fmt.Errorf("provider already registered for algorithm %s", alg)
	}
	r.providers[alg] = p
	r.order = append(r.order, alg)
	return nil
}

// Get returns the provider registered for the algorithm. Used on decrypt to
// resolve the provider named inside an envelope; an unregistered algorithm is
// ErrUnknownAlgorithm because the envelope cannot be honoured.
func (r *Registry) Get(alg cryptoDomain.Algorithm) (Provider, error) {
	p, ok := r.providers[alg]
	if !ok {
		return nil, fmt.Errorf("%w: %s", cryptoDomain.ErrUnknownAlgorithm, alg)
	}
	return p, nil
}

// Default returns the highest-priority available provider, ties broken by
// registration order. Returns ErrNoProviderAvailable when no registered
// provider passes its availability check; callers declaring encrypted fields
// must treat that as startup-fatal via ValidateConfiguration, not discover it
// on first write.
func (r *Registry) Default() (Provider, error) {
	var best Provider
	for _, alg := range r.order {
		p := r.providers[alg]
		if !p.Available() {
			continue
		}
		if best == nil || p.Priority() > best.Priority() {
			best = p
		}
	}
	if best == nil {
		return nil, cryptoDomain.ErrNoProviderAvailable
	}
	return best, nil
}

// Algorithms returns the registered algorithm identifiers in registration order.
func (r *Registry) Algorithms() []cryptoDomain.Algorithm {
	out := make([]cryptoDomain.Algorithm, len(r.order))
	copy(out, r.order)
	return out
}
