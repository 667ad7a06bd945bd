package faultline

import (
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/dig"

	"github.com/faultlineio/faultline/internal/reflection"
)

// Registry accumulates fault policies per interface and installs the
// resulting proxies into a dig container, so that resolving a bound
// interface hands callers the proxy instead of the raw implementation.
//
// Configure a Registry before building the container; it is safe for
// concurrent registration but is typically filled from one goroutine
// during wiring.
type Registry struct {
	mu       sync.Mutex
	opts     []Option
	order    []reflect.Type
	bindings map[reflect.Type]*registryBinding
}

type registryBinding struct {
	policies []*Policy
	decorate any // func(S) (S, error), consumed by dig.Decorate
}

// NewRegistry creates an empty Registry. The options are applied to every
// proxy the registry creates.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{
		opts:     opts,
		bindings: make(map[reflect.Type]*registryBinding),
	}
}

// Intercept records policies for interface S and the shim constructor that
// turns a proxy engine into an implementation of S. Policies are validated
// here, at registration time: an invalid policy fails the binding before
// the container is ever built.
//
// Calling Intercept again for the same interface appends policies in
// registration order; the shim from the most recent call is used.
func Intercept[S any](r *Registry, shim func(*Proxy[S]) S, policies ...*Policy) error {
	iface := reflect.TypeOf((*S)(nil)).Elem()
	info, ok := reflection.Analyze(iface)
	if !ok {
		return ConfigurationError{Interface: iface, Cause: ErrNotAnInterface}
	}
	if shim == nil {
		return ConfigurationError{Interface: iface, Cause: fmt.Errorf("shim constructor cannot be nil")}
	}

	for _, pol := range policies {
		if pol == nil {
			return ConfigurationError{Interface: iface, Cause: ErrPolicyNil}
		}
		if _, err := pol.resolve(iface, info); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bindings[iface]
	if !ok {
		b = &registryBinding{}
		r.bindings[iface] = b
		r.order = append(r.order, iface)
	}
	b.policies = append(b.policies, policies...)

	bound := b
	b.decorate = func(inner S) (S, error) {
		px, err := WrapWith(inner, bound.policies, r.opts...)
		if err != nil {
			var zero S
			return zero, err
		}
		return shim(px), nil
	}

	return nil
}

// Policies returns the policies bound for an interface type, in
// registration order.
func (r *Registry) Policies(iface reflect.Type) []*Policy {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bindings[iface]
	if !ok {
		return nil
	}
	out := make([]*Policy, len(b.policies))
	copy(out, b.policies)
	return out
}

// decorator is the Decorate surface shared by dig.Container and dig.Scope.
type decorator interface {
	Decorate(f any, opts ...dig.DecorateOption) error
}

// Apply installs one decorator per bound interface into the container.
// After Apply, resolving a bound interface from c (or any scope derived
// from it) yields the interception proxy.
func (r *Registry) Apply(c *dig.Container) error {
	return r.install(c)
}

// ApplyScope installs the proxies into a single dig scope, leaving
// instances resolved from other scopes untouched.
func (r *Registry) ApplyScope(s *dig.Scope) error {
	return r.install(s)
}

func (r *Registry) install(d decorator) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, iface := range r.order {
		if err := d.Decorate(r.bindings[iface].decorate); err != nil {
			return ConfigurationError{
				Interface: iface,
				Cause:     fmt.Errorf("container decoration failed: %w", err),
			}
		}
	}
	return nil
}
