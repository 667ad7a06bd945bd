package faultline

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/faultlineio/faultline/internal/ledger"
	"github.com/faultlineio/faultline/internal/reflection"
)

// Method identifies a method on a wrapped interface. It is the counting
// key of the invocation ledger.
type Method struct {
	Interface reflect.Type
	Name      string
}

// String formats the method as Iface.Name.
func (m Method) String() string {
	return reflection.FormatMethod(m.Interface, m.Name)
}

// InterfaceType returns the reflect.Type of interface S, the key under
// which a Registry tracks its bindings.
func InterfaceType[S any]() reflect.Type {
	return reflect.TypeOf((*S)(nil)).Elem()
}

// Proxy is the interception engine for one wrapped instance. It owns the
// wrapped target, the invocation ledger, and the ordered list of policies
// bound to the target's interface.
//
// A Proxy does not itself implement S: Go cannot synthesize an interface
// implementation at runtime, so a thin shim per interface carries the
// method set and routes every call through Call or Do. Shims are
// hand-written or generated; the pipeline semantics live here either way:
//
//	type directoryProxy struct {
//	    px *faultline.Proxy[UserDirectory]
//	}
//
//	func (p *directoryProxy) Lookup(ctx context.Context, id string) (*User, error) {
//	    return faultline.Call(p.px, ctx, "Lookup", func(ctx context.Context) (*User, error) {
//	        return p.px.Target().Lookup(ctx, id)
//	    })
//	}
//
// Multiple goroutines may invoke the same Proxy concurrently. The ledger
// is the only mutable state; policies are read-only after Wrap.
type Proxy[S any] struct {
	id     string
	target S
	iface  reflect.Type

	policies []*boundPolicy
	byMethod map[string][]*boundPolicy

	ledger ledger.Ledger[Method]
	obs    observer
}

// boundPolicy is a policy resolved against the wrapped interface's method
// set at registration time.
type boundPolicy struct {
	policy *Policy
	method *reflection.MethodInfo
}

// Wrap validates policies against interface S and returns the interception
// engine for target. Every configuration problem — unknown or ambiguous
// selectors, non-positive trigger counts, mapper type mismatches — is
// reported here, never at call time.
func Wrap[S any](target S, policies ...*Policy) (*Proxy[S], error) {
	return WrapWith(target, policies)
}

// WrapWith is Wrap with observability options.
func WrapWith[S any](target S, policies []*Policy, opts ...Option) (*Proxy[S], error) {
	iface := reflect.TypeOf((*S)(nil)).Elem()
	info, ok := reflection.Analyze(iface)
	if !ok {
		return nil, ConfigurationError{Interface: iface, Cause: ErrNotAnInterface}
	}

	tv := reflect.ValueOf(target)
	if !tv.IsValid() || (reflection.IsNilable(tv.Type()) && tv.IsNil()) {
		return nil, ConfigurationError{Interface: iface, Cause: ErrTargetNil}
	}

	p := &Proxy[S]{
		id:       uuid.NewString(),
		target:   target,
		iface:    iface,
		byMethod: make(map[string][]*boundPolicy),
		obs:      newObserver(opts...),
	}

	for _, pol := range policies {
		if pol == nil {
			return nil, ConfigurationError{Interface: iface, Cause: ErrPolicyNil}
		}
		mi, err := pol.resolve(iface, info)
		if err != nil {
			return nil, err
		}
		bp := &boundPolicy{policy: pol, method: mi}
		p.policies = append(p.policies, bp)
		p.byMethod[mi.Name] = append(p.byMethod[mi.Name], bp)
	}

	return p, nil
}

// ID returns the unique ID of this proxy instance.
func (p *Proxy[S]) ID() string { return p.id }

// Target returns the wrapped instance. Shims use it to forward calls; it
// must not be handed to callers of the proxy.
func (p *Proxy[S]) Target() S { return p.target }

// Calls returns the current invocation count for a method of this proxy.
func (p *Proxy[S]) Calls(method string) uint64 {
	return p.ledger.Count(Method{Interface: p.iface, Name: method})
}

// Counts returns a snapshot of all invocation counters.
func (p *Proxy[S]) Counts() map[Method]uint64 {
	return p.ledger.Snapshot()
}

// Do runs the interception pipeline for one call to the named method:
// count the call, evaluate the policies bound to the method in
// registration order, raise the first firing Throw without invoking the
// target, otherwise wait out the sum of firing delays, invoke forward
// exactly once, and chain firing transforms over a successful result.
//
// Calls to methods with no bound policies forward directly; the ledger
// increment is the only overhead.
func (p *Proxy[S]) Do(ctx context.Context, method string, forward func(context.Context) (any, error)) (any, error) {
	key := Method{Interface: p.iface, Name: method}
	count := p.ledger.Increment(key)

	bound := p.byMethod[method]
	if len(bound) == 0 {
		return forward(ctx)
	}

	ctx, finish := p.obs.begin(ctx, p.id, key, count)

	firing := firingPolicies(bound, count)

	// A firing Throw terminates the call before the target is reached.
	for _, bp := range firing {
		if bp.policy.effect.kind == effectThrow {
			err := bp.policy.effect.throwErr
			p.obs.fired(ctx, p.id, key, count, bp.policy)
			finish(err)
			return nil, err
		}
	}

	var wait time.Duration
	for _, bp := range firing {
		if bp.policy.effect.kind == effectDelay {
			wait += bp.policy.effect.delay
			p.obs.fired(ctx, p.id, key, count, bp.policy)
		}
	}
	if wait > 0 {
		p.obs.delayed(key, wait)
		if err := sleep(ctx, wait); err != nil {
			finish(err)
			return nil, err
		}
	}

	result, err := forward(ctx)
	if err != nil {
		// The target's own failure propagates unchanged; no transform runs.
		finish(err)
		return nil, err
	}

	for _, bp := range firing {
		if bp.policy.effect.kind != effectTransform {
			continue
		}
		p.obs.fired(ctx, p.id, key, count, bp.policy)
		result, err = bp.policy.effect.transform(result)
		if err != nil {
			finish(err)
			return nil, err
		}
	}

	finish(nil)
	return result, nil
}

// Call is the typed form of Do used by interface shims.
func Call[T any, S any](p *Proxy[S], ctx context.Context, method string, forward func(context.Context) (T, error)) (T, error) {
	result, err := p.Do(ctx, method, func(ctx context.Context) (any, error) {
		return forward(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	if result == nil {
		var zero T
		return zero, nil
	}

	typed, ok := result.(T)
	if !ok {
		// Only reachable through a mapper that was validated against a
		// different method; resolve should have rejected it.
		var zero T
		return zero, fmt.Errorf("transform produced %T, method %s returns %T", result, method, zero)
	}
	return typed, nil
}

// CallErr is Do for methods that return only an error.
func CallErr[S any](p *Proxy[S], ctx context.Context, method string, forward func(context.Context) error) error {
	_, err := p.Do(ctx, method, func(ctx context.Context) (any, error) {
		return nil, forward(ctx)
	})
	return err
}

// firingPolicies evaluates every bound policy's trigger against the call
// count and returns the firing ones in registration order.
func firingPolicies(bound []*boundPolicy, count uint64) []*boundPolicy {
	var firing []*boundPolicy
	for _, bp := range bound {
		if bp.policy.trigger.Fires(count) {
			firing = append(firing, bp)
		}
	}
	return firing
}

// sleep waits for d, honoring cancellation. It holds no locks, so delayed
// calls never block the ledger or other in-flight calls.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
