// Package faultline is a fault-injection proxy framework for services
// resolved from a dependency injection container. It wraps an interface
// implementation in a proxy that is indistinguishable from the real
// service to its callers, and perturbs calls on demand: fail them, delay
// them, or rewrite their results, without touching the implementation or
// the code under test.
//
// # Overview
//
// faultline provides:
//   - Per-method invocation counting, exact under concurrency
//   - Trigger predicates: AfterCalls (persistent), EveryCalls
//     (intermittent), OnCall (one-shot), or custom pure predicates
//   - Fault effects: Throw, Delay, and Transform
//   - Registration-time validation of every policy
//   - A synchronous (Call) and an asynchronous (Async/Future) calling
//     convention sharing one pipeline
//   - Container integration: a Registry that installs proxies into a
//     dig container via decorators
//   - Declarative YAML fault plans
//   - Optional slog logging, Prometheus metrics, and OpenTelemetry spans
//
// # Policies
//
// A policy binds a method selector, a trigger, and an effect:
//
//	boom := faultline.Bind[UserDirectory]("Lookup").
//	    Trigger(faultline.AfterCalls(2)).
//	    Effect(faultline.Throw(errors.New("boom")))
//
// Triggers observe a 1-based call count incremented before evaluation:
// AfterCalls(2) fires on the 2nd call and every call after it;
// EveryCalls(2) fires on calls 2, 4, 6, and so on. Multiple policies on
// one method are evaluated in registration order. The first firing Throw
// short-circuits the call; firing Delays add up; firing Transforms chain
// over the successful result.
//
// # Proxies
//
// Wrap builds the interception engine; a thin shim per interface carries
// the method set and routes calls through it:
//
//	px, err := faultline.Wrap[UserDirectory](realDirectory, boom)
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
// Function values need no shim; WrapFunc intercepts them directly.
//
// # Container Integration
//
// A Registry hands proxies to a dig container so that resolution returns
// the proxy, not the raw implementation:
//
//	registry := faultline.NewRegistry()
//	faultline.Intercept(registry, newDirectoryProxy, boom)
//
//	container := dig.New()
//	container.Provide(NewRealDirectory)
//	registry.Apply(container)
//
// # Error Handling
//
// Invalid policies — non-positive trigger counts, unknown or ambiguous
// method selectors, mapper type mismatches — fail at registration with a
// ConfigurationError, AmbiguousMethodError, or MapperMismatchError;
// nothing is deferred to call time. At call time the proxy never wraps,
// swallows, or retries anything: injected faults, failures of the wrapped
// implementation, and mapper failures all reach the caller exactly as
// raised.
package faultline
