package faultline

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/faultlineio/faultline/internal/reflection"
)

// ========================================
// Core Error Values (Sentinel Errors)
// ========================================
// These are base errors that are wrapped in typed errors when returned.
// Faults injected by a Throw effect, failures from the wrapped
// implementation, and mapper failures are NOT part of this taxonomy: the
// proxy surfaces those bit-exact, never wrapped.

var (
	// Registration errors.
	ErrTargetNil        = errors.New("wrap target cannot be nil")
	ErrNotAnInterface   = errors.New("type parameter must be an interface type")
	ErrNoSuchMethod     = errors.New("method not found on interface")
	ErrPolicyNil        = errors.New("policy cannot be nil")
	ErrTriggerMissing   = errors.New("policy has no trigger")
	ErrEffectMissing    = errors.New("policy has no effect")
	ErrNonPositiveCalls = errors.New("trigger call count must be positive")
	ErrNegativeDelay    = errors.New("delay duration cannot be negative")
	ErrThrowNil         = errors.New("throw effect requires a non-nil error")

	// Fault plan errors.
	ErrUnknownError  = errors.New("error value not registered with the plan resolver")
	ErrUnknownMapper = errors.New("mapper not registered with the plan resolver")
)

var (
	_ error = ConfigurationError{}
	_ error = AmbiguousMethodError{}
	_ error = MapperMismatchError{}
	_ error = PlanError{}
)

// ConfigurationError indicates an invalid policy definition. It is raised
// at registration time, never deferred to call time.
type ConfigurationError struct {
	Interface reflect.Type // nil for function policies
	Method    string
	Cause     error
}

func (e ConfigurationError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("invalid fault policy: %v", e.Cause)
	}
	return fmt.Sprintf("invalid fault policy for %s: %v",
		reflection.FormatMethod(e.Interface, e.Method), e.Cause)
}

func (e ConfigurationError) Unwrap() error {
	return e.Cause
}

// AmbiguousMethodError indicates a method selector matched more than one
// method, so the policy cannot be bound.
type AmbiguousMethodError struct {
	Interface reflect.Type
	Selector  string
	Matched   []string
}

func (e AmbiguousMethodError) Error() string {
	return fmt.Sprintf("ambiguous method selector %q on %s: matches %s",
		e.Selector, reflection.FormatType(e.Interface), strings.Join(e.Matched, ", "))
}

// MapperMismatchError indicates a Transform mapper whose signature does not
// fit the target method's result type. Mappers must be func(T) T or
// func(T) (T, error) where T is the method's first non-error return.
type MapperMismatchError struct {
	Interface reflect.Type
	Method    string
	Mapper    reflect.Type
	Result    reflect.Type
}

func (e MapperMismatchError) Error() string {
	if e.Result == nil {
		return fmt.Sprintf("transform mapper %s bound to %s, which has no transformable result",
			reflection.FormatType(e.Mapper), reflection.FormatMethod(e.Interface, e.Method))
	}
	return fmt.Sprintf("transform mapper %s does not fit %s: want func(%s) %s or func(%s) (%s, error)",
		reflection.FormatType(e.Mapper), reflection.FormatMethod(e.Interface, e.Method),
		reflection.FormatType(e.Result), reflection.FormatType(e.Result),
		reflection.FormatType(e.Result), reflection.FormatType(e.Result))
}

// PlanError wraps a failure in one entry of a declarative fault plan.
type PlanError struct {
	Index     int    // position of the entry in the plan
	Interface string // interface name as written in the plan
	Method    string
	Cause     error
}

func (e PlanError) Error() string {
	return fmt.Sprintf("fault plan entry %d (%s.%s): %v", e.Index, e.Interface, e.Method, e.Cause)
}

func (e PlanError) Unwrap() error {
	return e.Cause
}

// IsConfiguration reports whether err is (or wraps) a policy configuration
// failure.
func IsConfiguration(err error) bool {
	var ce ConfigurationError
	if errors.As(err, &ce) {
		return true
	}
	var ae AmbiguousMethodError
	return errors.As(err, &ae)
}
