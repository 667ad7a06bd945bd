package faultline

import (
	"fmt"
	"reflect"
	"time"

	"github.com/faultlineio/faultline/internal/reflection"
)

type effectKind int

const (
	effectNone effectKind = iota
	effectThrow
	effectDelay
	effectTransform
)

// Effect is the perturbation a policy applies when its trigger fires:
// raise a configured error, add wall-clock latency, or rewrite the
// successful result. Effects are immutable values; invalid payloads are
// reported when the policy is registered.
type Effect struct {
	kind     effectKind
	throwErr error
	delay    time.Duration
	mapper   reflect.Value
	err      error
}

// Throw returns an effect that raises err and short-circuits the call:
// the wrapped implementation is never invoked. The error surfaces through
// the call's native failure channel exactly as configured, never wrapped.
func Throw(err error) Effect {
	if err == nil {
		return Effect{kind: effectThrow, err: ErrThrowNil}
	}
	return Effect{kind: effectThrow, throwErr: err}
}

// Delay returns an effect that suspends completion of the call by d.
// The wrapped implementation still runs exactly once; only the caller's
// observation of the result is delayed. Delays from multiple firing
// policies compose additively.
//
// Binding a delay to a context-taking method requires an error return:
// the delay honors cancellation, and cancellation must surface as a
// failure, never as a zero-valued success.
func Delay(d time.Duration) Effect {
	if d < 0 {
		return Effect{kind: effectDelay, err: fmt.Errorf("%w: got %v", ErrNegativeDelay, d)}
	}
	return Effect{kind: effectDelay, delay: d}
}

// Transform returns an effect that maps the wrapped call's successful
// result through mapper before it reaches the caller. mapper must be
// func(T) T or func(T) (T, error), where T is the target method's first
// non-error return type; anything else is a MapperMismatchError at
// registration time.
//
// A transform never runs when the wrapped call failed, and is skipped
// (identity passthrough) when the successful result is nil. A mapper
// failure propagates to the caller on the call's error channel.
func Transform(mapper any) Effect {
	if mapper == nil {
		return Effect{kind: effectTransform, err: fmt.Errorf("transform mapper cannot be nil")}
	}
	v := reflect.ValueOf(mapper)
	if v.Kind() != reflect.Func {
		return Effect{kind: effectTransform, err: fmt.Errorf("transform mapper must be a func, got %T", mapper)}
	}
	return Effect{kind: effectTransform, mapper: v}
}

// Kind describes the effect for logs, metrics, and error messages.
func (e Effect) Kind() string {
	switch e.kind {
	case effectThrow:
		return "throw"
	case effectDelay:
		return "delay"
	case effectTransform:
		return "transform"
	default:
		return "none"
	}
}

// String describes the effect and its payload.
func (e Effect) String() string {
	switch e.kind {
	case effectThrow:
		return fmt.Sprintf("throw(%v)", e.throwErr)
	case effectDelay:
		return fmt.Sprintf("delay(%v)", e.delay)
	case effectTransform:
		return "transform"
	default:
		return "none"
	}
}

// validate checks the effect payload against the method it is bound to.
// mi may describe an interface method or a wrapped function.
func (e Effect) validate(iface reflect.Type, method string, mi *reflection.MethodInfo) error {
	if e.err != nil {
		return e.err
	}

	switch e.kind {
	case effectNone:
		return ErrEffectMissing
	case effectDelay:
		// A context-taking method can have its delay cancelled; without an
		// error return the cancellation would surface as a zero value.
		if mi.CtxIndex >= 0 && !mi.HasErrorReturn {
			return fmt.Errorf("method takes a context but has no error return to surface a cancelled delay")
		}
		return nil
	case effectThrow:
		if !mi.HasErrorReturn {
			return fmt.Errorf("method has no error return to carry an injected fault")
		}
		return nil
	case effectTransform:
		mt := e.mapper.Type()
		if mi.ResultType == nil {
			return MapperMismatchError{Interface: iface, Method: method, Mapper: mt}
		}
		if !mapperFits(mt, mi.ResultType) {
			return MapperMismatchError{Interface: iface, Method: method, Mapper: mt, Result: mi.ResultType}
		}
		if mt.NumOut() == 2 && !mi.HasErrorReturn {
			return fmt.Errorf("mapper can fail but method has no error return")
		}
		return nil
	default:
		return fmt.Errorf("unknown effect kind %d", e.kind)
	}
}

// mapperFits reports whether mt is func(T) T or func(T) (T, error).
func mapperFits(mt, result reflect.Type) bool {
	if mt.NumIn() != 1 || mt.IsVariadic() {
		return false
	}
	if mt.In(0) != result {
		return false
	}
	switch mt.NumOut() {
	case 1:
		return mt.Out(0) == result
	case 2:
		return mt.Out(0) == result && mt.Out(1) == errType
	default:
		return false
	}
}

// transform applies the mapper to a successful result. The caller has
// already established that the wrapped call did not fail; a nil result is
// returned untouched.
func (e Effect) transform(result any) (any, error) {
	if isAbsent(result) {
		return result, nil
	}

	outs := e.mapper.Call([]reflect.Value{reflect.ValueOf(result)})
	if len(outs) == 2 && !outs[1].IsNil() {
		return nil, outs[1].Interface().(error)
	}
	return outs[0].Interface(), nil
}

// isAbsent reports whether a successful result carries no value.
func isAbsent(result any) bool {
	if result == nil {
		return true
	}
	v := reflect.ValueOf(result)
	return reflection.IsNilable(v.Type()) && v.IsNil()
}

var errType = reflect.TypeOf((*error)(nil)).Elem()
