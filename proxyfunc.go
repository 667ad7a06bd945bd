package faultline

import (
	"context"
	"fmt"
	"reflect"

	"github.com/google/uuid"

	"github.com/faultlineio/faultline/internal/reflection"
)

// WrapFunc intercepts a plain function value through the same pipeline as
// interface methods, with no shim: the returned function has the same type
// as fn and forwards to it. The function is counted and selected under
// name, which BindFunc policies target.
//
// fn may take a context.Context anywhere in its parameters (cancellation
// of a firing delay is honored through it) and may return at most one
// non-error value plus an optional trailing error.
func WrapFunc[F any](name string, fn F, policies ...*Policy) (F, error) {
	return WrapFuncWith(name, fn, policies)
}

// WrapFuncWith is WrapFunc with observability options.
func WrapFuncWith[F any](name string, fn F, policies []*Policy, opts ...Option) (F, error) {
	var zero F

	fv := reflect.ValueOf(fn)
	if !fv.IsValid() || fv.Kind() != reflect.Func || fv.IsNil() {
		return zero, ConfigurationError{Method: name, Cause: ErrTargetNil}
	}

	ft := fv.Type()
	mi := reflection.AnalyzeFunc(name, ft)
	if err := supportedFuncShape(mi); err != nil {
		return zero, ConfigurationError{Method: name, Cause: err}
	}
	info := reflection.SingleMethod(mi)

	p := &Proxy[F]{
		id:       uuid.NewString(),
		target:   fn,
		iface:    ft,
		byMethod: make(map[string][]*boundPolicy),
		obs:      newObserver(opts...),
	}
	for _, pol := range policies {
		if pol == nil {
			return zero, ConfigurationError{Method: name, Cause: ErrPolicyNil}
		}
		resolved, err := pol.resolve(nil, info)
		if err != nil {
			return zero, err
		}
		bp := &boundPolicy{policy: pol, method: resolved}
		p.policies = append(p.policies, bp)
		p.byMethod[resolved.Name] = append(p.byMethod[resolved.Name], bp)
	}

	wrapped := reflect.MakeFunc(ft, func(args []reflect.Value) []reflect.Value {
		ctx := context.Background()
		if mi.CtxIndex >= 0 {
			ctx = args[mi.CtxIndex].Interface().(context.Context)
		}

		result, err := p.Do(ctx, name, func(ctx context.Context) (any, error) {
			call := args
			if mi.CtxIndex >= 0 {
				call = append([]reflect.Value(nil), args...)
				call[mi.CtxIndex] = reflect.ValueOf(ctx)
			}

			var outs []reflect.Value
			if ft.IsVariadic() {
				outs = fv.CallSlice(call)
			} else {
				outs = fv.Call(call)
			}
			return splitOuts(mi, outs)
		})

		return joinOuts(mi, result, err)
	})

	return wrapped.Interface().(F), nil
}

// supportedFuncShape rejects signatures the generic pipeline cannot carry.
func supportedFuncShape(mi *reflection.MethodInfo) error {
	nonError := 0
	for _, out := range mi.Out {
		if !out.Implements(errType) {
			nonError++
		}
	}
	if nonError > 1 {
		return fmt.Errorf("function returns %d non-error values, at most 1 is supported", nonError)
	}
	if len(mi.Out)-nonError > 1 {
		return fmt.Errorf("function returns more than one error value")
	}
	return nil
}

// splitOuts decomposes a reflect call's return values into the pipeline's
// (result, error) shape.
func splitOuts(mi *reflection.MethodInfo, outs []reflect.Value) (any, error) {
	var err error
	if mi.HasErrorReturn {
		if last := outs[len(outs)-1]; !last.IsNil() {
			err = last.Interface().(error)
		}
	}

	var result any
	if idx := mi.ResultIndex(); idx >= 0 {
		result = outs[idx].Interface()
	}
	return result, err
}

// joinOuts rebuilds the reflect return values from the pipeline's
// (result, error) shape, zero-filling whichever side is absent.
func joinOuts(mi *reflection.MethodInfo, result any, err error) []reflect.Value {
	outs := make([]reflect.Value, len(mi.Out))
	for i, t := range mi.Out {
		outs[i] = reflect.Zero(t)
	}

	if err != nil && mi.HasErrorReturn {
		slot := reflect.New(mi.Out[len(mi.Out)-1]).Elem()
		slot.Set(reflect.ValueOf(err))
		outs[len(outs)-1] = slot
		return outs
	}

	if idx := mi.ResultIndex(); idx >= 0 && result != nil {
		slot := reflect.New(mi.Out[idx]).Elem()
		slot.Set(reflect.ValueOf(result))
		outs[idx] = slot
	}
	return outs
}
