// Package reflection performs reflect-based analysis of interface method
// sets and function signatures. Analysis results are cached so repeated
// lookups on the same type are cheap.
package reflection

import (
	"context"
	"reflect"
	"strings"
	"sync"
)

var (
	errType = reflect.TypeOf((*error)(nil)).Elem()
	ctxType = reflect.TypeOf((*context.Context)(nil)).Elem()
)

// InterfaceInfo holds pre-computed information about an interface's method set.
type InterfaceInfo struct {
	Type    reflect.Type
	Methods []*MethodInfo

	byName map[string]*MethodInfo
}

// MethodInfo describes a single interface method or a wrapped function.
type MethodInfo struct {
	Name string
	Type reflect.Type

	In         []reflect.Type
	Out        []reflect.Type
	IsVariadic bool

	// HasErrorReturn is true when the last return value implements error.
	HasErrorReturn bool

	// ResultType is the first non-error return value's type, nil when the
	// method returns nothing (or only an error).
	ResultType reflect.Type

	// CtxIndex is the parameter index of a context.Context argument,
	// -1 when the method takes none.
	CtxIndex int
}

var interfaceCache sync.Map // map[reflect.Type]*InterfaceInfo

// Analyze returns cached method-set information for an interface type.
// The ok result is false when t is nil or not an interface.
func Analyze(t reflect.Type) (*InterfaceInfo, bool) {
	if t == nil || t.Kind() != reflect.Interface {
		return nil, false
	}

	if cached, ok := interfaceCache.Load(t); ok {
		return cached.(*InterfaceInfo), true
	}

	info := &InterfaceInfo{
		Type:   t,
		byName: make(map[string]*MethodInfo, t.NumMethod()),
	}
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		mi := AnalyzeFunc(m.Name, m.Type)
		info.Methods = append(info.Methods, mi)
		info.byName[m.Name] = mi
	}

	actual, _ := interfaceCache.LoadOrStore(t, info)
	return actual.(*InterfaceInfo), true
}

// AnalyzeFunc analyzes a func type under the given name.
func AnalyzeFunc(name string, fn reflect.Type) *MethodInfo {
	mi := &MethodInfo{
		Name:       name,
		Type:       fn,
		IsVariadic: fn.IsVariadic(),
		CtxIndex:   -1,
	}

	mi.In = make([]reflect.Type, fn.NumIn())
	for i := 0; i < fn.NumIn(); i++ {
		mi.In[i] = fn.In(i)
		if mi.In[i] == ctxType && mi.CtxIndex < 0 {
			mi.CtxIndex = i
		}
	}

	mi.Out = make([]reflect.Type, fn.NumOut())
	for i := 0; i < fn.NumOut(); i++ {
		mi.Out[i] = fn.Out(i)
	}

	if n := len(mi.Out); n > 0 && mi.Out[n-1].Implements(errType) {
		mi.HasErrorReturn = true
	}
	for _, out := range mi.Out {
		if !out.Implements(errType) {
			mi.ResultType = out
			break
		}
	}

	return mi
}

// SingleMethod wraps one analyzed function as a method set of size one,
// so function values share the selector resolution path with interfaces.
func SingleMethod(mi *MethodInfo) *InterfaceInfo {
	return &InterfaceInfo{
		Type:    mi.Type,
		Methods: []*MethodInfo{mi},
		byName:  map[string]*MethodInfo{mi.Name: mi},
	}
}

// Method returns the method with the given name, if any.
func (ii *InterfaceInfo) Method(name string) (*MethodInfo, bool) {
	mi, ok := ii.byName[name]
	return mi, ok
}

// Match returns all methods whose name matches the pattern. A pattern
// ending in '*' matches by prefix; anything else matches exactly.
func (ii *InterfaceInfo) Match(pattern string) []*MethodInfo {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		var matched []*MethodInfo
		for _, mi := range ii.Methods {
			if strings.HasPrefix(mi.Name, prefix) {
				matched = append(matched, mi)
			}
		}
		return matched
	}

	if mi, ok := ii.byName[pattern]; ok {
		return []*MethodInfo{mi}
	}
	return nil
}

// ResultIndex returns the index of the first non-error return value,
// or -1 when there is none.
func (mi *MethodInfo) ResultIndex() int {
	for i, out := range mi.Out {
		if !out.Implements(errType) {
			return i
		}
	}
	return -1
}

// IsNilable reports whether values of t can be nil.
func IsNilable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return true
	default:
		return false
	}
}
