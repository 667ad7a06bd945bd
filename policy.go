package faultline

import (
	"fmt"
	"reflect"

	"github.com/faultlineio/faultline/internal/reflection"
)

// Matcher structurally matches one parameter of a method selector.
// Matchers assert the shape of the selected method's signature; they never
// inspect argument values at call time.
type Matcher interface {
	Matches(t reflect.Type) bool
	String() string
}

type typeMatcher struct {
	t reflect.Type
}

func (m typeMatcher) Matches(t reflect.Type) bool { return t == m.t }
func (m typeMatcher) String() string              { return reflection.FormatType(m.t) }

// AnyOf matches a parameter whose declared type is exactly T, regardless of
// the value passed at call time.
func AnyOf[T any]() Matcher {
	return typeMatcher{t: reflect.TypeOf((*T)(nil)).Elem()}
}

type anyMatcher struct{}

func (anyMatcher) Matches(reflect.Type) bool { return true }
func (anyMatcher) String() string            { return "_" }

// AnyArg matches a parameter of any type.
func AnyArg() Matcher { return anyMatcher{} }

// Policy binds a method selector, a trigger, and an effect. Policies are
// immutable once built; a proxy evaluates the policies bound to a method in
// registration order on every call.
type Policy struct {
	iface    reflect.Type // nil for function policies built with BindFunc
	selector string
	matchers []Matcher
	trigger  Trigger
	effect   Effect
}

// Selector returns the method selector the policy was bound with.
func (p *Policy) Selector() string { return p.selector }

// Trigger returns the policy's trigger predicate.
func (p *Policy) Trigger() Trigger { return p.trigger }

// Effect returns the policy's fault effect.
func (p *Policy) Effect() Effect { return p.effect }

// String describes the policy for logs and error messages.
func (p *Policy) String() string {
	return fmt.Sprintf("%s %s -> %s",
		reflection.FormatMethod(p.iface, p.selector), p.trigger, p.effect)
}

// Binding is the in-progress builder for a Policy. Obtain one with Bind or
// BindFunc, chain Trigger, and finish with Effect.
type Binding struct {
	policy Policy
}

// Bind starts a policy for a method of interface S. The selector must
// identify exactly one method: an exact name, or a prefix pattern ending
// in '*' that matches a single method. Optional matchers assert the
// method's parameter types structurally; a selector that resolves to a
// method with a different shape fails registration.
//
// Example:
//
//	policy := faultline.Bind[UserDirectory]("Lookup",
//	    faultline.AnyOf[context.Context](), faultline.AnyOf[string]()).
//	    Trigger(faultline.EveryCalls(2)).
//	    Effect(faultline.Throw(errors.New("boom")))
func Bind[S any](selector string, matchers ...Matcher) *Binding {
	return &Binding{policy: Policy{
		iface:    reflect.TypeOf((*S)(nil)).Elem(),
		selector: selector,
		matchers: matchers,
	}}
}

// BindFunc starts a policy for a function wrapped with WrapFunc, selected
// by the name the function is wrapped under.
func BindFunc(name string, matchers ...Matcher) *Binding {
	return &Binding{policy: Policy{selector: name, matchers: matchers}}
}

// Trigger sets the trigger predicate.
func (b *Binding) Trigger(t Trigger) *Binding {
	b.policy.trigger = t
	return b
}

// Effect sets the fault effect and returns the finished, immutable Policy.
// Construction errors carried by the trigger or effect surface when the
// policy is registered with Wrap, WrapFunc, or a Registry.
func (b *Binding) Effect(e Effect) *Policy {
	p := b.policy
	p.effect = e
	return &p
}

// resolve validates the policy against an analyzed method set and returns
// the single method it selects.
func (p *Policy) resolve(iface reflect.Type, info *reflection.InterfaceInfo) (*reflection.MethodInfo, error) {
	if p.iface != nil && iface == nil {
		return nil, ConfigurationError{
			Method: p.selector,
			Cause: fmt.Errorf("policy bound for %s cannot wrap a function",
				reflection.FormatType(p.iface)),
		}
	}
	if p.iface != nil && iface != nil && p.iface != iface {
		return nil, ConfigurationError{
			Interface: iface,
			Method:    p.selector,
			Cause: fmt.Errorf("policy bound for %s cannot wrap %s",
				reflection.FormatType(p.iface), reflection.FormatType(iface)),
		}
	}

	matched := info.Match(p.selector)
	switch len(matched) {
	case 0:
		return nil, ConfigurationError{Interface: iface, Method: p.selector, Cause: ErrNoSuchMethod}
	case 1:
		// fallthrough below
	default:
		names := make([]string, len(matched))
		for i, mi := range matched {
			names[i] = mi.Name
		}
		return nil, AmbiguousMethodError{Interface: iface, Selector: p.selector, Matched: names}
	}

	mi := matched[0]
	if err := p.matchSignature(mi); err != nil {
		return nil, ConfigurationError{Interface: iface, Method: mi.Name, Cause: err}
	}
	if err := p.trigger.validate(); err != nil {
		return nil, ConfigurationError{Interface: iface, Method: mi.Name, Cause: err}
	}
	if err := p.effect.validate(iface, mi.Name, mi); err != nil {
		if _, ok := err.(MapperMismatchError); ok {
			return nil, err
		}
		return nil, ConfigurationError{Interface: iface, Method: mi.Name, Cause: err}
	}

	return mi, nil
}

// matchSignature checks the structural matchers, when any were given,
// against the selected method's parameters.
func (p *Policy) matchSignature(mi *reflection.MethodInfo) error {
	if len(p.matchers) == 0 {
		return nil
	}
	if len(p.matchers) != len(mi.In) {
		return fmt.Errorf("selector matches %d parameters, method %s has %d",
			len(p.matchers), mi.Name, len(mi.In))
	}
	for i, m := range p.matchers {
		if !m.Matches(mi.In[i]) {
			return fmt.Errorf("parameter %d of %s is %s, selector wants %s",
				i, mi.Name, reflection.FormatType(mi.In[i]), m)
		}
	}
	return nil
}
