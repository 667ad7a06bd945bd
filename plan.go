package faultline

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Plan is a declarative fault plan: the configuration surface consumed
// from the wiring layer. Each entry names a target interface and method,
// a trigger, and an effect. Payloads that YAML cannot carry — error values
// and transform mappers — are referenced by name and resolved through a
// PlanResolver populated by the wiring layer.
//
//	faults:
//	  - interface: UserDirectory
//	    method: Lookup
//	    trigger: {kind: every, calls: 2}
//	    effect: {kind: throw, message: "boom"}
type Plan struct {
	Faults []FaultSpec `yaml:"faults"`
}

// FaultSpec is one entry of a fault plan.
type FaultSpec struct {
	Interface string      `yaml:"interface"`
	Method    string      `yaml:"method"`
	Trigger   TriggerSpec `yaml:"trigger"`
	Effect    EffectSpec  `yaml:"effect"`
}

// TriggerSpec selects a trigger kind and its call count.
type TriggerSpec struct {
	// Kind is "after", "every", or "on".
	Kind string `yaml:"kind"`

	// Calls is the trigger's k; must be positive.
	Calls int `yaml:"calls"`
}

// EffectSpec selects an effect kind and its payload.
type EffectSpec struct {
	// Kind is "throw", "delay", or "transform".
	Kind string `yaml:"kind"`

	// Message builds the thrown error from a literal string. The message
	// is preserved byte for byte on every injected failure.
	Message string `yaml:"message,omitempty"`

	// Error names an error value registered with the PlanResolver; it
	// takes precedence over Message.
	Error string `yaml:"error,omitempty"`

	// Delay is the injected latency for delay effects.
	Delay Duration `yaml:"delay,omitempty"`

	// Mapper names a transform mapper registered with the PlanResolver.
	Mapper string `yaml:"mapper,omitempty"`
}

// Duration is a time.Duration that unmarshals from YAML strings such as
// "20s" or "150ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// ParsePlan decodes a fault plan from YAML and validates its structure.
func ParsePlan(data []byte) (*Plan, error) {
	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("parse fault plan: %w", err)
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return &plan, nil
}

// LoadPlan reads and parses a fault plan from r.
func LoadPlan(r io.Reader) (*Plan, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read fault plan: %w", err)
	}
	return ParsePlan(data)
}

// LoadPlanFile reads and parses a fault plan from a file.
func LoadPlanFile(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fault plan %s: %w", path, err)
	}
	return ParsePlan(data)
}

// Validate checks every entry for structural problems: unknown kinds,
// non-positive call counts, missing or conflicting payloads. Name
// resolution against a PlanResolver happens later, in PoliciesFor.
func (p *Plan) Validate() error {
	for i, f := range p.Faults {
		if err := f.validate(); err != nil {
			return PlanError{Index: i, Interface: f.Interface, Method: f.Method, Cause: err}
		}
	}
	return nil
}

func (f FaultSpec) validate() error {
	if f.Interface == "" {
		return fmt.Errorf("interface name is required")
	}
	if f.Method == "" {
		return fmt.Errorf("method selector is required")
	}

	switch f.Trigger.Kind {
	case "after", "every", "on":
		if f.Trigger.Calls <= 0 {
			return fmt.Errorf("%w: got %d", ErrNonPositiveCalls, f.Trigger.Calls)
		}
	case "":
		return fmt.Errorf("trigger kind is required")
	default:
		return fmt.Errorf("unknown trigger kind %q", f.Trigger.Kind)
	}

	switch f.Effect.Kind {
	case "throw":
		if f.Effect.Message == "" && f.Effect.Error == "" {
			return fmt.Errorf("throw effect needs a message or a named error")
		}
	case "delay":
		if f.Effect.Delay <= 0 {
			return fmt.Errorf("delay effect needs a positive duration")
		}
	case "transform":
		if f.Effect.Mapper == "" {
			return fmt.Errorf("transform effect needs a named mapper")
		}
	case "":
		return fmt.Errorf("effect kind is required")
	default:
		return fmt.Errorf("unknown effect kind %q", f.Effect.Kind)
	}

	return nil
}

// PlanResolver supplies the Go values a fault plan references by name.
// The wiring layer registers them before the plan is applied.
type PlanResolver struct {
	errors  map[string]error
	mappers map[string]any
}

// NewPlanResolver creates an empty resolver.
func NewPlanResolver() *PlanResolver {
	return &PlanResolver{
		errors:  make(map[string]error),
		mappers: make(map[string]any),
	}
}

// RegisterError makes err available to plans under name.
func (pr *PlanResolver) RegisterError(name string, err error) {
	pr.errors[name] = err
}

// RegisterMapper makes a transform mapper available to plans under name.
func (pr *PlanResolver) RegisterMapper(name string, mapper any) {
	pr.mappers[name] = mapper
}

// PoliciesFor builds the policies of every plan entry targeting ifaceName,
// bound to interface S, in plan order. res may be nil when no entry
// references a named error or mapper.
func PoliciesFor[S any](plan *Plan, ifaceName string, res *PlanResolver) ([]*Policy, error) {
	var policies []*Policy
	for i, f := range plan.Faults {
		if f.Interface != ifaceName {
			continue
		}

		trigger, effect, err := f.build(res)
		if err != nil {
			return nil, PlanError{Index: i, Interface: f.Interface, Method: f.Method, Cause: err}
		}
		policies = append(policies, Bind[S](f.Method).Trigger(trigger).Effect(effect))
	}
	return policies, nil
}

// InterceptPlan registers all of a plan's policies for ifaceName with the
// registry, validated against interface S.
func InterceptPlan[S any](r *Registry, plan *Plan, ifaceName string, shim func(*Proxy[S]) S, res *PlanResolver) error {
	policies, err := PoliciesFor[S](plan, ifaceName, res)
	if err != nil {
		return err
	}
	return Intercept(r, shim, policies...)
}

func (f FaultSpec) build(res *PlanResolver) (Trigger, Effect, error) {
	var trigger Trigger
	switch f.Trigger.Kind {
	case "after":
		trigger = AfterCalls(f.Trigger.Calls)
	case "every":
		trigger = EveryCalls(f.Trigger.Calls)
	case "on":
		trigger = OnCall(f.Trigger.Calls)
	}

	var effect Effect
	switch f.Effect.Kind {
	case "throw":
		if f.Effect.Error != "" {
			if res == nil {
				return trigger, effect, fmt.Errorf("%w: %q", ErrUnknownError, f.Effect.Error)
			}
			named, ok := res.errors[f.Effect.Error]
			if !ok {
				return trigger, effect, fmt.Errorf("%w: %q", ErrUnknownError, f.Effect.Error)
			}
			effect = Throw(named)
			break
		}
		effect = Throw(errors.New(f.Effect.Message))
	case "delay":
		effect = Delay(time.Duration(f.Effect.Delay))
	case "transform":
		if res == nil {
			return trigger, effect, fmt.Errorf("%w: %q", ErrUnknownMapper, f.Effect.Mapper)
		}
		mapper, ok := res.mappers[f.Effect.Mapper]
		if !ok {
			return trigger, effect, fmt.Errorf("%w: %q", ErrUnknownMapper, f.Effect.Mapper)
		}
		effect = Transform(mapper)
	}

	return trigger, effect, nil
}
