package faultline

import "fmt"

// Trigger decides, given the call count for a method, whether a fault
// policy fires on the current call. Triggers are pure: evaluating one has
// no side effects and the same count always yields the same answer.
//
// The count a trigger observes is 1-based and incremented before
// evaluation, so the first call to a method is evaluated with count 1.
type Trigger struct {
	kind  string
	calls uint64
	fn    func(count uint64) bool
	err   error
}

// AfterCalls returns a trigger that fires on call number k and on every
// call thereafter: a persistent fault that, once reached, never stops
// firing. AfterCalls(1) fires on every call.
//
// k must be positive; a non-positive k is reported as a ConfigurationError
// when the policy is registered, never at call time.
func AfterCalls(k int) Trigger {
	if k <= 0 {
		return Trigger{kind: "after", err: fmt.Errorf("%w: got %d", ErrNonPositiveCalls, k)}
	}
	n := uint64(k)
	return Trigger{
		kind:  "after",
		calls: n,
		fn:    func(count uint64) bool { return count >= n },
	}
}

// EveryCalls returns a trigger that fires on every k-th call: an
// intermittent fault recurring whenever the call count is a multiple of k.
// EveryCalls(2) fires on calls 2, 4, 6, and so on.
//
// k must be positive; a non-positive k is reported as a ConfigurationError
// when the policy is registered.
func EveryCalls(k int) Trigger {
	if k <= 0 {
		return Trigger{kind: "every", err: fmt.Errorf("%w: got %d", ErrNonPositiveCalls, k)}
	}
	n := uint64(k)
	return Trigger{
		kind:  "every",
		calls: n,
		fn:    func(count uint64) bool { return count%n == 0 },
	}
}

// OnCall returns a trigger that fires exactly once, on call number k.
//
// k must be positive; a non-positive k is reported as a ConfigurationError
// when the policy is registered.
func OnCall(k int) Trigger {
	if k <= 0 {
		return Trigger{kind: "on", err: fmt.Errorf("%w: got %d", ErrNonPositiveCalls, k)}
	}
	n := uint64(k)
	return Trigger{
		kind:  "on",
		calls: n,
		fn:    func(count uint64) bool { return count == n },
	}
}

// TriggerFunc adapts a custom predicate into a Trigger. The predicate must
// be pure: no side effects, and deterministic in count.
func TriggerFunc(fn func(count uint64) bool) Trigger {
	if fn == nil {
		return Trigger{kind: "func", err: fmt.Errorf("trigger func cannot be nil")}
	}
	return Trigger{kind: "func", fn: fn}
}

// Fires reports whether the trigger fires for the given call count.
func (t Trigger) Fires(count uint64) bool {
	if t.fn == nil {
		return false
	}
	return t.fn(count)
}

// String describes the trigger for logs and error messages.
func (t Trigger) String() string {
	switch t.kind {
	case "after":
		return fmt.Sprintf("after(%d)", t.calls)
	case "every":
		return fmt.Sprintf("every(%d)", t.calls)
	case "on":
		return fmt.Sprintf("on(%d)", t.calls)
	case "func":
		return "func"
	default:
		return "none"
	}
}

func (t Trigger) validate() error {
	if t.err != nil {
		return t.err
	}
	if t.fn == nil {
		return ErrTriggerMissing
	}
	return nil
}
