// Package ledger provides the per-proxy invocation counters that trigger
// predicates are evaluated against.
package ledger

import (
	"sync"
	"sync/atomic"
)

// Ledger is a thread-safe map of monotonically increasing call counters.
// The zero value is ready to use.
//
// Each counter is an independent atomic; concurrent increments of different
// keys never contend with each other, and concurrent increments of the same
// key each observe a distinct count with no lost updates. Counters are never
// reset for the lifetime of the ledger.
type Ledger[K comparable] struct {
	counts sync.Map // map[K]*atomic.Uint64
}

// Increment adds one to the counter for key and returns the new count.
// The first increment for a key returns 1.
func (l *Ledger[K]) Increment(key K) uint64 {
	if c, ok := l.counts.Load(key); ok {
		return c.(*atomic.Uint64).Add(1)
	}

	c, _ := l.counts.LoadOrStore(key, new(atomic.Uint64))
	return c.(*atomic.Uint64).Add(1)
}

// Count returns the current counter for key without modifying it.
// Keys that were never incremented report 0.
func (l *Ledger[K]) Count(key K) uint64 {
	if c, ok := l.counts.Load(key); ok {
		return c.(*atomic.Uint64).Load()
	}
	return 0
}

// Snapshot returns a copy of all counters at the time of the call.
// Counters that are concurrently incremented may or may not reflect
// in-flight updates.
func (l *Ledger[K]) Snapshot() map[K]uint64 {
	out := make(map[K]uint64)
	l.counts.Range(func(key, value any) bool {
		out[key.(K)] = value.(*atomic.Uint64).Load()
		return true
	})
	return out
}
