// Package faulttest provides counting test doubles and ready-made shims
// for exercising the interception pipeline in tests.
package faulttest

import (
	"context"
	"fmt"
	"sync"

	"github.com/faultlineio/faultline"
)

// Record is the value type the doubles serve.
type Record struct {
	ID   string
	Name string
}

// Directory is the service interface the doubles implement.
type Directory interface {
	Lookup(ctx context.Context, id string) (*Record, error)
	Deactivate(ctx context.Context, id string) error
	Size() int
}

// CountingDirectory is a Directory that records how often each method was
// invoked, so tests can observe whether the wrapped implementation was
// actually reached.
type CountingDirectory struct {
	mu      sync.Mutex
	calls   map[string]int
	records map[string]*Record

	// LookupErr, when set, is returned by every Lookup call.
	LookupErr error
}

// NewCountingDirectory creates a directory serving the given records.
func NewCountingDirectory(records ...*Record) *CountingDirectory {
	d := &CountingDirectory{
		calls:   make(map[string]int),
		records: make(map[string]*Record),
	}
	for _, r := range records {
		d.records[r.ID] = r
	}
	return d
}

func (d *CountingDirectory) Lookup(_ context.Context, id string) (*Record, error) {
	d.count("Lookup")
	if d.LookupErr != nil {
		return nil, d.LookupErr
	}
	r, ok := d.record(id)
	if !ok {
		return nil, nil
	}
	// Copy so transforms can consume the result without mutating the store.
	out := *r
	return &out, nil
}

func (d *CountingDirectory) Deactivate(_ context.Context, id string) error {
	d.count("Deactivate")
	if _, ok := d.record(id); !ok {
		return fmt.Errorf("no such record: %s", id)
	}
	return nil
}

func (d *CountingDirectory) Size() int {
	d.count("Size")
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.records)
}

// Calls returns how many times the named method reached this double.
func (d *CountingDirectory) Calls(method string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[method]
}

func (d *CountingDirectory) count(method string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls[method]++
}

func (d *CountingDirectory) record(id string) (*Record, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.records[id]
	return r, ok
}

// DirectoryProxy is the shim that makes a proxy engine implement
// Directory. It is the shape generated or hand-written shims take in
// production wiring.
type DirectoryProxy struct {
	px *faultline.Proxy[Directory]
}

// NewDirectoryProxy wraps a proxy engine as a Directory.
func NewDirectoryProxy(px *faultline.Proxy[Directory]) Directory {
	return &DirectoryProxy{px: px}
}

func (p *DirectoryProxy) Lookup(ctx context.Context, id string) (*Record, error) {
	return faultline.Call(p.px, ctx, "Lookup", func(ctx context.Context) (*Record, error) {
		return p.px.Target().Lookup(ctx, id)
	})
}

func (p *DirectoryProxy) Deactivate(ctx context.Context, id string) error {
	return faultline.CallErr(p.px, ctx, "Deactivate", func(ctx context.Context) error {
		return p.px.Target().Deactivate(ctx, id)
	})
}

func (p *DirectoryProxy) Size() int {
	n, _ := faultline.Call(p.px, context.Background(), "Size", func(context.Context) (int, error) {
		return p.px.Target().Size(), nil
	})
	return n
}
