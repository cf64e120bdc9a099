package testutil

import (
	"context"
	"os"
	"sync"

	"github.com/coral-mesh/injector/internal/attacher"
	"github.com/coral-mesh/injector/internal/errors"
)

// Call is one recorded facility operation.
type Call struct {
	Op      string // "attach", "load" or "detach"
	Arg     string // target id for attach, path for load
	Options string
}

// FakeFacility is an attacher.Facility that records every call and fails on
// demand.
type FakeFacility struct {
	AttachErr error
	LoadErr   error
	DetachErr error
	// CheckModule makes LoadModule fail with ModuleLoadFailed when the path
	// does not name an existing file, as a real target's loader would.
	CheckModule bool

	mu    sync.Mutex
	calls []Call
}

var _ attacher.Facility = (*FakeFacility)(nil)

// Attach records the call and returns a handle unless AttachErr is set.
func (f *FakeFacility) Attach(_ context.Context, targetID string) (attacher.Handle, error) {
	f.record(Call{Op: "attach", Arg: targetID})
	if f.AttachErr != nil {
		return nil, f.AttachErr
	}
	return &fakeHandle{facility: f}, nil
}

// Calls returns the recorded calls in order.
func (f *FakeFacility) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Count returns how many times op was called.
func (f *FakeFacility) Count(op string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Op == op {
			n++
		}
	}
	return n
}

func (f *FakeFacility) record(c Call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

type fakeHandle struct {
	facility *FakeFacility
}

func (h *fakeHandle) LoadModule(_ context.Context, path, options string) error {
	h.facility.record(Call{Op: "load", Arg: path, Options: options})
	if h.facility.CheckModule {
		if _, err := os.Stat(path); err != nil {
			return errors.New(errors.KindModuleLoadFailed, err)
		}
	}
	return h.facility.LoadErr
}

func (h *fakeHandle) Detach() error {
	h.facility.record(Call{Op: "detach"})
	return h.facility.DetachErr
}
