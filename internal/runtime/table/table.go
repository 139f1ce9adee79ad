// Package table is the function table and input buffers (§4.H): on
// manifest load, the runtime builds a dense vector of functions indexed
// by the ids the manifest assigned, each holding its input FIFOs and its
// output connections.
package table

import (
	"context"
	"fmt"

	"github.com/flowlang/flow/internal/manifest"
)

// Implementation is the single operation an implementation provides:
// given one value per declared input, produce an optional output value
// and whether the function should be considered for another job.
type Implementation interface {
	Run(ctx context.Context, inputs []any) (output any, runAgain bool, err error)
}

// ImplementationProvider resolves a manifest locator (library, WASM
// source, or context name) to a runnable Implementation.
type ImplementationProvider interface {
	Resolve(locator manifest.ImplLocator) (Implementation, error)
}

// ImplementationLoadFailedError names a locator no provider in the chain
// could resolve (spec.md §7: `ImplementationLoadFailed(locator)`).
type ImplementationLoadFailedError struct {
	Locator manifest.ImplLocator
	Cause   error
}

func (e *ImplementationLoadFailedError) Error() string {
	return fmt.Sprintf("implementation load failed for %s://%s: %v", e.Locator.Kind, e.Locator.URL, e.Cause)
}

func (e *ImplementationLoadFailedError) Unwrap() error { return e.Cause }

// InputBuffer is a FIFO of pending values for one input (spec.md "Input
// buffer"). It is "full" whenever it holds at least one value.
type InputBuffer struct {
	values []any
}

// Push appends v to the back of the queue.
func (b *InputBuffer) Push(v any) { b.values = append(b.values, v) }

// Pop removes and returns the front value, if any.
func (b *InputBuffer) Pop() (any, bool) {
	if len(b.values) == 0 {
		return nil, false
	}
	v := b.values[0]
	b.values = b.values[1:]
	return v, true
}

// Full reports whether the buffer holds at least one value.
func (b *InputBuffer) Full() bool { return len(b.values) > 0 }

// Len reports the number of queued values.
func (b *InputBuffer) Len() int { return len(b.values) }

// Function is one runtime entity: its resolved implementation, its input
// buffers in declared order, and its output connections.
type Function struct {
	ID      int
	FlowID  int
	Name    string
	Impure  bool
	Impl    Implementation
	Inputs  []InputBuffer
	Outputs []manifest.OutputConnection
	Init    []manifest.InitializerSpec

	inputIndex map[string]int
}

// InputIndex returns the declared index of input name, if the function
// has one.
func (f *Function) InputIndex(name string) (int, bool) {
	i, ok := f.inputIndex[name]
	return i, ok
}

// NeedsInput reports whether any input buffer is currently empty — one
// of the state variables driving the run-state machine (§4.I).
func (f *Function) NeedsInput() bool {
	for i := range f.Inputs {
		if !f.Inputs[i].Full() {
			return true
		}
	}
	return false
}

// Table is the dense, id-indexed vector of runtime functions built from
// a loaded Manifest.
type Table struct {
	Functions []*Function
}

// Build resolves every manifest function's implementation via provider
// and allocates its input buffers, indexed by the manifest's dense ids.
func Build(m *manifest.Manifest, provider ImplementationProvider) (*Table, error) {
	fns := make([]*Function, len(m.Functions))
	for _, rf := range m.Functions {
		impl, err := provider.Resolve(rf.Impl)
		if err != nil {
			return nil, &ImplementationLoadFailedError{Locator: rf.Impl, Cause: err}
		}
		fn := &Function{
			ID:         rf.ID,
			FlowID:     rf.FlowID,
			Name:       rf.Name,
			Impure:     rf.Impure,
			Impl:       impl,
			Inputs:     make([]InputBuffer, len(rf.Inputs)),
			Outputs:    rf.Outputs,
			Init:       rf.Init,
			inputIndex: make(map[string]int, len(rf.Inputs)),
		}
		for i, p := range rf.Inputs {
			fn.inputIndex[p.Name] = i
		}
		if rf.ID < 0 || rf.ID >= len(fns) {
			return nil, fmt.Errorf("function %q: id %d out of range [0,%d)", rf.Name, rf.ID, len(fns))
		}
		fns[rf.ID] = fn
	}
	for i, fn := range fns {
		if fn == nil {
			return nil, fmt.Errorf("function table: no manifest entry assigned id %d", i)
		}
	}
	return &Table{Functions: fns}, nil
}
