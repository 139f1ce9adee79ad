// Package contextfn provides the host-routed context functions (spec.md
// glossary: "Context function. A host-provided, impure function for
// environment interaction"): stdout, stderr, stdin, and args. It resolves
// `context://<path>` locators the same way pkg/wasmimpl's ChainProvider
// resolves `lib://` and WASM-shaped ones — a small, focused provider
// mirroring the teacher's habit (pkg/calque/context.go) of keeping
// environment interaction behind a handful of named context slots rather
// than ambient globals.
package contextfn

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/flowlang/flow/internal/manifest"
	"github.com/flowlang/flow/internal/runtime/table"
)

// Streams names the three standard streams a context function may read
// from or write to. Tests substitute buffers; cmd/flowr wires the real
// os.Stdin/os.Stdout/os.Stderr.
type Streams struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Provider resolves `context://` locators to concrete Implementations
// bound to one set of Streams and one flow invocation's trailing
// arguments (spec.md §6, "CLI surface of the runner": "trailing
// positional: arguments passed to the flow, accessible via a context
// function").
type Provider struct {
	stdout Implementation
	stderr Implementation
	stdin  Implementation
	args   Implementation
}

// NewProvider builds a Provider over streams, with args exposed verbatim
// (as []any, one element per argument) to the "args" context function.
func NewProvider(streams Streams, args []string) *Provider {
	anyArgs := make([]any, len(args))
	for i, a := range args {
		anyArgs[i] = a
	}
	return &Provider{
		stdout: writerFunc{w: streams.Stdout},
		stderr: writerFunc{w: streams.Stderr},
		stdin:  newReaderFunc(streams.Stdin),
		args:   argsFunc{values: anyArgs},
	}
}

// Implementation is table.Implementation restated locally so callers of
// this package need not import internal/runtime/table merely to name the
// type they already hold.
type Implementation = table.Implementation

// Resolve implements table.ImplementationProvider. A locator whose Kind
// isn't "context" is left for another provider in the chain (nil, nil);
// an unrecognized context path is an error, not a silent pass-through.
func (p *Provider) Resolve(loc manifest.ImplLocator) (table.Implementation, error) {
	if loc.Kind != "context" {
		return nil, nil
	}
	switch loc.URL {
	case "stdout":
		return p.stdout, nil
	case "stderr":
		return p.stderr, nil
	case "stdin":
		return p.stdin, nil
	case "args":
		return p.args, nil
	default:
		return nil, fmt.Errorf("contextfn: unknown context function %q", loc.URL)
	}
}

// writerFunc implements the "stdout" and "stderr" context functions: it writes its
// single input, followed by a newline, to w. It keeps running
// (run_again=true) so long as values keep arriving on its input — only
// the dispatcher's state machine, not the function itself, decides when
// it stops being scheduled.
type writerFunc struct{ w io.Writer }

func (f writerFunc) Run(_ context.Context, inputs []any) (any, bool, error) {
	if len(inputs) == 0 || inputs[0] == nil {
		return nil, true, nil
	}
	if _, err := fmt.Fprintln(f.w, inputs[0]); err != nil {
		return nil, false, err
	}
	return nil, true, nil
}

// readerFunc implements the "stdin" context function: each job reads one
// line, returning run_again=true until the reader is exhausted.
type readerFunc struct {
	mu      sync.Mutex
	scanner *bufio.Scanner
}

func newReaderFunc(r io.Reader) *readerFunc {
	return &readerFunc{scanner: bufio.NewScanner(r)}
}

func (f *readerFunc) Run(_ context.Context, _ []any) (any, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.scanner.Scan() {
		return nil, false, f.scanner.Err()
	}
	return f.scanner.Text(), true, nil
}

// argsFunc implements the "args" context function: it has no inputs and
// delivers the flow's trailing CLI arguments exactly once.
type argsFunc struct{ values []any }

func (f argsFunc) Run(context.Context, []any) (any, bool, error) {
	return f.values, false, nil
}
