package load

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/flowlang/flow/internal/ioref"
	"github.com/flowlang/flow/internal/model"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s): %v", name, err)
	}
}

func newLoader(t *testing.T, dir string) *Loader {
	t.Helper()
	return NewLoader(ioref.NewChain(nil, dir, nil))
}

func TestLoadHelloWorld(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "stdout.fn", `
function = "stdout"
source = "context://stdout"
impure = true

[input.default]
`)
	writeFile(t, dir, "hello.flow", `
flow = "hello"

[[process]]
source = "context://stdout"
alias = "print"
input.default = { once = "Hello World!" }
`)

	l := newLoader(t, dir)
	flow, err := l.Load(context.Background(), filepath.Join(dir, "hello.flow"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if flow.Name != "hello" {
		t.Errorf("Name = %q", flow.Name)
	}
	if len(flow.Processes) != 1 {
		t.Fatalf("len(Processes) = %d, want 1", len(flow.Processes))
	}
	print := flow.Processes[0]
	if print.EffectiveName() != "print" {
		t.Errorf("EffectiveName() = %q", print.EffectiveName())
	}
	if print.Route != model.Route("print") {
		t.Errorf("Route = %q", print.Route)
	}
	init, ok := print.Initializers["default"]
	if !ok || init.Kind != model.Once || init.Value != "Hello World!" {
		t.Errorf("Initializers[default] = %+v", init)
	}
	fn, ok := print.Resolved.(*model.Function)
	if !ok {
		t.Fatalf("Resolved is %T, want *model.Function", print.Resolved)
	}
	if fn.Impl.Kind != model.ImplContext {
		t.Errorf("Impl.Kind = %v, want ImplContext", fn.Impl.Kind)
	}
}

func TestLoadFibonacciProcessTree(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "add.fn", `
function = "add"
source = "lib://math/add.wasm"

[input.i1]
type = "number"
[input.i2]
type = "number"
[output.sum]
type = "number"
`)
	writeFile(t, dir, "stdout.fn", `
function = "stdout"
source = "context://stdout"
impure = true
[input.default]
`)
	// Process sources naming a sibling file resolve relative to the
	// invoking directory (like the absolute-path cases in
	// ioref/provider_test.go), not relative to the referring document, so
	// the fixture spells out the absolute path.
	writeFile(t, dir, "fibonacci.flow", fmt.Sprintf(`
flow = "fibonacci"

[[process]]
source = %q
alias = "add"
input.i1 = { once = 0 }
input.i2 = { once = 1 }

[[process]]
source = "context://stdout"
alias = "print"

[[connection]]
from = "add/sum"
to = "print"

[[connection]]
from = "add/sum"
to = ["add/i2"]

[[connection]]
from = "add/i2"
to = "add/i1"
`, filepath.Join(dir, "add.fn")))

	l := newLoader(t, dir)
	flow, err := l.Load(context.Background(), filepath.Join(dir, "fibonacci.flow"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(flow.Processes) != 2 {
		t.Fatalf("len(Processes) = %d, want 2", len(flow.Processes))
	}
	add := flow.Processes[0]
	if add.EffectiveName() != "add" || add.Route != model.Route("add") {
		t.Errorf("add ProcessRef = %+v", add)
	}
	if add.ID == flow.Processes[1].ID {
		t.Errorf("process ids collide: %d == %d", add.ID, flow.Processes[1].ID)
	}
	if len(flow.Connections) != 3 {
		t.Fatalf("len(Connections) = %d, want 3", len(flow.Connections))
	}
}

func TestLoadDuplicateAlias(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "stdout.fn", `
function = "stdout"
source = "context://stdout"
impure = true
[input.default]
`)
	writeFile(t, dir, "dup.flow", `
flow = "dup"

[[process]]
source = "context://stdout"
alias = "print"

[[process]]
source = "context://stdout"
alias = "print"
`)

	l := newLoader(t, dir)
	_, err := l.Load(context.Background(), filepath.Join(dir, "dup.flow"))
	dupErr, ok := err.(*DuplicateAliasError)
	if !ok {
		t.Fatalf("err = %v (%T), want *DuplicateAliasError", err, err)
	}
	if dupErr.Name != "print" {
		t.Errorf("Name = %q", dupErr.Name)
	}
}

func TestLoadCyclicReference(t *testing.T) {
	dir := t.TempDir()
	loopyPath := filepath.Join(dir, "loopy.flow")
	writeFile(t, dir, "loopy.flow", fmt.Sprintf(`
flow = "loopy"

[[process]]
source = %q
alias = "self"
`, loopyPath))

	l := newLoader(t, dir)
	_, err := l.Load(context.Background(), loopyPath)
	if _, ok := err.(*CyclicReferenceError); !ok {
		t.Fatalf("err = %v (%T), want *CyclicReferenceError", err, err)
	}
}

func TestLoadNotRootFlow(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "add.fn", `
function = "add"
source = "lib://math/add.wasm"
[input.i1]
[input.i2]
[output.sum]
`)
	l := newLoader(t, dir)
	_, err := l.Load(context.Background(), filepath.Join(dir, "add.fn"))
	if _, ok := err.(*NotRootFlowError); !ok {
		t.Fatalf("err = %v (%T), want *NotRootFlowError", err, err)
	}
}
