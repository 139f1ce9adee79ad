package compile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/flowlang/flow/internal/ioref"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s): %v", name, err)
	}
}

func TestRunHelloWorldProducesSingleFunctionManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "stdout.fn", `
function = "print"
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

	opts := Options{Providers: ioref.NewChain(nil, dir, nil), Version: "0.1.0"}
	result, err := Run(context.Background(), filepath.Join(dir, "hello.flow"), opts)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(result.Manifest.Functions) != 1 {
		t.Fatalf("len(Functions) = %d, want 1", len(result.Manifest.Functions))
	}
	fn := result.Manifest.Functions[0]
	if fn.Name != "print" || fn.Impl.Kind != "context" || fn.Impl.URL != "stdout" {
		t.Errorf("function = %+v", fn)
	}
	if len(fn.Init) != 1 || fn.Init[0].Value != "Hello World!" {
		t.Errorf("Init = %+v", fn.Init)
	}
}

func TestRunFibonacciProducesLoopbackManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "stdout.fn", `
function = "print"
source = "context://stdout"
impure = true

[input.default]
`)
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

	opts := Options{Providers: ioref.NewChain(nil, dir, nil), Version: "0.1.0"}
	result, err := Run(context.Background(), filepath.Join(dir, "fibonacci.flow"), opts)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(result.Manifest.Functions) != 2 {
		t.Fatalf("len(Functions) = %d, want 2", len(result.Manifest.Functions))
	}
	if len(result.Manifest.Libraries) != 1 || result.Manifest.Libraries[0] != "lib://math/add.wasm" {
		t.Errorf("Libraries = %+v", result.Manifest.Libraries)
	}

	var addFn *string
	for i := range result.Manifest.Functions {
		fn := &result.Manifest.Functions[i]
		if fn.Name == "add" {
			if len(fn.Outputs) != 3 {
				t.Errorf("add.Outputs = %+v, want 3", fn.Outputs)
			}
			name := fn.Name
			addFn = &name
		}
	}
	if addFn == nil {
		t.Fatal("add function missing from manifest")
	}
}

func TestRunTypeMismatchAbortsWithNoManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "source.fn", `
function = "source"
source = "lib://text/source.wasm"
[output.default]
type = "string"
`)
	writeFile(t, dir, "sink.fn", `
function = "sink"
source = "lib://math/sink.wasm"
impure = true
[input.default]
type = "number"
`)
	writeFile(t, dir, "mismatch.flow", fmt.Sprintf(`
flow = "mismatch"

[[process]]
source = %q
alias = "source"

[[process]]
source = %q
alias = "sink"

[[connection]]
from = "source"
to = "sink"
`, filepath.Join(dir, "source.fn"), filepath.Join(dir, "sink.fn")))

	opts := Options{Providers: ioref.NewChain(nil, dir, nil), Version: "0.1.0"}
	result, err := Run(context.Background(), filepath.Join(dir, "mismatch.flow"), opts)
	if err == nil {
		t.Fatalf("Run() error = nil, want type mismatch error; result = %+v", result)
	}
	if result != nil {
		t.Errorf("Run() result = %+v, want nil on error", result)
	}
}
