package route

import (
	"context"
	"testing"

	"github.com/flowlang/flow/internal/manifest"
	"github.com/flowlang/flow/internal/runtime/state"
	"github.com/flowlang/flow/internal/runtime/table"
)

type noopImpl struct{}

func (noopImpl) Run(context.Context, []any) (any, bool, error) { return nil, false, nil }

type noopProvider struct{}

func (noopProvider) Resolve(manifest.ImplLocator) (table.Implementation, error) { return noopImpl{}, nil }

func buildTable(t *testing.T, m *manifest.Manifest) *table.Table {
	t.Helper()
	tbl, err := table.Build(m, noopProvider{})
	if err != nil {
		t.Fatalf("table.Build() error = %v", err)
	}
	return tbl
}

func TestApplyIdentityDelivery(t *testing.T) {
	m := &manifest.Manifest{Functions: []manifest.RuntimeFunction{
		{ID: 0, Name: "add", Outputs: []manifest.OutputConnection{
			{DestFunctionID: 1, DestInputName: "default", Conversion: "identity"},
		}},
		{ID: 1, Name: "print", Inputs: []manifest.PortSpec{{Name: "default"}}},
	}}
	tbl := buildTable(t, m)
	machine := state.NewMachine(map[int]int{0: 0, 1: 0}, nil)

	touched := Apply(tbl, machine, 0, 42.0)
	if len(touched) != 1 || touched[0] != 1 {
		t.Fatalf("touched = %+v, want [1]", touched)
	}
	v, ok := tbl.Functions[1].Inputs[0].Pop()
	if !ok || v != 42.0 {
		t.Fatalf("delivered value = %v,%v, want 42.0,true", v, ok)
	}
}

func TestApplyWrap(t *testing.T) {
	m := &manifest.Manifest{Functions: []manifest.RuntimeFunction{
		{ID: 0, Outputs: []manifest.OutputConnection{{DestFunctionID: 1, DestInputName: "default", Conversion: "wrap"}}},
		{ID: 1, Inputs: []manifest.PortSpec{{Name: "default"}}},
	}}
	tbl := buildTable(t, m)
	machine := state.NewMachine(map[int]int{0: 0, 1: 0}, nil)

	Apply(tbl, machine, 0, "x")
	v, _ := tbl.Functions[1].Inputs[0].Pop()
	arr, ok := v.([]any)
	if !ok || len(arr) != 1 || arr[0] != "x" {
		t.Fatalf("delivered value = %#v, want []any{\"x\"}", v)
	}
}

func TestApplyDeserializeDeliversEachElement(t *testing.T) {
	m := &manifest.Manifest{Functions: []manifest.RuntimeFunction{
		{ID: 0, Outputs: []manifest.OutputConnection{{DestFunctionID: 1, DestInputName: "default", Conversion: "deserialize"}}},
		{ID: 1, Inputs: []manifest.PortSpec{{Name: "default"}}},
	}}
	tbl := buildTable(t, m)
	machine := state.NewMachine(map[int]int{0: 0, 1: 0}, nil)

	Apply(tbl, machine, 0, []any{1.0, 2.0, 3.0})
	buf := &tbl.Functions[1].Inputs[0]
	var got []any
	for {
		v, ok := buf.Pop()
		if !ok {
			break
		}
		got = append(got, v)
	}
	if len(got) != 3 || got[0] != 1.0 || got[2] != 3.0 {
		t.Fatalf("got = %+v, want [1 2 3] in order", got)
	}
}

func TestApplySkipsMissingSelector(t *testing.T) {
	m := &manifest.Manifest{Functions: []manifest.RuntimeFunction{
		{ID: 0, Outputs: []manifest.OutputConnection{
			{DestFunctionID: 1, DestInputName: "default", Conversion: "identity",
				Selector: []manifest.SelectorSegment{{Field: "missing"}}},
		}},
		{ID: 1, Inputs: []manifest.PortSpec{{Name: "default"}}},
	}}
	tbl := buildTable(t, m)
	machine := state.NewMachine(map[int]int{0: 0, 1: 0}, nil)

	touched := Apply(tbl, machine, 0, map[string]any{"other": 1.0})
	if len(touched) != 0 {
		t.Fatalf("touched = %+v, want none", touched)
	}
	if tbl.Functions[1].Inputs[0].Full() {
		t.Error("destination should not have received a delivery")
	}
}

func TestApplyRaisesBlockOnAlreadyFullInput(t *testing.T) {
	m := &manifest.Manifest{Functions: []manifest.RuntimeFunction{
		{ID: 0, Outputs: []manifest.OutputConnection{{DestFunctionID: 1, DestInputName: "default", Conversion: "identity"}}},
		{ID: 1, Inputs: []manifest.PortSpec{{Name: "default"}}},
	}}
	tbl := buildTable(t, m)
	machine := state.NewMachine(map[int]int{0: 0, 1: 0}, nil)

	Apply(tbl, machine, 0, "first")
	if machine.OutputBlocked(0) {
		t.Fatal("function 0 should not be blocked after its first, uncontested delivery")
	}
	Apply(tbl, machine, 0, "second")
	if !machine.OutputBlocked(0) {
		t.Fatal("function 0 should be blocked: its destination's input already held an undelivered value")
	}
}

func TestApplyInitializerNeverBlocks(t *testing.T) {
	m := &manifest.Manifest{Functions: []manifest.RuntimeFunction{
		{ID: 0, Inputs: []manifest.PortSpec{{Name: "default"}}},
	}}
	tbl := buildTable(t, m)
	machine := state.NewMachine(map[int]int{0: 0}, nil)

	ApplyInitializer(machine, tbl.Functions[0], "default", "hello")
	ApplyInitializer(machine, tbl.Functions[0], "default", "again")
	if machine.OutputBlocked(0) {
		t.Error("initializer deliveries should never raise a Block")
	}
}
