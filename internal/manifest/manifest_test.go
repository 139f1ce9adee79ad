package manifest

import (
	"testing"

	"github.com/flowlang/flow/internal/flatten"
	"github.com/flowlang/flow/internal/model"
	"github.com/flowlang/flow/internal/typecheck"
)

func TestBuildAndRoundTrip(t *testing.T) {
	num := model.Scalar(model.KindNumber)
	add := &model.Function{
		Name:    "add",
		Inputs:  []model.Port{{Name: "i1", Type: num}, {Name: "i2", Type: num}},
		Outputs: []model.Port{{Name: "sum", Type: num}},
		Impl:    model.ImplRef{Kind: model.ImplLibrary, URL: "lib://math/add.wasm"},
	}
	print := &model.Function{
		Name:   "print",
		Inputs: []model.Port{{Name: "default"}},
		Impl:   model.ImplRef{Kind: model.ImplContext, URL: "context://stdout"},
		Impure: true,
	}
	root := &model.Flow{
		Name: "fibonacci",
		Processes: []*model.ProcessRef{
			{
				Alias:    "add",
				Resolved: add,
				Route:    "add",
				Initializers: map[model.Name]*model.Initializer{
					"i1": {Kind: model.Once, Value: float64(0)},
					"i2": {Kind: model.Once, Value: float64(1)},
				},
			},
			{Alias: "print", Resolved: print, Route: "print"},
		},
	}
	edges := []flatten.Edge{
		{From: "add", FromPort: "sum", To: "print", ToPort: "default"},
		{From: "add", FromPort: "sum", To: "add", ToPort: "i2"},
		{From: "add", FromPort: "i2", To: "add", ToPort: "i1"},
	}
	conversions := map[EdgeKey]typecheck.Conversion{}
	for _, e := range edges {
		conversions[KeyOf(e)] = typecheck.Identity
	}

	m, err := Build(BuildInput{
		Root:        root,
		Edges:       edges,
		Conversions: conversions,
		Survivors:   map[model.Route]bool{"add": true, "print": true},
		Libraries:   []string{"lib://math"},
		Version:     "0.1.0",
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(m.Functions) != 2 {
		t.Fatalf("len(Functions) = %d, want 2", len(m.Functions))
	}

	var addFn, printFn *RuntimeFunction
	for i := range m.Functions {
		switch m.Functions[i].Name {
		case "add":
			addFn = &m.Functions[i]
		case "print":
			printFn = &m.Functions[i]
		}
	}
	if addFn == nil || printFn == nil {
		t.Fatalf("missing function in manifest: %+v", m.Functions)
	}
	if len(addFn.Outputs) != 3 {
		t.Fatalf("add.Outputs = %+v, want 3 (sum->print, sum->i2, i2->i1, all originating from route \"add\")", addFn.Outputs)
	}
	if len(addFn.Init) != 2 {
		t.Errorf("add.Init = %+v, want 2 initializers", addFn.Init)
	}
	if printFn.Impure != true || printFn.Impl.Kind != "context" {
		t.Errorf("printFn = %+v", printFn)
	}

	data, err := Marshal(m)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	loaded, err := Load(data)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(loaded.Functions) != len(m.Functions) {
		t.Errorf("round trip: len(Functions) = %d, want %d", len(loaded.Functions), len(m.Functions))
	}
	if loaded.Version != "0.1.0" {
		t.Errorf("round trip: Version = %q", loaded.Version)
	}
}

func TestBuildSkipsPrunedFunctions(t *testing.T) {
	deadFn := &model.Function{Name: "dead", Inputs: []model.Port{{Name: "in"}}, Outputs: []model.Port{{Name: "out"}}}
	root := &model.Flow{
		Name: "solo",
		Processes: []*model.ProcessRef{
			{Alias: "dead", Resolved: deadFn, Route: "dead"},
		},
	}
	m, err := Build(BuildInput{
		Root:      root,
		Survivors: map[model.Route]bool{}, // dead did not survive pruning
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(m.Functions) != 0 {
		t.Errorf("Functions = %+v, want none", m.Functions)
	}
}
