package prune

import (
	"errors"
	"testing"

	"github.com/flowlang/flow/internal/flatten"
	"github.com/flowlang/flow/internal/model"
)

func TestPruneRemovesDeadChain(t *testing.T) {
	// dead -> deadSink(pure, no further output) never reaches an impure sink.
	// args(impure) -> live -> print(impure) survives.
	functions := map[model.Route]FuncInfo{
		"dead":     {Inputs: []model.Name{"in"}, Outputs: []model.Name{"out"}},
		"deadSink": {Inputs: []model.Name{"in"}, Outputs: []model.Name{"out"}},
		"live":     {Inputs: []model.Name{"in"}, Outputs: []model.Name{"out"}},
		"print":    {Impure: true, Inputs: []model.Name{"default"}},
		"args":     {Impure: true, Outputs: []model.Name{"out"}},
	}
	edges := []flatten.Edge{
		{From: "dead", FromPort: "out", To: "deadSink", ToPort: "in"},
		{From: "live", FromPort: "out", To: "print", ToPort: "default"},
		{From: "args", FromPort: "out", To: "live", ToPort: "in"},
	}

	result, err := Prune(functions, edges)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if len(result.Edges) != 2 || result.Edges[0].From != "live" || result.Edges[1].From != "args" {
		t.Fatalf("Edges = %+v, want only live->print and args->live", result.Edges)
	}
	if len(result.Warnings) != 3 {
		// dead (NoReachableSink), deadSink (NoReachableSink), and the one
		// dropped edge between them.
		t.Fatalf("len(Warnings) = %d, want 3: %+v", len(result.Warnings), result.Warnings)
	}
}

func TestPruneFixpointCascades(t *testing.T) {
	// a -> b -> c -> deadEnd (pure, no output at all): none of a/b/c reach a sink.
	functions := map[model.Route]FuncInfo{
		"a":       {Inputs: []model.Name{"in"}, Outputs: []model.Name{"out"}},
		"b":       {Inputs: []model.Name{"in"}, Outputs: []model.Name{"out"}},
		"c":       {Inputs: []model.Name{"in"}, Outputs: []model.Name{"out"}},
		"deadEnd": {Inputs: []model.Name{"in"}},
	}
	edges := []flatten.Edge{
		{From: "a", FromPort: "out", To: "b", ToPort: "in"},
		{From: "b", FromPort: "out", To: "c", ToPort: "in"},
		{From: "c", FromPort: "out", To: "deadEnd", ToPort: "in"},
	}
	result, err := Prune(functions, edges)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if len(result.Edges) != 0 {
		t.Fatalf("Edges = %+v, want none to survive", result.Edges)
	}
}

func TestPruneFibonacciLoopSurvives(t *testing.T) {
	functions := map[model.Route]FuncInfo{
		"add":   {Inputs: []model.Name{"i1", "i2"}, Outputs: []model.Name{"sum"}},
		"print": {Impure: true, Inputs: []model.Name{"default"}},
	}
	edges := []flatten.Edge{
		{From: "add", FromPort: "sum", To: "print", ToPort: "default"},
		{From: "add", FromPort: "sum", To: "add", ToPort: "i2"},
		{From: "add", FromPort: "i2", To: "add", ToPort: "i1"},
	}
	result, err := Prune(functions, edges)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if len(result.Edges) != 3 {
		t.Fatalf("len(Edges) = %d, want 3 (all survive)", len(result.Edges))
	}
	if len(result.Warnings) != 0 {
		t.Errorf("Warnings = %+v, want none", result.Warnings)
	}
}

func TestPruneFunctionWithoutInputErrors(t *testing.T) {
	// add reaches print but has no connected input at all.
	functions := map[model.Route]FuncInfo{
		"add":   {Inputs: []model.Name{"i1"}, Outputs: []model.Name{"sum"}},
		"print": {Impure: true, Inputs: []model.Name{"default"}},
	}
	edges := []flatten.Edge{
		{From: "add", FromPort: "sum", To: "print", ToPort: "default"},
	}
	_, err := Prune(functions, edges)
	if err == nil {
		t.Fatal("expected an error for add having no connected input")
	}
	var withoutInput *FunctionWithoutInputError
	if !errors.As(err, &withoutInput) {
		t.Fatalf("err = %v, want *FunctionWithoutInputError in the chain", err)
	}
	if withoutInput.Function != "add" {
		t.Errorf("Function = %q, want \"add\"", withoutInput.Function)
	}
}

func TestPruneFunctionWithoutOutputErrors(t *testing.T) {
	// splitter fans out to two distinct outputs, both reaching sinks — the
	// invariant requires exactly one connected output per pure function.
	functions := map[model.Route]FuncInfo{
		"splitter": {Inputs: []model.Name{"in"}, Outputs: []model.Name{"a", "b"}},
		"sinkA":    {Impure: true, Inputs: []model.Name{"default"}},
		"sinkB":    {Impure: true, Inputs: []model.Name{"default"}},
	}
	edges := []flatten.Edge{
		{From: "splitter", FromPort: "a", To: "sinkA", ToPort: "default"},
		{From: "splitter", FromPort: "b", To: "sinkB", ToPort: "default"},
	}
	_, err := Prune(functions, edges)
	if err == nil {
		t.Fatal("expected an error for splitter having two connected outputs")
	}
	var withoutOutput *FunctionWithoutOutputError
	if !errors.As(err, &withoutOutput) {
		t.Fatalf("err = %v, want *FunctionWithoutOutputError in the chain", err)
	}
	if withoutOutput.Count != 2 {
		t.Errorf("Count = %d, want 2", withoutOutput.Count)
	}
}
