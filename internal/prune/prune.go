// Package prune is the pruner (§4.F): it removes pure functions that
// cannot transitively reach an impure sink, iterating to a fixpoint, then
// validates that every surviving pure function still has an input fed by
// a connection and exactly one connected output.
package prune

import (
	"errors"
	"fmt"
	"slices"

	"github.com/flowlang/flow/internal/flatten"
	"github.com/flowlang/flow/internal/model"
)

// FuncInfo is the subset of a Function's declaration the pruner needs:
// whether it is a sink in its own right (impure) and its declared ports.
type FuncInfo struct {
	Impure  bool
	Inputs  []model.Name
	Outputs []model.Name
}

// NoReachableSinkWarning names a function dropped because none of its
// outputs, however indirectly, reach an impure function (spec.md §4.F /
// §7 `NoReachableSink(function)` — non-fatal, a dropped-function warning).
type NoReachableSinkWarning struct {
	Function model.Route
}

func (w NoReachableSinkWarning) String() string {
	return fmt.Sprintf("function %q: no reachable sink, dropped", w.Function)
}

// DroppedEdgeWarning names one connection removed as a side effect of
// dropping one of its endpoints (spec.md §4.F: "Dropped edges produce
// warnings with their route").
type DroppedEdgeWarning struct {
	Edge flatten.Edge
}

func (w DroppedEdgeWarning) String() string {
	return fmt.Sprintf("connection %s:%s -> %s:%s dropped", w.Edge.From, w.Edge.FromPort, w.Edge.To, w.Edge.ToPort)
}

// FunctionWithoutInputError names a surviving pure function with no input
// fed by any surviving connection (spec.md §7: `FunctionWithoutInput`).
type FunctionWithoutInputError struct {
	Function model.Route
}

func (e *FunctionWithoutInputError) Error() string {
	return fmt.Sprintf("function %q: pure function has no connected input", e.Function)
}

// FunctionWithoutOutputError names a surviving pure function that does not
// have exactly one output with a surviving destination (spec.md §7:
// `FunctionWithoutOutput`).
type FunctionWithoutOutputError struct {
	Function model.Route
	Count    int
}

func (e *FunctionWithoutOutputError) Error() string {
	return fmt.Sprintf("function %q: pure function has %d connected outputs, want exactly 1", e.Function, e.Count)
}

// Result is the outcome of one Prune call.
type Result struct {
	Edges     []flatten.Edge
	Survivors map[model.Route]bool
	Warnings  []fmt.Stringer
}

// Prune removes edges and functions per §4.F. functions is keyed by the
// same model.Route the edges in edges use for From/To. The returned Result
// holds the surviving edges and a set of non-fatal warnings; a non-nil
// error (an errors.Join of FunctionWithoutInputError/
// FunctionWithoutOutputError) means the caller must reject the compile.
func Prune(functions map[model.Route]FuncInfo, edges []flatten.Edge) (Result, error) {
	reachesSink := make(map[model.Route]bool, len(functions))
	for route, fn := range functions {
		if fn.Impure {
			reachesSink[route] = true
		}
	}

	outgoing := make(map[model.Route][]model.Route)
	for _, e := range edges {
		outgoing[e.From] = append(outgoing[e.From], e.To)
	}

	for changed := true; changed; {
		changed = false
		for route := range functions {
			if reachesSink[route] {
				continue
			}
			for _, to := range outgoing[route] {
				if reachesSink[to] {
					reachesSink[route] = true
					changed = true
					break
				}
			}
		}
	}

	var warnings []fmt.Stringer
	for route, fn := range functions {
		if !fn.Impure && !reachesSink[route] {
			warnings = append(warnings, NoReachableSinkWarning{Function: route})
		}
	}

	survivingEdges := make([]flatten.Edge, 0, len(edges))
	for _, e := range edges {
		if reachesSink[e.From] && reachesSink[e.To] {
			survivingEdges = append(survivingEdges, e)
			continue
		}
		warnings = append(warnings, DroppedEdgeWarning{Edge: e})
	}

	connectedInputs := make(map[model.Route]map[model.Name]bool)
	connectedOutputs := make(map[model.Route]map[model.Name]bool)
	for _, e := range survivingEdges {
		// Only declared outputs count: a loopback source such as add/i2
		// reads back one of the function's own inputs.
		if slices.Contains(functions[e.From].Outputs, e.FromPort) {
			if connectedOutputs[e.From] == nil {
				connectedOutputs[e.From] = map[model.Name]bool{}
			}
			connectedOutputs[e.From][e.FromPort] = true
		}
		if connectedInputs[e.To] == nil {
			connectedInputs[e.To] = map[model.Name]bool{}
		}
		connectedInputs[e.To][e.ToPort] = true
	}

	var errs []error
	for route, fn := range functions {
		if fn.Impure || !reachesSink[route] {
			continue
		}
		if len(connectedInputs[route]) == 0 {
			errs = append(errs, &FunctionWithoutInputError{Function: route})
		}
		if n := len(connectedOutputs[route]); n != 1 {
			errs = append(errs, &FunctionWithoutOutputError{Function: route, Count: n})
		}
	}
	if len(errs) > 0 {
		return Result{}, errors.Join(errs...)
	}
	return Result{Edges: survivingEdges, Survivors: reachesSink, Warnings: warnings}, nil
}
