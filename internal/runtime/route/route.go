// Package route is the value router (§4.K): on a completed job's result,
// it applies each output connection's selector and derived conversion in
// declared order, enqueues the resulting deliveries into destination
// input buffers, and recomputes each touched destination's state.
package route

import (
	"github.com/flowlang/flow/internal/manifest"
	"github.com/flowlang/flow/internal/runtime/state"
	"github.com/flowlang/flow/internal/runtime/table"
)

// Apply routes sourceFunctionID's job result V across its declared
// output connections and returns the (deduplicated, in first-touched
// order) destination function ids that received at least one delivery.
// Each delivery already recomputes its destination's state; the
// dispatcher does not use the returned ids.
func Apply(tbl *table.Table, machine *state.Machine, sourceFunctionID int, v any) []int {
	source := tbl.Functions[sourceFunctionID]
	var touched []int
	seen := map[int]bool{}

	for _, oc := range source.Outputs {
		selected, ok := selectValue(v, oc.Selector)
		if !ok {
			// Missing key or index out of range: skip this destination
			// silently, per §4.K.
			continue
		}
		dest := tbl.Functions[oc.DestFunctionID]
		idx, ok := dest.InputIndex(oc.DestInputName)
		if !ok {
			continue
		}
		for _, elem := range expand(selected, oc.Conversion) {
			deliver(machine, sourceFunctionID, dest, idx, elem)
			if !seen[dest.ID] {
				seen[dest.ID] = true
				touched = append(touched, dest.ID)
			}
		}
	}
	return touched
}

// expand turns one selected value into the ordered sequence of
// individual deliveries its conversion implies.
func expand(selected any, conversion string) []any {
	switch conversion {
	case "wrap":
		return []any{[]any{selected}}
	case "deserialize":
		arr, ok := selected.([]any)
		if !ok {
			return nil
		}
		return arr
	case "deserialize_wrap":
		outer, ok := selected.([]any)
		if !ok {
			return nil
		}
		var flat []any
		for _, inner := range outer {
			arr, ok := inner.([]any)
			if !ok {
				continue
			}
			flat = append(flat, arr...)
		}
		return flat
	default: // "identity"
		return []any{selected}
	}
}

// deliver enqueues v into dest's input at idx, raising a Block if that
// input already held an undelivered value, and recomputes dest's state.
func deliver(machine *state.Machine, sourceFunctionID int, dest *table.Function, idx int, v any) {
	alreadyFull := dest.Inputs[idx].Full()
	dest.Inputs[idx].Push(v)
	if alreadyFull {
		machine.AddBlock(state.Block{
			BlockingFunctionID: dest.ID,
			BlockedFunctionID:  sourceFunctionID,
			BlockedInputIndex:  idx,
		})
	}
	machine.OnValueReceived(dest.ID, dest.NeedsInput(), machine.OutputBlocked(dest.ID))
}

// selectValue walks a decoded value by selector, the runtime counterpart
// to internal/typecheck's static selector narrowing: a numeric segment
// indexes a []any, a string segment keys a map[string]any. An
// out-of-range index or missing key reports ok=false.
func selectValue(v any, selector []manifest.SelectorSegment) (any, bool) {
	cur := v
	for _, seg := range selector {
		if seg.IsIndex {
			arr, ok := cur.([]any)
			if !ok || seg.Index < 0 || seg.Index >= len(arr) {
				return nil, false
			}
			cur = arr[seg.Index]
		} else {
			obj, ok := cur.(map[string]any)
			if !ok {
				return nil, false
			}
			val, ok := obj[seg.Field]
			if !ok {
				return nil, false
			}
			cur = val
		}
	}
	return cur, true
}

// ApplyInitializer delivers init's value into functionID's named input,
// used both for the Once delivery before a function's first job and for
// an Always re-delivery after every completed job (spec.md "Input
// initializer"). Unlike a routed job result, an initializer has no
// producing function to hold off, so it never raises a Block even if the
// input already holds a value.
func ApplyInitializer(machine *state.Machine, fn *table.Function, inputName string, value any) {
	idx, ok := fn.InputIndex(inputName)
	if !ok {
		return
	}
	fn.Inputs[idx].Push(value)
	machine.OnValueReceived(fn.ID, fn.NeedsInput(), machine.OutputBlocked(fn.ID))
}
