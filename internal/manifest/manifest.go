// Package manifest is the manifest emitter and loader (§4.G): the
// self-contained JSON document the compiler writes and the runtime reads,
// enumerating runtime functions, their output connections with derived
// conversion and selector, initializers, and flow membership.
package manifest

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/flowlang/flow/internal/flatten"
	"github.com/flowlang/flow/internal/model"
	"github.com/flowlang/flow/internal/prune"
	"github.com/flowlang/flow/internal/typecheck"
)

// Manifest is the compiled, self-contained artifact the runtime loads.
// `$schema` carries the document's own reflected JSON Schema, generated at
// emit time from this same struct (the teacher's own convert/jsonschema.go
// convention of shipping a value alongside its reflected schema).
type Manifest struct {
	Schema    *jsonschema.Schema `json:"$schema,omitempty"`
	Version   string             `json:"version"`
	Authors   []string           `json:"authors,omitempty"`
	Libraries []string           `json:"libraries"`
	Functions []RuntimeFunction  `json:"functions"`
}

// RuntimeFunction is the post-compile entity (spec.md "Runtime function"):
// a dense numeric id, its owning flow id, implementation locator, ordered
// input ports, ordered output connections, and declared initializers.
type RuntimeFunction struct {
	ID      int                 `json:"id"`
	FlowID  int                 `json:"flow_id"`
	Name    string              `json:"name"`
	Impure  bool                `json:"impure,omitempty"`
	Impl    ImplLocator         `json:"impl"`
	Inputs  []PortSpec          `json:"inputs"`
	Outputs []OutputConnection  `json:"outputs"`
	Init    []InitializerSpec   `json:"initializers,omitempty"`
}

// ImplLocator names how to resolve a function's implementation.
type ImplLocator struct {
	Kind string `json:"kind"` // "library" | "context" | "source"
	URL  string `json:"url"`
}

// PortSpec is one declared input or output port.
type PortSpec struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// SelectorSegment mirrors model.SelectorSegment in wire form.
type SelectorSegment struct {
	Field   string `json:"field,omitempty"`
	Index   int    `json:"index,omitempty"`
	IsIndex bool   `json:"is_index,omitempty"`
}

// OutputConnection is one routed destination: the destination function id,
// the destination input by name (not by index; the runtime table maps the
// name to a buffer index when it is built), an optional output selector,
// and the conversion.
type OutputConnection struct {
	DestFunctionID int               `json:"dest_function_id"`
	DestInputName  string            `json:"dest_input_name"`
	Selector       []SelectorSegment `json:"selector,omitempty"`
	Conversion     string            `json:"conversion"`
}

// InitializerSpec attaches a declared value to one input of one runtime
// function (Once or Always).
type InitializerSpec struct {
	Input string `json:"input"`
	Kind  string `json:"kind"` // "once" | "always"
	Value any    `json:"value"`
}

// EdgeKey is a comparable identity for a flatten.Edge (the Edge type
// itself carries a Selector slice, which Go will not allow as a map key).
type EdgeKey struct {
	From, To         model.Route
	FromPort, ToPort model.Name
}

// KeyOf extracts e's EdgeKey.
func KeyOf(e flatten.Edge) EdgeKey {
	return EdgeKey{From: e.From, To: e.To, FromPort: e.FromPort, ToPort: e.ToPort}
}

// BuildInput is everything Build needs beyond the resolved process tree:
// the edges surviving pruning, and each edge's derived conversion.
type BuildInput struct {
	Root        *model.Flow
	Edges       []flatten.Edge
	Conversions map[EdgeKey]typecheck.Conversion
	Survivors   map[model.Route]bool
	Libraries   []string
	Version     string
	Authors     []string
}

// site is one surviving leaf function discovered by a pre-order walk of
// the resolved tree, paired with the route of its owning flow scope.
type site struct {
	route     model.Route
	flowRoute model.Route
	fn        *model.Function
}

// Build assembles a Manifest from a pruned, type-checked compile. Function
// and flow ids are assigned densely in the same pre-order the loader
// discovers them in, restricted to functions prune.Prune kept; this keeps
// manifest output reproducible across runs with identical inputs (§4.D's
// "deterministic pre-order" guarantee, carried through to emission).
func Build(in BuildInput) (*Manifest, error) {
	var sites []site
	flowIDs := map[model.Route]int{model.RootRoute: 0}
	flowOrder := []model.Route{model.RootRoute}

	var walk func(scope model.Route, flow *model.Flow)
	walk = func(scope model.Route, flow *model.Flow) {
		for _, pr := range flow.Processes {
			switch r := pr.Resolved.(type) {
			case *model.Function:
				if in.Survivors != nil && !in.Survivors[pr.Route] {
					continue
				}
				sites = append(sites, site{route: pr.Route, flowRoute: scope, fn: r})
			case *model.Flow:
				if _, ok := flowIDs[pr.Route]; !ok {
					flowIDs[pr.Route] = len(flowOrder)
					flowOrder = append(flowOrder, pr.Route)
				}
				walk(pr.Route, r)
			}
		}
	}
	walk(model.RootRoute, in.Root)

	funcIDs := make(map[model.Route]int, len(sites))
	for i, s := range sites {
		funcIDs[s.route] = i
	}

	outByRoute := make(map[model.Route][]flatten.Edge)
	for _, e := range in.Edges {
		outByRoute[e.From] = append(outByRoute[e.From], e)
	}

	functions := make([]RuntimeFunction, 0, len(sites))
	for i, s := range sites {
		rf := RuntimeFunction{
			ID:     i,
			FlowID: flowIDs[s.flowRoute],
			Name:   string(s.fn.Name),
			Impure: s.fn.Impure,
			Impl:   toImplLocator(s.fn.Impl),
		}
		for _, p := range s.fn.Inputs {
			rf.Inputs = append(rf.Inputs, PortSpec{Name: string(p.Name), Type: p.Type.String()})
		}
		for _, e := range outByRoute[s.route] {
			destID, ok := funcIDs[e.To]
			if !ok {
				return nil, fmt.Errorf("edge %s:%s -> %s:%s: destination not among surviving functions", e.From, e.FromPort, e.To, e.ToPort)
			}
			conv, ok := in.Conversions[KeyOf(e)]
			if !ok {
				return nil, fmt.Errorf("edge %s:%s -> %s:%s: no derived conversion", e.From, e.FromPort, e.To, e.ToPort)
			}
			rf.Outputs = append(rf.Outputs, OutputConnection{
				DestFunctionID: destID,
				DestInputName:  string(e.ToPort),
				Selector:       toWireSelector(e.Selector),
				Conversion:     conv.String(),
			})
		}
		functions = append(functions, rf)
	}

	// Initializers are attached to ProcessRef sites, not function
	// definitions; walk the tree again to collect them against the now
	// dense function ids (only for survivors, in deterministic Name order
	// since map iteration over Initializers is otherwise unordered).
	var attachInit func(scope model.Route, flow *model.Flow)
	attachInit = func(scope model.Route, flow *model.Flow) {
		for _, pr := range flow.Processes {
			switch r := pr.Resolved.(type) {
			case *model.Function:
				id, ok := funcIDs[pr.Route]
				if !ok {
					continue
				}
				names := make([]string, 0, len(pr.Initializers))
				for name := range pr.Initializers {
					names = append(names, string(name))
				}
				sort.Strings(names)
				for _, name := range names {
					init := pr.Initializers[model.Name(name)]
					kind := "once"
					if init.Kind == model.Always {
						kind = "always"
					}
					functions[id].Init = append(functions[id].Init, InitializerSpec{
						Input: name,
						Kind:  kind,
						Value: init.Value,
					})
				}
			case *model.Flow:
				attachInit(pr.Route, r)
			}
		}
	}
	attachInit(model.RootRoute, in.Root)

	m := &Manifest{
		Version:   in.Version,
		Authors:   in.Authors,
		Libraries: append([]string{}, in.Libraries...),
		Functions: functions,
	}
	m.Schema = reflectSchema()
	return m, nil
}

func toImplLocator(ref model.ImplRef) ImplLocator {
	kind, url := "source", ref.URL
	switch ref.Kind {
	case model.ImplLibrary:
		kind, url = "library", strings.TrimPrefix(ref.URL, "lib://")
	case model.ImplContext:
		kind, url = "context", strings.TrimPrefix(ref.URL, "context://")
	}
	return ImplLocator{Kind: kind, URL: url}
}

func toWireSelector(segs []model.SelectorSegment) []SelectorSegment {
	if len(segs) == 0 {
		return nil
	}
	out := make([]SelectorSegment, len(segs))
	for i, s := range segs {
		out[i] = SelectorSegment{Field: s.Field, Index: s.Index, IsIndex: s.IsIndex}
	}
	return out
}

var reflector = &jsonschema.Reflector{}

func reflectSchema() *jsonschema.Schema {
	return reflector.Reflect(&Manifest{})
}

// Marshal serializes m with indentation, matching the teacher's own
// json.MarshalIndent convention for emitted documents.
func Marshal(m *Manifest) ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// Load parses a manifest document previously written by Build/Marshal.
func Load(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	return &m, nil
}
