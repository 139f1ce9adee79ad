// Package compile wires the loader, flattener, type checker, pruner, and
// manifest emitter (§4.C–§4.G) into the single pipeline cmd/flowc drives:
// load a root flow reference, flatten its connections to leaf-to-leaf
// edges, type-check and derive a conversion for every edge, prune
// unreachable pure functions to a fixpoint, and emit the resulting
// manifest. Kept out of cmd/flowc itself so the CLI stays a thin flag
// parser over this package, the same way the teacher keeps its
// examples/*/main.go binaries thin over pkg/calque.Flow.
package compile

import (
	"context"
	"fmt"
	"sort"

	"github.com/flowlang/flow/internal/flatten"
	"github.com/flowlang/flow/internal/flowlog"
	"github.com/flowlang/flow/internal/ioref"
	"github.com/flowlang/flow/internal/load"
	"github.com/flowlang/flow/internal/manifest"
	"github.com/flowlang/flow/internal/model"
	"github.com/flowlang/flow/internal/prune"
	"github.com/flowlang/flow/internal/typecheck"
)

// Result is one successful compile's output: the manifest and any
// non-fatal pruning warnings the caller should surface.
type Result struct {
	Manifest *manifest.Manifest
	Warnings []fmt.Stringer
}

// Options configures one compile (spec.md §6's "CLI surface of the
// compiler"): the content provider chain, and the manifest's own
// version/authors metadata.
type Options struct {
	Providers *ioref.Chain
	Version   string
	Authors   []string
}

// Run executes the full compiler pipeline over rootRef and returns the
// emitted manifest. A type mismatch or a structurally invalid surviving
// function aborts the compile with no manifest emitted, matching the
// "Type mismatch" and pruning-error seed scenarios.
func Run(ctx context.Context, rootRef string, opts Options) (*Result, error) {
	loader := load.NewLoader(opts.Providers)
	root, err := loader.Load(ctx, rootRef)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}

	edges, err := flatten.Flatten(root)
	if err != nil {
		return nil, fmt.Errorf("flatten: %w", err)
	}

	functions := collectFunctions(root)

	funcInfo := make(map[model.Route]prune.FuncInfo, len(functions))
	for route, fn := range functions {
		info := prune.FuncInfo{Impure: fn.Impure}
		for _, p := range fn.Inputs {
			info.Inputs = append(info.Inputs, p.Name)
		}
		for _, p := range fn.Outputs {
			info.Outputs = append(info.Outputs, p.Name)
		}
		funcInfo[route] = info
	}

	conversions := make(map[manifest.EdgeKey]typecheck.Conversion, len(edges))
	for _, e := range edges {
		srcFn, ok := functions[e.From]
		if !ok {
			return nil, fmt.Errorf("type check: edge %s:%s -> %s:%s: unknown source function", e.From, e.FromPort, e.To, e.ToPort)
		}
		dstFn, ok := functions[e.To]
		if !ok {
			return nil, fmt.Errorf("type check: edge %s:%s -> %s:%s: unknown destination function", e.From, e.FromPort, e.To, e.ToPort)
		}
		src := portType(srcFn.Outputs, e.FromPort)
		dst := portType(dstFn.Inputs, e.ToPort)
		conv, err := typecheck.Check(e.Selector, src, dst)
		if err != nil {
			return nil, fmt.Errorf("type check: edge %s:%s -> %s:%s: %w", e.From, e.FromPort, e.To, e.ToPort, err)
		}
		conversions[manifest.KeyOf(e)] = conv
	}

	pruned, err := prune.Prune(funcInfo, edges)
	if err != nil {
		return nil, fmt.Errorf("prune: %w", err)
	}
	for _, w := range pruned.Warnings {
		flowlog.Warn(ctx, "prune", "detail", w.String())
	}

	m, err := manifest.Build(manifest.BuildInput{
		Root:        root,
		Edges:       pruned.Edges,
		Conversions: conversions,
		Survivors:   pruned.Survivors,
		Libraries:   libraryReferences(functions),
		Version:     opts.Version,
		Authors:     opts.Authors,
	})
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}

	return &Result{Manifest: m, Warnings: pruned.Warnings}, nil
}

// collectFunctions walks the resolved tree once, returning every leaf
// function keyed by the route its owning ProcessRef was assigned.
func collectFunctions(root *model.Flow) map[model.Route]*model.Function {
	out := make(map[model.Route]*model.Function)
	var walk func(flow *model.Flow)
	walk = func(flow *model.Flow) {
		for _, pr := range flow.Processes {
			switch r := pr.Resolved.(type) {
			case *model.Function:
				out[pr.Route] = r
			case *model.Flow:
				walk(r)
			}
		}
	}
	walk(root)
	return out
}

// portType looks up name among ports, returning model.Generic if the
// function declares no such port. Neither the loader nor the flattener
// checks that a named port exists, so an input read back as a source (the
// add/i2 loopback) and an undeclared port name both type as generic.
func portType(ports []model.Port, name model.Name) model.DataType {
	for _, p := range ports {
		if p.Name == name {
			return p.Type
		}
	}
	return model.Generic
}

// libraryReferences collects the distinct lib:// URLs the resolved tree's
// functions reference, in sorted order, for the manifest's "required
// library references" (spec.md §6).
func libraryReferences(functions map[model.Route]*model.Function) []string {
	seen := make(map[string]bool)
	var libs []string
	for _, fn := range functions {
		if fn.Impl.Kind != model.ImplLibrary {
			continue
		}
		if !seen[fn.Impl.URL] {
			seen[fn.Impl.URL] = true
			libs = append(libs, fn.Impl.URL)
		}
	}
	sort.Strings(libs)
	return libs
}
