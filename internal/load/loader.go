// Package load is the loader/resolver (§4.C): starting from a root
// reference, it fetches and parses the root flow, then recursively
// resolves every process reference's source into an attached Process,
// propagating input initializers from the reference site and assigning
// every process a stable Route and numeric id by a deterministic
// pre-order walk. Cyclic reference chains and duplicate aliases at the
// same scope are rejected.
package load

import (
	"context"
	"fmt"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/flowlang/flow/internal/flowlog"
	"github.com/flowlang/flow/internal/ioref"
	"github.com/flowlang/flow/internal/model"
	"github.com/flowlang/flow/internal/parse"
)

// Loader resolves a flow's process tree against a content provider chain.
type Loader struct {
	providers *ioref.Chain
	nextID    int
}

// NewLoader builds a Loader over the given content provider chain (the
// compiler's configured file/http/lib/context resolvers, §4.A).
func NewLoader(providers *ioref.Chain) *Loader {
	return &Loader{providers: providers}
}

// Load fetches and parses rootRef and recursively resolves its process
// tree, returning the root Flow with every descendant Process attached,
// Routes assigned, and initializers propagated.
func (l *Loader) Load(ctx context.Context, rootRef string) (*model.Flow, error) {
	doc, _, chain, err := l.fetch(ctx, rootRef, nil)
	if err != nil {
		return nil, err
	}
	proc, err := l.build(ctx, doc, model.RootRoute, chain)
	if err != nil {
		return nil, err
	}
	flow, ok := proc.(*model.Flow)
	if !ok {
		return nil, &NotRootFlowError{Ref: rootRef}
	}
	return flow, nil
}

// fetch resolves ref to bytes via the provider chain, rejects it if its
// canonical location already appears in chain (a cycle), and parses it
// into a parse.Document. It returns the extended chain for the caller to
// thread into any nested fetch.
func (l *Loader) fetch(ctx context.Context, ref string, chain []string) (*parse.Document, string, []string, error) {
	resolved, err := l.providers.Resolve(ctx, ref)
	if err != nil {
		return nil, "", nil, err
	}
	for _, seen := range chain {
		if seen == resolved.Canonical {
			return nil, "", nil, &CyclicReferenceError{
				Chain: append(append([]string{}, chain...), resolved.Canonical),
			}
		}
	}
	extended := append(append([]string{}, chain...), resolved.Canonical)

	format, err := parse.FormatForExtension(extensionOf(resolved.Canonical))
	if err != nil {
		return nil, "", nil, err
	}
	doc, err := parse.Parse(resolved.Bytes, format, resolved.Canonical)
	if err != nil {
		return nil, "", nil, err
	}
	return doc, resolved.Canonical, extended, nil
}

// build converts a parsed Document into a model.Process at route,
// recursively resolving nested process references for a flow document.
func (l *Loader) build(ctx context.Context, doc *parse.Document, route model.Route, chain []string) (model.Process, error) {
	switch doc.Kind {
	case parse.KindFunction:
		return l.buildFunction(doc)
	case parse.KindFlow:
		return l.buildFlow(ctx, doc, route, chain)
	default:
		return nil, fmt.Errorf("unknown document kind for %q", doc.Name)
	}
}

func (l *Loader) buildFunction(doc *parse.Document) (*model.Function, error) {
	name, err := model.NewName(doc.Name)
	if err != nil {
		return nil, err
	}
	inputs, err := toPorts(doc.Inputs)
	if err != nil {
		return nil, err
	}
	outputs, err := toPorts(doc.Outputs)
	if err != nil {
		return nil, err
	}
	impl, err := parseImplRef(doc.Source)
	if err != nil {
		return nil, err
	}
	return &model.Function{
		Name:    name,
		Inputs:  inputs,
		Outputs: outputs,
		Docs:    doc.Docs,
		Impure:  doc.Impure,
		Impl:    impl,
	}, nil
}

func (l *Loader) buildFlow(ctx context.Context, doc *parse.Document, route model.Route, chain []string) (*model.Flow, error) {
	name, err := model.NewName(doc.Name)
	if err != nil {
		return nil, err
	}
	inputs, err := toPorts(doc.Inputs)
	if err != nil {
		return nil, err
	}
	outputs, err := toPorts(doc.Outputs)
	if err != nil {
		return nil, err
	}

	// Per-scope alias table: ordered so duplicate-alias detection and the
	// deterministic pre-order child walk share one structure (§4.C).
	scope := orderedmap.New[model.Name, model.Route]()
	processes := make([]*model.ProcessRef, 0, len(doc.Processes))
	for _, pr := range doc.Processes {
		child, err := l.buildProcessRef(ctx, pr, route, chain, scope)
		if err != nil {
			return nil, err
		}
		processes = append(processes, child)
	}

	connections := make([]*model.ConnectionDef, 0, len(doc.Connections))
	for _, c := range doc.Connections {
		to := make([]model.Route, 0, len(c.To))
		for _, t := range c.To {
			to = append(to, model.Route(t))
		}
		connections = append(connections, &model.ConnectionDef{
			Name: c.Name,
			From: model.Route(c.From),
			To:   to,
		})
	}

	flowlog.Debug(ctx, "loaded flow", "name", string(name), "route", route.String(), "processes", len(processes))

	return &model.Flow{
		Name:        name,
		Inputs:      inputs,
		Outputs:     outputs,
		Docs:        doc.Docs,
		Version:     doc.Version,
		Authors:     doc.Authors,
		Processes:   processes,
		Connections: connections,
	}, nil
}

// buildProcessRef fetches and builds the process pr refers to, assigns it
// a stable Route (parentRoute joined with its alias, or its own name when
// unaliased) and a numeric id, registers the effective name in scope to
// catch duplicate aliases, and propagates pr's input initializers onto the
// returned ProcessRef.
func (l *Loader) buildProcessRef(ctx context.Context, pr parse.ProcessRef, parentRoute model.Route, chain []string, scope *orderedmap.OrderedMap[model.Name, model.Route]) (*model.ProcessRef, error) {
	var alias model.Name
	if pr.Alias != "" {
		a, err := model.NewName(pr.Alias)
		if err != nil {
			return nil, err
		}
		alias = a
	}

	doc, canonical, childChain, err := l.fetch(ctx, pr.Source, chain)
	if err != nil {
		return nil, err
	}

	effective := alias
	if effective == "" {
		n, err := model.NewName(doc.Name)
		if err != nil {
			return nil, err
		}
		effective = n
	}

	if _, exists := scope.Get(effective); exists {
		return nil, &DuplicateAliasError{Scope: parentRoute.String(), Name: string(effective)}
	}
	childRoute := parentRoute.Join(effective)
	scope.Set(effective, childRoute)

	flowlog.Debug(ctx, "resolving process reference", "source", pr.Source, "canonical", canonical, "route", childRoute.String())

	l.nextID++
	id := l.nextID

	resolved, err := l.build(ctx, doc, childRoute, childChain)
	if err != nil {
		return nil, err
	}

	initializers := map[model.Name]*model.Initializer{}
	for inputName, init := range pr.Initializers {
		name, err := model.NewName(inputName)
		if err != nil {
			return nil, err
		}
		switch {
		case init.HasOnce:
			initializers[name] = &model.Initializer{Kind: model.Once, Value: init.Once}
		case init.HasAlways:
			initializers[name] = &model.Initializer{Kind: model.Always, Value: init.Always}
		}
	}

	return &model.ProcessRef{
		Source:       pr.Source,
		Alias:        alias,
		Initializers: initializers,
		Resolved:     resolved,
		Route:        childRoute,
		ID:           id,
	}, nil
}

func toPorts(ports []parse.Port) ([]model.Port, error) {
	out := make([]model.Port, 0, len(ports))
	for _, p := range ports {
		name, err := model.NewName(p.Name)
		if err != nil {
			return nil, err
		}
		dt, err := model.ParseDataType(p.Type)
		if err != nil {
			return nil, err
		}
		out = append(out, model.Port{Name: name, Type: dt})
	}
	return out, nil
}

// parseImplRef classifies a Function document's source field into the
// three ImplRefKinds spec.md §3 describes.
func parseImplRef(source string) (model.ImplRef, error) {
	switch {
	case source == "":
		return model.ImplRef{}, fmt.Errorf("function missing source")
	case strings.HasPrefix(source, "lib://"):
		return model.ImplRef{Kind: model.ImplLibrary, URL: source}, nil
	case strings.HasPrefix(source, "context://"):
		return model.ImplRef{Kind: model.ImplContext, URL: source}, nil
	default:
		return model.ImplRef{Kind: model.ImplSource, URL: source}, nil
	}
}

// extensionOf returns the final path segment's extension (without the
// dot), or "" if the canonical location's last path segment has none.
func extensionOf(location string) string {
	idx := strings.LastIndexByte(location, '.')
	slash := strings.LastIndexAny(location, "/\\")
	if idx < 0 || idx < slash {
		return ""
	}
	return location[idx+1:]
}
