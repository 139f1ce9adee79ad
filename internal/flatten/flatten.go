// Package flatten is the connection flattener (§4.D): given the resolved
// process tree from internal/load, it collapses the flow-local connections
// declared at every level into the set of direct leaf-to-leaf edges the
// type checker and manifest emitter operate on.
//
// Every sub-flow input/output port is a transit node; every function
// input/output is a terminal node. Starting from each connection whose
// source is a genuine function output, a worklist follows transit hops
// (descending into a sub-flow through its aliased input, or ascending out
// of one through its declared output) until only terminal destinations
// remain, composing selector paths by concatenation along the way.
package flatten

import (
	"fmt"

	"github.com/flowlang/flow/internal/model"
)

// Edge is a single collapsed leaf-to-leaf wire: a function's output,
// possibly narrowed by a selector, feeding a function's input.
type Edge struct {
	From     model.Route
	FromPort model.Name
	To       model.Route
	ToPort   model.Name
	Name     string
	Selector []model.SelectorSegment
}

type parentLink struct {
	Route model.Route
	Alias model.Name
}

type treeIndex struct {
	flows  map[model.Route]*model.Flow
	parent map[model.Route]parentLink
}

// Flatten walks the resolved tree rooted at root and returns its collapsed
// edge list, in the deterministic pre-order the connections are first
// discovered.
func Flatten(root *model.Flow) ([]Edge, error) {
	idx := &treeIndex{
		flows:  map[model.Route]*model.Flow{model.RootRoute: root},
		parent: map[model.Route]parentLink{},
	}
	indexTree(model.RootRoute, root, idx)

	var edges []Edge
	var walk func(scope model.Route, flow *model.Flow) error
	walk = func(scope model.Route, flow *model.Flow) error {
		for _, c := range flow.Connections {
			from, err := model.ParseRoute(string(c.From))
			if err != nil {
				return fmt.Errorf("scope %q: connection %q: %w", scope, c.From, err)
			}
			// Only a genuine function-output source seeds a new edge chain;
			// an `input/x` pass-through or a sub-flow's own output is
			// reached instead by the transit expansion below, when the
			// worklist ascends into or out of that scope.
			if from.Kind != model.EndpointProcess {
				continue
			}
			child := lookupChild(flow, from.Process)
			if child == nil {
				return fmt.Errorf("scope %q: connection references unknown process %q", scope, from.Process)
			}
			fn, ok := child.Resolved.(*model.Function)
			if !ok {
				continue
			}
			ioName := from.IO
			if ioName == "" {
				var err error
				ioName, err = defaultPort(fn.Outputs, fmt.Sprintf("process %q output", from.Process))
				if err != nil {
					return err
				}
			}
			originPort, err := model.NewName(ioName)
			if err != nil {
				return err
			}

			var frontier []frontierItem
			for _, t := range c.To {
				to, err := model.ParseRoute(string(t))
				if err != nil {
					return fmt.Errorf("scope %q: connection %q: %w", scope, t, err)
				}
				frontier = append(frontier, frontierItem{scope: scope, node: to, selector: from.Selector})
			}
			got, err := expand(idx, child.Route, originPort, c.Name, frontier)
			if err != nil {
				return err
			}
			edges = append(edges, got...)
		}
		for _, pr := range flow.Processes {
			if childFlow, ok := pr.Resolved.(*model.Flow); ok {
				if err := walk(pr.Route, childFlow); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(model.RootRoute, root); err != nil {
		return nil, err
	}
	return edges, nil
}

func indexTree(route model.Route, proc model.Process, idx *treeIndex) {
	flow, ok := proc.(*model.Flow)
	if !ok {
		return
	}
	idx.flows[route] = flow
	for _, pr := range flow.Processes {
		idx.parent[pr.Route] = parentLink{Route: route, Alias: pr.EffectiveName()}
		indexTree(pr.Route, pr.Resolved, idx)
	}
}

func lookupChild(flow *model.Flow, alias string) *model.ProcessRef {
	for _, pr := range flow.Processes {
		if string(pr.EffectiveName()) == alias {
			return pr
		}
	}
	return nil
}

// frontierItem is a worklist entry: a destination endpoint not yet
// resolved to a terminal, with the selector accumulated to reach it.
type frontierItem struct {
	scope    model.Route
	node     model.ParsedRoute
	selector []model.SelectorSegment
}

// destRef is one parsed destination of a matched local connection.
type destRef struct {
	route    model.ParsedRoute
	selector []model.SelectorSegment
}

// expand drains a worklist seeded by one connection's destinations,
// descending into or ascending out of transit scopes until every entry
// resolves to a terminal function input, emitting one Edge each.
func expand(idx *treeIndex, originRoute model.Route, originPort model.Name, name string, start []frontierItem) ([]Edge, error) {
	var edges []Edge
	queue := start
	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		switch item.node.Kind {
		case model.EndpointProcess:
			flow := idx.flows[item.scope]
			if flow == nil {
				return nil, fmt.Errorf("scope %q not found while resolving process %q", item.scope, item.node.Process)
			}
			child := lookupChild(flow, item.node.Process)
			if child == nil {
				return nil, fmt.Errorf("scope %q: connection references unknown process %q", item.scope, item.node.Process)
			}
			switch r := child.Resolved.(type) {
			case *model.Function:
				ioName := item.node.IO
				if ioName == "" {
					var err error
					ioName, err = defaultPort(r.Inputs, fmt.Sprintf("process %q input", item.node.Process))
					if err != nil {
						return nil, err
					}
				}
				port, err := model.NewName(ioName)
				if err != nil {
					return nil, err
				}
				edges = append(edges, Edge{
					From:     originRoute,
					FromPort: originPort,
					To:       child.Route,
					ToPort:   port,
					Name:     name,
					Selector: item.selector,
				})
			case *model.Flow:
				ioName := item.node.IO
				if ioName == "" {
					var err error
					ioName, err = defaultPort(r.Inputs, fmt.Sprintf("sub-flow %q input", item.node.Process))
					if err != nil {
						return nil, err
					}
				}
				next, err := findSourceDestinations(idx, child.Route, model.ParsedRoute{Kind: model.EndpointInput, IO: ioName})
				if err != nil {
					return nil, err
				}
				for _, n := range next {
					queue = append(queue, frontierItem{
						scope:    child.Route,
						node:     n.route,
						selector: model.ComposeSelectors(item.selector, n.selector),
					})
				}
			default:
				return nil, fmt.Errorf("scope %q: process %q resolved to neither Function nor Flow", item.scope, item.node.Process)
			}

		case model.EndpointOutput:
			link, ok := idx.parent[item.scope]
			if !ok {
				// The root flow's own declared output: a structural sink
				// exposed to whoever runs the whole flow, not a further
				// wire within this graph.
				continue
			}
			parentNode := model.ParsedRoute{Kind: model.EndpointProcess, Process: string(link.Alias), IO: item.node.IO}
			next, err := findSourceDestinations(idx, link.Route, parentNode)
			if err != nil {
				return nil, err
			}
			for _, n := range next {
				queue = append(queue, frontierItem{
					scope:    link.Route,
					node:     n.route,
					selector: model.ComposeSelectors(item.selector, n.selector),
				})
			}

		case model.EndpointInput:
			return nil, fmt.Errorf("scope %q: input %q cannot be a connection destination", item.scope, item.node.IO)
		}
	}
	return edges, nil
}

// findSourceDestinations returns every local connection in scope whose
// source matches source (ignoring selector, which is not part of an
// endpoint's identity), parsed into destination endpoints paired with the
// selector carried on that connection's source.
func findSourceDestinations(idx *treeIndex, scope model.Route, source model.ParsedRoute) ([]destRef, error) {
	flow := idx.flows[scope]
	if flow == nil {
		return nil, fmt.Errorf("no flow at scope %q", scope)
	}
	var out []destRef
	for _, c := range flow.Connections {
		from, err := model.ParseRoute(string(c.From))
		if err != nil {
			return nil, fmt.Errorf("scope %q: connection %q: %w", scope, c.From, err)
		}
		if !sameEndpoint(from, source) {
			continue
		}
		for _, t := range c.To {
			to, err := model.ParseRoute(string(t))
			if err != nil {
				return nil, fmt.Errorf("scope %q: connection %q: %w", scope, t, err)
			}
			out = append(out, destRef{route: to, selector: from.Selector})
		}
	}
	return out, nil
}

func sameEndpoint(a, b model.ParsedRoute) bool {
	return a.Kind == b.Kind && a.Process == b.Process && a.IO == b.IO
}

func defaultPort(ports []model.Port, what string) (string, error) {
	switch len(ports) {
	case 0:
		return "", fmt.Errorf("%s: no ports declared to default to", what)
	case 1:
		return string(ports[0].Name), nil
	default:
		return "", fmt.Errorf("%s: ambiguous default among %d ports, route must name one", what, len(ports))
	}
}
