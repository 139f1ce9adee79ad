package model

import (
	"fmt"
	"strconv"
	"strings"
)

// RouteEndpointKind classifies the head of a parsed connection route.
type RouteEndpointKind int

const (
	// EndpointInput is `input/<name>`: an input of the current scope (flow).
	EndpointInput RouteEndpointKind = iota
	// EndpointOutput is `output/<name>`: an output of the current scope (flow).
	EndpointOutput
	// EndpointProcess is `<alias>[/<io_name>]`: a sub-process's input/output.
	EndpointProcess
)

// SelectorSegment is one step of an output selector path: either a numeric
// array index or a string object-field name.
type SelectorSegment struct {
	Index  int // valid when IsIndex
	Field  string
	IsIndex bool
}

func (s SelectorSegment) String() string {
	if s.IsIndex {
		return strconv.Itoa(s.Index)
	}
	return s.Field
}

// ParsedRoute is the decomposed form of a `from`/`to` route string:
// route := segment ("/" segment)*
// segment := "input" | "output" | identifier
// A trailing selector (only meaningful on `from` routes) is split off
// separately by ParseRoute when the head is `input`/`output`, or when it
// names a process's IO port with extra trailing segments.
type ParsedRoute struct {
	Kind     RouteEndpointKind
	Process  string // set when Kind == EndpointProcess; empty for input/output
	IO       string // the input/output name; empty selects the scope's default single IO
	Selector []SelectorSegment
}

// ParseRoute parses a route string per the grammar in spec.md §6.
//
// `input/<name>` and `output/<name>` select a scope-level port, with any
// further segments treated as a selector (meaningful only on `from`).
// `<alias>[/<io_name>][/<selector>...]` selects a sub-process's default or
// named IO, with any remaining segments forming the selector.
func ParseRoute(s string) (ParsedRoute, error) {
	if s == "" {
		return ParsedRoute{}, fmt.Errorf("empty route")
	}
	segs := strings.Split(s, "/")
	switch segs[0] {
	case "input":
		if len(segs) < 2 {
			return ParsedRoute{}, fmt.Errorf("route %q: input/ requires a name", s)
		}
		return ParsedRoute{Kind: EndpointInput, IO: segs[1], Selector: parseSelector(segs[2:])}, nil
	case "output":
		if len(segs) < 2 {
			return ParsedRoute{}, fmt.Errorf("route %q: output/ requires a name", s)
		}
		return ParsedRoute{Kind: EndpointOutput, IO: segs[1], Selector: parseSelector(segs[2:])}, nil
	default:
		proc := segs[0]
		if len(segs) == 1 {
			return ParsedRoute{Kind: EndpointProcess, Process: proc}, nil
		}
		// segs[1] is always taken as the IO name, so a selector on a
		// process route follows an explicit IO name (`alias/io/selector`);
		// the flattener uses IO as given.
		return ParsedRoute{Kind: EndpointProcess, Process: proc, IO: segs[1], Selector: parseSelector(segs[2:])}, nil
	}
}

func parseSelector(segs []string) []SelectorSegment {
	out := make([]SelectorSegment, 0, len(segs))
	for _, seg := range segs {
		if n, err := strconv.Atoi(seg); err == nil {
			out = append(out, SelectorSegment{Index: n, IsIndex: true})
		} else {
			out = append(out, SelectorSegment{Field: seg})
		}
	}
	return out
}

// ComposeSelectors concatenates selector paths that traverse multiple
// transit edges, per §4.D: "Optional output selector paths compose by
// concatenation when they traverse multiple transit edges."
func ComposeSelectors(outer, inner []SelectorSegment) []SelectorSegment {
	out := make([]SelectorSegment, 0, len(outer)+len(inner))
	out = append(out, outer...)
	out = append(out, inner...)
	return out
}
