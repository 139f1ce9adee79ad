// Package parse is the parser (§4.B): it decodes a definition document
// (function or flow) from bytes in one of several textual
// formats into the in-memory Document record. Two format backends feed a
// single decoder: a textual key-value format (grounded on the teacher's
// convert/descriptive.go line-oriented parsing style, §4.B) and a
// YAML/JSON backend (github.com/goccy/go-yaml, encoding/json). Both
// backends decode into the same generic map[string]any/[]any tree, which
// FromTree then turns into a Document — so format-specific quirks never
// leak past this file.
package parse

import "fmt"

// Kind is a document's kind. Parse detects it from the name field the
// document carries (`flow` or `function`); the loader does not supply it.
type Kind int

const (
	KindFlow Kind = iota
	KindFunction
)

// Port is an input or output as written in a document.
type Port struct {
	Name string
	Type string // empty means generic/untyped
}

// Initializer is `{ once = <value> }` or `{ always = <value> }`.
type Initializer struct {
	Once     any
	HasOnce  bool
	Always   any
	HasAlways bool
}

// ProcessRef is one `[[process]]` entry.
type ProcessRef struct {
	Source       string
	Alias        string
	Initializers map[string]Initializer
}

// Connection is one `[[connection]]` entry.
type Connection struct {
	Name string
	From string
	To   []string
}

// Document is the parser's output: every field a flow or function document
// may carry. Flow-only fields are zero-valued when Kind == KindFunction and
// vice versa.
type Document struct {
	Kind Kind

	Name    string // `flow = "name"` or `function = "name"`
	Docs    string
	Version string
	Authors []string

	Inputs  []Port
	Outputs []Port

	// Function-only.
	Source string
	Impure bool

	// Flow-only.
	Processes   []ProcessRef
	Connections []Connection
}

// Error kinds per spec.md §7.
type (
	// SyntaxError wraps a lower-level format error with the document's
	// canonical location.
	SyntaxError struct {
		Location string
		Detail   string
	}
	// MissingFieldError names a required field absent from the document.
	MissingFieldError struct{ Field string }
	// UnknownFieldError names a field the document carries that the
	// expected Kind does not recognize.
	UnknownFieldError struct{ Field string }
	// TypeMismatchError names a field whose value has the wrong shape.
	TypeMismatchError struct {
		Field string
		Want  string
		Got   string
	}
)

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error in %s: %s", e.Location, e.Detail)
}
func (e *MissingFieldError) Error() string { return fmt.Sprintf("missing required field %q", e.Field) }
func (e *UnknownFieldError) Error() string { return fmt.Sprintf("unknown field %q", e.Field) }
func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("field %q: want %s, got %s", e.Field, e.Want, e.Got)
}

// Format is a textual encoding of a Document tree.
type Format int

const (
	FormatKV Format = iota
	FormatYAML
	FormatJSON
)

// FormatForExtension maps a canonical location's extension to a Format, per
// §4.B "the selection is by extension."
func FormatForExtension(ext string) (Format, error) {
	switch ext {
	case "flow", "fn":
		return FormatKV, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	default:
		return 0, fmt.Errorf("unsupported definition extension %q", ext)
	}
}

// Parse decodes data (in format) into a Document, auto-detecting whether it
// declares a flow or a function by the presence of a top-level `flow` or
// `function` field — a process reference's source may point at either kind
// of document, so the kind cannot be known until the bytes are decoded.
func Parse(data []byte, format Format, location string) (*Document, error) {
	var tree map[string]any
	var err error
	switch format {
	case FormatKV:
		tree, err = decodeKV(data, location)
	case FormatYAML:
		tree, err = decodeYAML(data)
	case FormatJSON:
		tree, err = decodeJSON(data)
	default:
		return nil, fmt.Errorf("unknown format %v", format)
	}
	if err != nil {
		return nil, &SyntaxError{Location: location, Detail: err.Error()}
	}

	var kind Kind
	switch {
	case hasKey(tree, "flow"):
		kind = KindFlow
	case hasKey(tree, "function"):
		kind = KindFunction
	default:
		return nil, &MissingFieldError{Field: "flow|function"}
	}
	return FromTree(tree, kind)
}

func hasKey(tree map[string]any, key string) bool {
	_, ok := tree[key]
	return ok
}
