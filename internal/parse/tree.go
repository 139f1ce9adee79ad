package parse

import (
	"fmt"
	"sort"
)

// FromTree builds a Document of the expected kind from a generic
// map[string]any/[]any tree (produced by either decodeKV or decodeYAML/
// decodeJSON), applying the MissingField/UnknownField/TypeMismatch checks
// from §4.B.
func FromTree(tree map[string]any, kind Kind) (*Document, error) {
	doc := &Document{Kind: kind}

	nameField := "flow"
	if kind == KindFunction {
		nameField = "function"
	}
	name, err := requiredString(tree, nameField)
	if err != nil {
		return nil, err
	}
	doc.Name = name

	doc.Docs, _ = optionalString(tree, "docs")
	if v, ok := tree["version"]; ok {
		s, ok := v.(string)
		if !ok {
			return nil, &TypeMismatchError{Field: "version", Want: "string", Got: typeName(v)}
		}
		doc.Version = s
	}
	if v, ok := tree["authors"]; ok {
		arr, ok := v.([]any)
		if !ok {
			return nil, &TypeMismatchError{Field: "authors", Want: "array", Got: typeName(v)}
		}
		for _, a := range arr {
			s, ok := a.(string)
			if !ok {
				return nil, &TypeMismatchError{Field: "authors", Want: "string", Got: typeName(a)}
			}
			doc.Authors = append(doc.Authors, s)
		}
	}

	doc.Inputs, err = parsePorts(tree, "input")
	if err != nil {
		return nil, err
	}
	doc.Outputs, err = parsePorts(tree, "output")
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindFunction:
		source, err := requiredString(tree, "source")
		if err != nil {
			return nil, err
		}
		doc.Source = source
		if v, ok := tree["impure"]; ok {
			b, ok := v.(bool)
			if !ok {
				return nil, &TypeMismatchError{Field: "impure", Want: "boolean", Got: typeName(v)}
			}
			doc.Impure = b
		}
		for _, known := range []string{"function", "docs", "version", "authors", "source", "impure", "input", "output"} {
			delete(tree, known)
		}
		if len(tree) > 0 {
			return nil, &UnknownFieldError{Field: firstKey(tree)}
		}

	case KindFlow:
		doc.Processes, err = parseProcesses(tree)
		if err != nil {
			return nil, err
		}
		doc.Connections, err = parseConnections(tree)
		if err != nil {
			return nil, err
		}
		for _, known := range []string{"flow", "docs", "version", "authors", "input", "output", "process", "connection"} {
			delete(tree, known)
		}
		if len(tree) > 0 {
			return nil, &UnknownFieldError{Field: firstKey(tree)}
		}
	}

	return doc, nil
}

func firstKey(m map[string]any) string {
	for k := range m {
		return k
	}
	return ""
}

func typeName(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func requiredString(tree map[string]any, field string) (string, error) {
	v, ok := tree[field]
	if !ok {
		return "", &MissingFieldError{Field: field}
	}
	s, ok := v.(string)
	if !ok {
		return "", &TypeMismatchError{Field: field, Want: "string", Got: typeName(v)}
	}
	return s, nil
}

func optionalString(tree map[string]any, field string) (string, bool) {
	v, ok := tree[field]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// parsePorts reads the `input`/`output` table: a map from port name to an
// (optional) `{ type = "..." }` table, per §6. The decoded table keeps no
// document order, so ports are returned sorted by name.
func parsePorts(tree map[string]any, field string) ([]Port, error) {
	v, ok := tree[field]
	if !ok {
		return nil, nil
	}
	tbl, ok := v.(map[string]any)
	if !ok {
		return nil, &TypeMismatchError{Field: field, Want: "table", Got: typeName(v)}
	}
	var ports []Port
	for name, raw := range tbl {
		port := Port{Name: name}
		if m, ok := raw.(map[string]any); ok {
			if t, ok := m["type"]; ok {
				s, ok := t.(string)
				if !ok {
					return nil, &TypeMismatchError{Field: field + "." + name + ".type", Want: "string", Got: typeName(t)}
				}
				port.Type = s
			}
		}
		ports = append(ports, port)
	}
	sort.Slice(ports, func(i, j int) bool { return ports[i].Name < ports[j].Name })
	return ports, nil
}

func parseProcesses(tree map[string]any) ([]ProcessRef, error) {
	v, ok := tree["process"]
	if !ok {
		return nil, nil
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, &TypeMismatchError{Field: "process", Want: "array of tables", Got: typeName(v)}
	}
	var out []ProcessRef
	for _, raw := range arr {
		tbl, ok := raw.(map[string]any)
		if !ok {
			return nil, &TypeMismatchError{Field: "process", Want: "table", Got: typeName(raw)}
		}
		ref := ProcessRef{}
		src, err := requiredString(tbl, "source")
		if err != nil {
			return nil, err
		}
		ref.Source = src
		ref.Alias, _ = optionalString(tbl, "alias")

		if inputs, ok := tbl["input"].(map[string]any); ok {
			ref.Initializers = map[string]Initializer{}
			for name, rawInit := range inputs {
				initTbl, ok := rawInit.(map[string]any)
				if !ok {
					return nil, &TypeMismatchError{Field: "process.input." + name, Want: "table", Got: typeName(rawInit)}
				}
				var init Initializer
				if once, ok := initTbl["once"]; ok {
					init.Once, init.HasOnce = once, true
				}
				if always, ok := initTbl["always"]; ok {
					init.Always, init.HasAlways = always, true
				}
				ref.Initializers[name] = init
			}
		}
		out = append(out, ref)
	}
	return out, nil
}

func parseConnections(tree map[string]any) ([]Connection, error) {
	v, ok := tree["connection"]
	if !ok {
		return nil, nil
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, &TypeMismatchError{Field: "connection", Want: "array of tables", Got: typeName(v)}
	}
	var out []Connection
	for _, raw := range arr {
		tbl, ok := raw.(map[string]any)
		if !ok {
			return nil, &TypeMismatchError{Field: "connection", Want: "table", Got: typeName(raw)}
		}
		conn := Connection{}
		from, err := requiredString(tbl, "from")
		if err != nil {
			return nil, err
		}
		conn.From = from
		conn.Name, _ = optionalString(tbl, "name")

		to, ok := tbl["to"]
		if !ok {
			return nil, &MissingFieldError{Field: "to"}
		}
		switch t := to.(type) {
		case string:
			conn.To = []string{t}
		case []any:
			for _, r := range t {
				s, ok := r.(string)
				if !ok {
					return nil, &TypeMismatchError{Field: "to", Want: "string", Got: typeName(r)}
				}
				conn.To = append(conn.To, s)
			}
		default:
			return nil, &TypeMismatchError{Field: "to", Want: "string or array", Got: typeName(to)}
		}
		out = append(out, conn)
	}
	return out, nil
}
