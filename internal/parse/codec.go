package parse

import (
	"encoding/json"

	"github.com/goccy/go-yaml"
)

// decodeYAML unmarshals into a generic tree using the teacher's own YAML
// codec (github.com/goccy/go-yaml, convert/yaml.go).
func decodeYAML(data []byte) (map[string]any, error) {
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	return normalizeTree(tree), nil
}

// decodeJSON unmarshals into a generic tree using the standard library
// (the teacher's own convert/json.go also stays on encoding/json).
func decodeJSON(data []byte) (map[string]any, error) {
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	return normalizeTree(tree), nil
}

// normalizeTree recursively converts map[any]any (which goccy/go-yaml may
// produce for nested maps) into map[string]any so FromTree only ever has
// one map shape to deal with.
func normalizeTree(v any) map[string]any {
	out, _ := normalizeValue(v).(map[string]any)
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = normalizeValue(vv)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[toString(k)] = normalizeValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = normalizeValue(vv)
		}
		return out
	default:
		return v
	}
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
