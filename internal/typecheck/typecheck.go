// Package typecheck is the type checker (§4.E): a pure function from one
// collapsed edge's source/destination types and selector to the conversion
// the runtime must apply, or an error naming the incompatibility.
package typecheck

import (
	"fmt"

	"github.com/flowlang/flow/internal/model"
)

// Conversion is the per-edge policy the runtime applies to a delivered
// value before it reaches a destination input (spec.md "Output connection").
type Conversion int

const (
	Identity Conversion = iota
	Deserialize
	Wrap
	DeserializeWrap
)

func (c Conversion) String() string {
	switch c {
	case Identity:
		return "identity"
	case Deserialize:
		return "deserialize"
	case Wrap:
		return "wrap"
	case DeserializeWrap:
		return "deserialize_wrap"
	default:
		return "unknown"
	}
}

// TypeMismatchError names an edge whose effective source and destination
// types satisfy none of the compatibility rules (spec.md §7:
// IncompatibleTypes(from, to, S, D)).
type TypeMismatchError struct {
	Source, Destination model.DataType
	Selector            []model.SelectorSegment
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("incompatible types: source %s (selector %v) -> destination %s",
		e.Source, e.Selector, e.Destination)
}

// InvalidSelectorError names a selector segment that structurally
// disagrees with a statically known container kind (an index segment
// against a known object, or a field segment against a known array;
// spec.md §7: InvalidSelector(route, selector, S)).
type InvalidSelectorError struct {
	Segment model.SelectorSegment
	On      model.DataType
}

func (e *InvalidSelectorError) Error() string {
	return fmt.Sprintf("invalid selector segment %q on type %s", e.Segment, e.On)
}

// Check implements the seven rules of §4.E for one collapsed edge. src is
// the source function output's declared type before the selector is
// applied; dst is the destination function input's declared type.
func Check(selector []model.SelectorSegment, src, dst model.DataType) (Conversion, error) {
	effSrc, err := applySelector(src, selector)
	if err != nil {
		return 0, err
	}

	// Rule 1: either endpoint generic accepts unconditionally. The source
	// side is judged on the effective (post-selector) type, since that is
	// what every later rule compares against dst.
	if effSrc.IsGeneric() || dst.IsGeneric() {
		return Identity, nil
	}
	// Rule 3.
	if effSrc.Equal(dst) {
		return Identity, nil
	}
	// Rule 4: S == array/T, D == T for any T (including array/U).
	if effSrc.Kind == model.KindArray && effSrc.Elem != nil && effSrc.Elem.Equal(dst) {
		return Deserialize, nil
	}
	// Rule 5: S == T, D == array/T.
	if dst.Kind == model.KindArray && dst.Elem != nil && dst.Elem.Equal(effSrc) {
		return Wrap, nil
	}
	// Rule 6: S == array/array/T, D == T.
	if effSrc.Kind == model.KindArray && effSrc.Elem != nil &&
		effSrc.Elem.Kind == model.KindArray && effSrc.Elem.Elem != nil &&
		effSrc.Elem.Elem.Equal(dst) {
		return DeserializeWrap, nil
	}
	// Rule 7.
	return 0, &TypeMismatchError{Source: effSrc, Destination: dst, Selector: selector}
}

// applySelector narrows t by following path, one container level per
// segment: a numeric segment selects an array element, a string segment
// an object field. A segment whose kind disagrees with a statically known
// container is an error; an unparameterized container (Elem == nil) or an
// already-generic type cannot be narrowed further and falls back to
// generic, per §4.E's container-selector note.
func applySelector(t model.DataType, path []model.SelectorSegment) (model.DataType, error) {
	cur := t
	for _, seg := range path {
		if cur.IsGeneric() {
			return model.Generic, nil
		}
		if seg.IsIndex {
			if cur.Kind != model.KindArray {
				return model.DataType{}, &InvalidSelectorError{Segment: seg, On: cur}
			}
		} else {
			if cur.Kind != model.KindObject {
				return model.DataType{}, &InvalidSelectorError{Segment: seg, On: cur}
			}
		}
		if cur.Elem == nil {
			return model.Generic, nil
		}
		cur = *cur.Elem
	}
	return cur, nil
}
