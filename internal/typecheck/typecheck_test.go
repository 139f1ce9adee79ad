package typecheck

import (
	"testing"

	"github.com/flowlang/flow/internal/model"
)

func mustType(t *testing.T, s string) model.DataType {
	t.Helper()
	dt, err := model.ParseDataType(s)
	if err != nil {
		t.Fatalf("ParseDataType(%q): %v", s, err)
	}
	return dt
}

func TestCheckIdentity(t *testing.T) {
	num := mustType(t, "number")
	conv, err := Check(nil, num, num)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if conv != Identity {
		t.Errorf("conv = %v, want Identity", conv)
	}
}

func TestCheckGenericAccepts(t *testing.T) {
	num := mustType(t, "number")
	conv, err := Check(nil, model.Generic, num)
	if err != nil || conv != Identity {
		t.Errorf("src generic: conv=%v err=%v, want Identity/nil", conv, err)
	}
	conv, err = Check(nil, num, model.Generic)
	if err != nil || conv != Identity {
		t.Errorf("dst generic: conv=%v err=%v, want Identity/nil", conv, err)
	}
}

func TestCheckDeserialize(t *testing.T) {
	src := mustType(t, "array/number")
	dst := mustType(t, "number")
	conv, err := Check(nil, src, dst)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if conv != Deserialize {
		t.Errorf("conv = %v, want Deserialize", conv)
	}
}

func TestCheckWrap(t *testing.T) {
	src := mustType(t, "number")
	dst := mustType(t, "array/number")
	conv, err := Check(nil, src, dst)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if conv != Wrap {
		t.Errorf("conv = %v, want Wrap", conv)
	}
}

func TestCheckDeserializeWrap(t *testing.T) {
	src := mustType(t, "array/array/number")
	dst := mustType(t, "number")
	conv, err := Check(nil, src, dst)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if conv != DeserializeWrap {
		t.Errorf("conv = %v, want DeserializeWrap", conv)
	}
}

func TestCheckMismatch(t *testing.T) {
	src := mustType(t, "string")
	dst := mustType(t, "number")
	_, err := Check(nil, src, dst)
	mismatch, ok := err.(*TypeMismatchError)
	if !ok {
		t.Fatalf("err = %v (%T), want *TypeMismatchError", err, err)
	}
	if !mismatch.Source.Equal(src) || !mismatch.Destination.Equal(dst) {
		t.Errorf("mismatch = %+v", mismatch)
	}
}

func TestCheckSelectorNarrowsObjectField(t *testing.T) {
	src := mustType(t, "object/number")
	dst := mustType(t, "number")
	selector := []model.SelectorSegment{{Field: "count"}}
	conv, err := Check(selector, src, dst)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if conv != Identity {
		t.Errorf("conv = %v, want Identity", conv)
	}
}

func TestCheckSelectorNarrowsArrayIndex(t *testing.T) {
	src := mustType(t, "array/string")
	dst := mustType(t, "string")
	selector := []model.SelectorSegment{{Index: 0, IsIndex: true}}
	conv, err := Check(selector, src, dst)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if conv != Identity {
		t.Errorf("conv = %v, want Identity", conv)
	}
}

func TestCheckSelectorKindMismatchErrors(t *testing.T) {
	src := mustType(t, "object/number")
	selector := []model.SelectorSegment{{Index: 0, IsIndex: true}}
	_, err := Check(selector, src, mustType(t, "number"))
	if _, ok := err.(*InvalidSelectorError); !ok {
		t.Fatalf("err = %v (%T), want *InvalidSelectorError", err, err)
	}
}

func TestCheckSelectorOnUnparameterizedContainerFallsBackToGeneric(t *testing.T) {
	src := model.Scalar(model.KindArray) // array with no declared element type
	dst := mustType(t, "string")
	selector := []model.SelectorSegment{{Index: 0, IsIndex: true}}
	conv, err := Check(selector, src, dst)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if conv != Identity {
		t.Errorf("conv = %v, want Identity (generic fallback accepts)", conv)
	}
}
