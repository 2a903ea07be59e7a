package params

import (
	"errors"
	"math"
	"testing"
)

func TestConstructorsRejectEmpty(t *testing.T) {
	if _, err := NewWeights(0); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty for weights, got %v", err)
	}
	if _, err := NewResistances(-3); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty for resistances, got %v", err)
	}
}

func TestArrayAccessors(t *testing.T) {
	w, err := NewWeights(4)
	if err != nil {
		t.Fatalf("new weights: %v", err)
	}
	w.Fill(1)
	if err := w.Set(2, 3.5); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := w.Set(4, 1); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected out of range, got %v", err)
	}
	if v, ok := w.At(2); !ok || v != 3.5 {
		t.Fatalf("unexpected at(2): %v %t", v, ok)
	}
	if _, ok := w.At(-1); ok {
		t.Fatal("expected negative index to be absent")
	}

	got := w.Slice(1, 4)
	if got[0] != 1 || got[1] != 3.5 || got[2] != 1 || !math.IsNaN(got[3]) {
		t.Fatalf("unexpected slice: %v", got)
	}

	if n := w.Assign(3, []float64{9, 9, 9}); n != 1 {
		t.Fatalf("expected 1 value written, got %d", n)
	}
	snap := w.Snapshot()
	if snap[3] != 9 || w.Len() != 4 {
		t.Fatalf("unexpected snapshot: %v", snap)
	}
	snap[0] = 100
	if v, _ := w.At(0); v != 1 {
		t.Fatal("snapshot must not alias the array")
	}
}

func TestSetupResistances(t *testing.T) {
	r, err := NewResistances(6)
	if err != nil {
		t.Fatalf("new resistances: %v", err)
	}
	written := SetupResistances(r, 0, []float64{2, 0, 4}, 2)
	if written != 6 {
		t.Fatalf("expected 6 values written, got %d", written)
	}
	// product = 8, k = 2 -> 8^(1/1) / w
	want := []float64{4, 0, 2, 4, 0, 2}
	got := r.Snapshot()
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Fatalf("resistance %d: got=%f want=%f", i, got[i], want[i])
		}
	}

	single, _ := NewResistances(2)
	SetupResistances(single, 0, []float64{0, 0.5}, 1)
	if v, _ := single.At(1); v != 0.5 {
		t.Fatalf("lone weight must map to itself, got %f", v)
	}
}
