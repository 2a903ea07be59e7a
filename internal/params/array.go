// Package params holds the fixed-length numeric vectors shared between neuron
// models and perturbation managers.
package params

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrEmpty      = errors.New("parameter array length must be > 0")
	ErrOutOfRange = errors.New("parameter index out of range")
)

// Array is a fixed-length vector of float64 values addressed by zero-based
// index. It is never resized after construction.
type Array struct {
	values []float64
}

func newArray(n int) (Array, error) {
	if n <= 0 {
		return Array{}, fmt.Errorf("%w: got %d", ErrEmpty, n)
	}
	return Array{values: make([]float64, n)}, nil
}

func (a *Array) Len() int { return len(a.values) }

// At returns the value at index i, or false when i is out of range.
func (a *Array) At(i int) (float64, bool) {
	if i < 0 || i >= len(a.values) {
		return 0, false
	}
	return a.values[i], true
}

// Get panics on an out-of-range index. Neuron kernels use it on indices
// validated at construction.
func (a *Array) Get(i int) float64 { return a.values[i] }

// Set stores v at index i.
func (a *Array) Set(i int, v float64) error {
	if i < 0 || i >= len(a.values) {
		return fmt.Errorf("%w: %d of %d", ErrOutOfRange, i, len(a.values))
	}
	a.values[i] = v
	return nil
}

// Add adds delta to the value at index i.
func (a *Array) Add(i int, delta float64) error {
	if i < 0 || i >= len(a.values) {
		return fmt.Errorf("%w: %d of %d", ErrOutOfRange, i, len(a.values))
	}
	a.values[i] += delta
	return nil
}

// Slice copies count values starting at base. Indices past the end read as
// NaN so callers can tell a short read apart from stored zeros.
func (a *Array) Slice(base, count int) []float64 {
	if count <= 0 {
		return []float64{}
	}
	out := make([]float64, count)
	for i := range out {
		idx := base + i
		if idx < 0 || idx >= len(a.values) {
			out[i] = math.NaN()
			continue
		}
		out[i] = a.values[idx]
	}
	return out
}

// Assign writes values starting at base and skips indices outside the
// array. It returns the number of values written.
func (a *Array) Assign(base int, values []float64) int {
	written := 0
	for i, v := range values {
		idx := base + i
		if idx < 0 || idx >= len(a.values) {
			continue
		}
		a.values[idx] = v
		written++
	}
	return written
}

func (a *Array) Fill(v float64) {
	for i := range a.values {
		a.values[i] = v
	}
}

// Snapshot returns a copy of every value.
func (a *Array) Snapshot() []float64 {
	return append([]float64(nil), a.values...)
}

// Vector is implemented by every capability type in this package.
type Vector interface {
	Len() int
	At(i int) (float64, bool)
	Set(i int, v float64) error
	Slice(base, count int) []float64
	Assign(base int, values []float64) int
	Snapshot() []float64
}

// Weights are trainable synapse weights of abstract neurons.
type Weights struct{ Array }

// Resistances are resistor values of analog neurons. Zero marks an absent
// resistor.
type Resistances struct{ Array }

// Signals are connector outputs of abstract neurons.
type Signals struct{ Array }

// Buffers hold momentum terms used during training.
type Buffers struct{ Array }

// Potentials are wire potentials of analog circuits.
type Potentials struct{ Array }

// Comparators hold comparator offsets of analog neurons.
type Comparators struct{ Array }

func NewWeights(n int) (*Weights, error) {
	a, err := newArray(n)
	if err != nil {
		return nil, err
	}
	return &Weights{a}, nil
}

func NewResistances(n int) (*Resistances, error) {
	a, err := newArray(n)
	if err != nil {
		return nil, err
	}
	return &Resistances{a}, nil
}

func NewSignals(n int) (*Signals, error) {
	a, err := newArray(n)
	if err != nil {
		return nil, err
	}
	return &Signals{a}, nil
}

func NewBuffers(n int) (*Buffers, error) {
	a, err := newArray(n)
	if err != nil {
		return nil, err
	}
	return &Buffers{a}, nil
}

func NewPotentials(n int) (*Potentials, error) {
	a, err := newArray(n)
	if err != nil {
		return nil, err
	}
	return &Potentials{a}, nil
}

func NewComparators(n int) (*Comparators, error) {
	a, err := newArray(n)
	if err != nil {
		return nil, err
	}
	return &Comparators{a}, nil
}
