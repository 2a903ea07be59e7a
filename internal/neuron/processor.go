package neuron

import "math"

// Processor combines input signals with weights into a single value fed to
// the activation.
type Processor interface {
	// Weights returns how many weights a neuron with n inputs needs.
	Weights(n int) int
	Process(x, w []float64) float64
}

// WeightedSum is Σ w_i x_i.
type WeightedSum struct{}

func (WeightedSum) Weights(n int) int { return n }

func (WeightedSum) Process(x, w []float64) float64 {
	sum := 0.0
	for i := range x {
		sum += w[i] * x[i]
	}
	return sum
}

// Scalar is Π w_i x_i.
type Scalar struct{}

func (Scalar) Weights(n int) int { return n }

func (Scalar) Process(x, w []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	product := 1.0
	for i := range x {
		product *= w[i] * x[i]
	}
	return product
}

// RadialBasis is the euclidean distance between inputs and weights. With
// UseMultiplier the distance is scaled by one extra weight stored after the
// centre.
type RadialBasis struct {
	UseMultiplier bool
}

func (p RadialBasis) Weights(n int) int {
	if p.UseMultiplier {
		return n + 1
	}
	return n
}

func (p RadialBasis) Process(x, w []float64) float64 {
	sum := 0.0
	for i := range x {
		d := x[i] - w[i]
		sum += d * d
	}
	dist := math.Sqrt(sum)
	if p.UseMultiplier {
		return dist * w[len(x)]
	}
	return dist
}

// CustomProcessor wraps a caller supplied function. With UseMultiplier the
// neuron reserves one extra weight that Fn receives as the last entry of w.
type CustomProcessor struct {
	Fn            func(x, w []float64) float64
	UseMultiplier bool
}

func (p CustomProcessor) Weights(n int) int {
	if p.UseMultiplier {
		return n + 1
	}
	return n
}

func (p CustomProcessor) Process(x, w []float64) float64 { return p.Fn(x, w) }
