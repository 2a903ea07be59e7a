package params

import "math"

// SetupResistances converts a weight vector into resistor values so that a
// resistor network with a common node reproduces the weighted mean of its
// inputs, and writes copies consecutive blocks starting at base.
//
// With k non-zero weights the resistance for w_j is |Πw|^(1/(k-1)) / w_j; a
// lone non-zero weight maps to itself and zero weights map to no resistor.
func SetupResistances(r *Resistances, base int, weights []float64, copies int) int {
	product := 1.0
	nonZero := 0
	for _, w := range weights {
		if w != 0 {
			nonZero++
			product *= w
		}
	}

	values := make([]float64, len(weights))
	for j, w := range weights {
		switch {
		case w == 0:
			values[j] = 0
		case nonZero > 1:
			values[j] = math.Pow(math.Abs(product), 1/float64(nonZero-1)) / w
		default:
			values[j] = w
		}
	}

	written := 0
	for k := 0; k < copies; k++ {
		written += r.Assign(base+len(weights)*k, values)
	}
	return written
}
