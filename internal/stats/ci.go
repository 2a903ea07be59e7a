package stats

import (
	"errors"
	"fmt"
	"math"
)

var ErrUnsupportedLevel = errors.New("unsupported confidence level")

// Two-sided normal quantiles keyed by confidence level (beta) and by
// significance level (alpha = 1 - beta).
var (
	betaQuantiles = map[float64]float64{
		0.95:  1.960,
		0.99:  2.576,
		0.999: 3.291,
	}
	alphaQuantiles = map[float64]float64{
		0.05:  1.959964,
		0.01:  2.5758293,
		0.001: 3.2905267,
	}
)

// ConfidenceLevels lists the beta values MeanCI accepts.
func ConfidenceLevels() []float64 { return []float64{0.95, 0.99, 0.999} }

// MeanCI returns the half width of the confidence interval for a sample mean
// given the running mean, the running mean of squares and the sample count.
func MeanCI(mean, meanSqr float64, times int, beta float64) (float64, error) {
	t, ok := quantile(betaQuantiles, beta)
	if !ok {
		return 0, fmt.Errorf("%w: beta=%g", ErrUnsupportedLevel, beta)
	}
	if times < 2 {
		return 0, nil
	}
	variance := meanSqr - mean*mean
	if variance < 0 {
		variance = 0
	}
	return t * math.Sqrt(variance/float64(times-1)), nil
}

// ACProbabilityCI returns the Agresti-Coull interval for a probability p
// observed over times trials at significance alpha. Bounds are clipped to
// [0, 1].
func ACProbabilityCI(p float64, times int, alpha float64) (float64, float64, error) {
	z, ok := quantile(alphaQuantiles, alpha)
	if !ok {
		return 0, 0, fmt.Errorf("%w: alpha=%g", ErrUnsupportedLevel, alpha)
	}
	if times <= 0 {
		return 0, 1, nil
	}
	z2 := z * z
	n := float64(times) + z2
	pAC := (p*float64(times) + 0.5*z2) / n
	delta := z * math.Sqrt(pAC*(1-pAC)/n)
	return math.Max(0, pAC-delta), math.Min(1, pAC+delta), nil
}

// Avg returns the arithmetic mean of values.
func Avg(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("values must not be empty")
	}
	sum := 0.0
	for _, value := range values {
		sum += value
	}
	return sum / float64(len(values)), nil
}

// Std returns population standard deviation.
func Std(values []float64) (float64, error) {
	mean, err := Avg(values)
	if err != nil {
		return 0, err
	}
	sum := 0.0
	for _, value := range values {
		diff := mean - value
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(values))), nil
}

// Interval is an estimate with symmetric or asymmetric bounds.
type Interval struct {
	Estimate float64 `json:"estimate"`
	Low      float64 `json:"low"`
	High     float64 `json:"high"`
}

// MeanInterval computes the mean of values with its confidence interval.
func MeanInterval(values []float64, beta float64) (Interval, error) {
	mean, err := Avg(values)
	if err != nil {
		return Interval{}, err
	}
	sqr := make([]float64, len(values))
	for i, v := range values {
		sqr[i] = v * v
	}
	meanSqr, _ := Avg(sqr)
	half, err := MeanCI(mean, meanSqr, len(values), beta)
	if err != nil {
		return Interval{}, err
	}
	return Interval{Estimate: mean, Low: mean - half, High: mean + half}, nil
}

// ProbabilityInterval estimates a probability from successes out of times.
func ProbabilityInterval(successes, times int, beta float64) (Interval, error) {
	if times <= 0 {
		return Interval{}, fmt.Errorf("times must be > 0")
	}
	p := float64(successes) / float64(times)
	lo, hi, err := ACProbabilityCI(p, times, 1-beta)
	if err != nil {
		return Interval{}, err
	}
	return Interval{Estimate: p, Low: lo, High: hi}, nil
}

// levelTolerance is how far a requested level may sit from a tabulated one.
const levelTolerance = 1e-4

func quantile(table map[float64]float64, level float64) (float64, bool) {
	for known, q := range table {
		if math.Abs(level-known) < levelTolerance {
			return q, true
		}
	}
	return 0, false
}
