// Package dist provides the random inter-event delay generators that drive
// component failures.
package dist

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

const (
	KindExponential = "exponential"
	KindWeibull     = "weibull"
	KindFixed       = "fixed"
)

var (
	ErrInvalidParameter = errors.New("invalid distribution parameter")
	ErrUnknownKind      = errors.New("unknown distribution kind")
)

// Distribution draws non-negative delays until the next event. +Inf means the
// source will never fire again.
type Distribution interface {
	NextInterval() float64
}

// Exponential draws -ln(U)/Lambda.
type Exponential struct {
	Lambda float64
	src    *Source
}

func NewExponential(lambda float64, src *Source) (*Exponential, error) {
	if !(lambda > 0) || math.IsInf(lambda, 0) {
		return nil, fmt.Errorf("%w: lambda=%v", ErrInvalidParameter, lambda)
	}
	if src == nil {
		return nil, errors.New("random source is required")
	}
	return &Exponential{Lambda: lambda, src: src}, nil
}

func (d *Exponential) NextInterval() float64 {
	return -math.Log(d.src.Uniform()) / d.Lambda
}

// Weibull draws Theta * (-ln U)^(1/Beta).
type Weibull struct {
	Theta float64
	Beta  float64
	src   *Source
}

func NewWeibull(theta, beta float64, src *Source) (*Weibull, error) {
	if !(theta > 0) || math.IsInf(theta, 0) {
		return nil, fmt.Errorf("%w: theta=%v", ErrInvalidParameter, theta)
	}
	if !(beta > 0) || math.IsInf(beta, 0) {
		return nil, fmt.Errorf("%w: beta=%v", ErrInvalidParameter, beta)
	}
	if src == nil {
		return nil, errors.New("random source is required")
	}
	return &Weibull{Theta: theta, Beta: beta, src: src}, nil
}

func (d *Weibull) NextInterval() float64 {
	return d.Theta * math.Pow(-math.Log(d.src.Uniform()), 1/d.Beta)
}

// Fixed replays a list of intervals and then never fires again.
type Fixed struct {
	intervals []float64
	next      int
}

func NewFixed(intervals []float64) (*Fixed, error) {
	for _, v := range intervals {
		if v < 0 || math.IsNaN(v) {
			return nil, fmt.Errorf("%w: interval=%v", ErrInvalidParameter, v)
		}
	}
	return &Fixed{intervals: append([]float64(nil), intervals...)}, nil
}

func (d *Fixed) NextInterval() float64 {
	if d.next >= len(d.intervals) {
		return math.Inf(1)
	}
	v := d.intervals[d.next]
	d.next++
	return v
}

// New builds a distribution by kind name.
func New(kind string, params []float64, src *Source) (Distribution, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindExponential:
		if len(params) != 1 {
			return nil, fmt.Errorf("%w: exponential expects 1 parameter, got %d", ErrInvalidParameter, len(params))
		}
		d, err := NewExponential(params[0], src)
		if err != nil {
			return nil, err
		}
		return d, nil
	case KindWeibull:
		if len(params) != 2 {
			return nil, fmt.Errorf("%w: weibull expects 2 parameters, got %d", ErrInvalidParameter, len(params))
		}
		d, err := NewWeibull(params[0], params[1], src)
		if err != nil {
			return nil, err
		}
		return d, nil
	case KindFixed:
		d, err := NewFixed(params)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
}

func Kinds() []string {
	kinds := []string{KindExponential, KindWeibull, KindFixed}
	sort.Strings(kinds)
	return kinds
}
