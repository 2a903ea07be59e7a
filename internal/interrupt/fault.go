package interrupt

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"neurowombat/internal/dist"
)

var ErrUnknownFault = errors.New("unknown fault model")

// Fault decides the value a perturbed entry takes.
type Fault interface {
	Name() string
	Apply(old float64, src *dist.Source) float64
}

// Zero models a stuck-at-zero element. In the resistor convention zero also
// means the resistor is gone.
type Zero struct{}

func (Zero) Name() string                        { return "zero" }
func (Zero) Apply(float64, *dist.Source) float64 { return 0 }

// Open models a broken resistor with infinite resistance.
type Open struct{}

func (Open) Name() string                        { return "open" }
func (Open) Apply(float64, *dist.Source) float64 { return math.Inf(1) }

// Scale multiplies the entry by Factor.
type Scale struct {
	Factor float64
}

func (Scale) Name() string { return "scale" }
func (f Scale) Apply(old float64, _ *dist.Source) float64 {
	return old * f.Factor
}

// Drift adds zero-mean gaussian noise with standard deviation Sigma.
type Drift struct {
	Sigma float64
}

func (Drift) Name() string { return "drift" }
func (f Drift) Apply(old float64, src *dist.Source) float64 {
	return old + src.NormFloat64()*f.Sigma
}

// Resample replaces the entry with a uniform draw from [Min, Max).
type Resample struct {
	Min float64
	Max float64
}

func (Resample) Name() string { return "resample" }
func (f Resample) Apply(_ float64, src *dist.Source) float64 {
	return f.Min + src.Float64()*(f.Max-f.Min)
}

// DefaultFault is used when a manager is created without an explicit model.
var DefaultFault Fault = Drift{Sigma: 0.5}

// ParseFault builds a fault model from its name and parameters.
func ParseFault(name string, params []float64) (Fault, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "":
		return DefaultFault, nil
	case "zero":
		return Zero{}, nil
	case "open":
		return Open{}, nil
	case "scale":
		if len(params) != 1 {
			return nil, fmt.Errorf("scale fault expects 1 parameter, got %d", len(params))
		}
		return Scale{Factor: params[0]}, nil
	case "drift":
		if len(params) != 1 || params[0] <= 0 {
			return nil, fmt.Errorf("drift fault expects a positive sigma, got %v", params)
		}
		return Drift{Sigma: params[0]}, nil
	case "resample":
		if len(params) != 2 || params[1] < params[0] {
			return nil, fmt.Errorf("resample fault expects min <= max, got %v", params)
		}
		return Resample{Min: params[0], Max: params[1]}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFault, name)
	}
}
