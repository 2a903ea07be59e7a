package neuron

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
)

var (
	ErrActivationExists   = errors.New("activation already registered")
	ErrActivationNotFound = errors.New("activation not found")
	ErrActivationParams   = errors.New("invalid activation parameters")
)

// Activation maps a processor output to a neuron output. Derivative is used by
// back-propagation and is evaluated at the processor output.
type Activation interface {
	Evaluate(x float64) float64
	Derivative(x float64) float64
}

// ActivationFactory builds an activation from its numeric parameters.
type ActivationFactory func(params []float64) (Activation, error)

var activationRegistry = struct {
	mu sync.RWMutex
	m  map[string]ActivationFactory
}{
	m: make(map[string]ActivationFactory),
}

func init() {
	initializeBuiltInActivations()
}

func initializeBuiltInActivations() {
	MustRegisterActivation("linear", func(p []float64) (Activation, error) {
		if err := expectParams("linear", p, 2); err != nil {
			return nil, err
		}
		return Linear{A: p[0], B: p[1]}, nil
	})
	MustRegisterActivation("lim", func(p []float64) (Activation, error) {
		if err := expectParams("lim", p, 3); err != nil {
			return nil, err
		}
		return Lim{XLim: p[0], YLow: p[1], YHigh: p[2]}, nil
	})
	MustRegisterActivation("limlinear", func(p []float64) (Activation, error) {
		if err := expectParams("limlinear", p, 4); err != nil {
			return nil, err
		}
		if p[3] < p[2] {
			return nil, fmt.Errorf("%w: limlinear xMax < xMin", ErrActivationParams)
		}
		return LimLinear{A: p[0], B: p[1], XMin: p[2], XMax: p[3]}, nil
	})
	MustRegisterActivation("poslinear", func(p []float64) (Activation, error) {
		if err := expectParams("poslinear", p, 2); err != nil {
			return nil, err
		}
		return PosLinear{A: p[0], B: p[1]}, nil
	})
	MustRegisterActivation("sigmoid", func(p []float64) (Activation, error) {
		if err := expectParams("sigmoid", p, 0); err != nil {
			return nil, err
		}
		return Sigmoid{}, nil
	})
	MustRegisterActivation("thsigmoid", func(p []float64) (Activation, error) {
		if err := expectParams("thsigmoid", p, 0); err != nil {
			return nil, err
		}
		return ThSigmoid{}, nil
	})
	MustRegisterActivation("gaussian", func(p []float64) (Activation, error) {
		if err := expectParams("gaussian", p, 1); err != nil {
			return nil, err
		}
		if p[0] <= 0 {
			return nil, fmt.Errorf("%w: gaussian beta must be > 0", ErrActivationParams)
		}
		return Gaussian{Beta: p[0]}, nil
	})
}

func expectParams(name string, p []float64, n int) error {
	if len(p) != n {
		return fmt.Errorf("%w: %s expects %d parameters, got %d", ErrActivationParams, name, n, len(p))
	}
	return nil
}

func RegisterActivation(name string, factory ActivationFactory) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return errors.New("activation name is required")
	}
	if factory == nil {
		return errors.New("activation factory is required")
	}

	activationRegistry.mu.Lock()
	defer activationRegistry.mu.Unlock()

	if _, exists := activationRegistry.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrActivationExists, name)
	}
	activationRegistry.m[name] = factory
	return nil
}

func MustRegisterActivation(name string, factory ActivationFactory) {
	if err := RegisterActivation(name, factory); err != nil {
		panic(err)
	}
}

// NewActivation builds a registered activation by name.
func NewActivation(name string, params []float64) (Activation, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	activationRegistry.mu.RLock()
	factory, ok := activationRegistry.m[key]
	activationRegistry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrActivationNotFound, name)
	}
	return factory(params)
}

func ListActivations() []string {
	activationRegistry.mu.RLock()
	defer activationRegistry.mu.RUnlock()

	names := make([]string, 0, len(activationRegistry.m))
	for name := range activationRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func resetActivationRegistryForTests() {
	activationRegistry.mu.Lock()
	activationRegistry.m = make(map[string]ActivationFactory)
	activationRegistry.mu.Unlock()
	initializeBuiltInActivations()
}

// Linear is a*x + b.
type Linear struct{ A, B float64 }

func (f Linear) Evaluate(x float64) float64 { return f.A*x + f.B }
func (f Linear) Derivative(float64) float64 { return f.A }

// Lim is a hard threshold: YHigh above XLim, YLow otherwise.
type Lim struct{ XLim, YLow, YHigh float64 }

func (f Lim) Evaluate(x float64) float64 {
	if x > f.XLim {
		return f.YHigh
	}
	return f.YLow
}

func (f Lim) Derivative(float64) float64 { return 0 }

// LimLinear is linear inside [XMin, XMax] and saturates outside.
type LimLinear struct{ A, B, XMin, XMax float64 }

func (f LimLinear) Evaluate(x float64) float64 {
	switch {
	case x < f.XMin:
		x = f.XMin
	case x > f.XMax:
		x = f.XMax
	}
	return f.A*x + f.B
}

func (f LimLinear) Derivative(x float64) float64 {
	if x < f.XMin || x > f.XMax {
		return 0
	}
	return f.A
}

// PosLinear is linear for positive outputs and zero otherwise.
type PosLinear struct{ A, B float64 }

func (f PosLinear) Evaluate(x float64) float64 {
	if y := f.A*x + f.B; y > 0 {
		return y
	}
	return 0
}

func (f PosLinear) Derivative(x float64) float64 {
	if f.A*x+f.B > 0 {
		return f.A
	}
	return 0
}

// Sigmoid is the logistic function.
type Sigmoid struct{}

func (Sigmoid) Evaluate(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

func (Sigmoid) Derivative(x float64) float64 {
	s := 1 / (1 + math.Exp(-x))
	return s * (1 - s)
}

// ThSigmoid is the symmetric sigmoid 2/(1+e^-x) - 1 with range (-1, 1).
type ThSigmoid struct{}

func (ThSigmoid) Evaluate(x float64) float64 { return math.Tanh(x / 2) }

func (ThSigmoid) Derivative(x float64) float64 {
	y := math.Tanh(x / 2)
	return 0.5 * (1 - y*y)
}

// Gaussian is exp(-beta*x^2).
type Gaussian struct{ Beta float64 }

func (f Gaussian) Evaluate(x float64) float64 { return math.Exp(-f.Beta * x * x) }

func (f Gaussian) Derivative(x float64) float64 {
	return -2 * f.Beta * x * math.Exp(-f.Beta*x*x)
}

// CustomActivation wraps caller supplied functions. A nil D falls back to a
// central difference.
type CustomActivation struct {
	F func(float64) float64
	D func(float64) float64
}

func (f CustomActivation) Evaluate(x float64) float64 { return f.F(x) }

func (f CustomActivation) Derivative(x float64) float64 {
	if f.D != nil {
		return f.D(x)
	}
	const h = 1e-6
	return (f.F(x+h) - f.F(x-h)) / (2 * h)
}
