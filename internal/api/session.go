// Package api is the handle based boundary of the simulator. Every object a
// driver creates lives in the session registry and is addressed by a
// kernel.Handle; failures are reported as sentinels (handle 0, false, nil)
// and logged at debug level.
package api

import (
	"context"
	"log/slog"

	"neurowombat/internal/dist"
	"neurowombat/internal/engine"
	"neurowombat/internal/interrupt"
	"neurowombat/internal/kernel"
	"neurowombat/internal/logging"
	"neurowombat/internal/metrics"
	"neurowombat/internal/neuron"
	"neurowombat/internal/params"
)

type Options struct {
	// Seed roots every random source created by the session.
	Seed    int64
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Session owns one registry and everything created in it.
type Session struct {
	reg     *kernel.Registry
	src     *dist.Source
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewSession(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Session{
		reg:     kernel.NewRegistry(),
		src:     dist.NewSource(opts.Seed),
		logger:  logger,
		metrics: opts.Metrics,
	}
	s.reg.OnDestroy(func(h kernel.Handle, _ any) {
		s.metrics.Destroyed()
		s.logger.Log(context.Background(), logging.LevelTrace, "object destroyed", "handle", h.String())
	})
	return s
}

// Registry exposes the underlying object store.
func (s *Session) Registry() *kernel.Registry { return s.reg }

// Objects returns the number of objects not yet destroyed.
func (s *Session) Objects() int { return s.reg.Len() }

// Close routes to Registry.Delete: the handle becomes invalid at once and
// the object is destroyed when its last holder lets go.
func (s *Session) Close(h kernel.Handle) bool {
	if !s.reg.Delete(h) {
		s.fail("close", "handle", h.String())
		return false
	}
	return true
}

// Shutdown closes every handle still registered, newest first.
func (s *Session) Shutdown() {
	s.reg.Clear()
}

func (s *Session) insert(kind string, obj any) kernel.Handle {
	h := s.reg.Insert(obj)
	if h == kernel.None {
		return kernel.None
	}
	s.metrics.Created(kind)
	s.logger.Log(context.Background(), logging.LevelTrace, "object created", "kind", kind, "handle", h.String())
	return h
}

func (s *Session) fail(op string, args ...any) {
	s.logger.Debug(op+" failed", args...)
}

// CreateDistribution builds an exponential, weibull or fixed distribution.
// Each distribution draws from its own child of the session source.
func (s *Session) CreateDistribution(kind string, p []float64) kernel.Handle {
	d, err := dist.New(kind, p, dist.NewSource(s.src.Int63()))
	if err != nil {
		s.fail("create distribution", "kind", kind, "error", err)
		return kernel.None
	}
	return s.insert("distribution", d)
}

func (s *Session) CreateWeights(n int) kernel.Handle {
	a, err := params.NewWeights(n)
	if err != nil {
		s.fail("create weights", "error", err)
		return kernel.None
	}
	return s.insert("weights", a)
}

func (s *Session) CreateResistances(n int) kernel.Handle {
	a, err := params.NewResistances(n)
	if err != nil {
		s.fail("create resistances", "error", err)
		return kernel.None
	}
	return s.insert("resistances", a)
}

func (s *Session) CreateSignals(n int) kernel.Handle {
	a, err := params.NewSignals(n)
	if err != nil {
		s.fail("create signals", "error", err)
		return kernel.None
	}
	return s.insert("signals", a)
}

func (s *Session) CreateBuffers(n int) kernel.Handle {
	a, err := params.NewBuffers(n)
	if err != nil {
		s.fail("create buffers", "error", err)
		return kernel.None
	}
	return s.insert("buffers", a)
}

func (s *Session) CreatePotentials(n int) kernel.Handle {
	a, err := params.NewPotentials(n)
	if err != nil {
		s.fail("create potentials", "error", err)
		return kernel.None
	}
	return s.insert("potentials", a)
}

func (s *Session) CreateComparators(n int) kernel.Handle {
	a, err := params.NewComparators(n)
	if err != nil {
		s.fail("create comparators", "error", err)
		return kernel.None
	}
	return s.insert("comparators", a)
}

// CreateWeightsManager wires a distribution and a weights array into a
// perturbation manager. A nil fault selects interrupt.DefaultFault.
func (s *Session) CreateWeightsManager(distribution, weights kernel.Handle, fault interrupt.Fault) kernel.Handle {
	d, ok := kernel.Acquire[dist.Distribution](s.reg, distribution)
	if !ok {
		s.fail("create weights manager", "distribution", distribution.String())
		return kernel.None
	}
	w, ok := kernel.Acquire[*params.Weights](s.reg, weights)
	if !ok {
		d.Release()
		s.fail("create weights manager", "weights", weights.String())
		return kernel.None
	}
	m, err := interrupt.NewWeightsManager(d, w, s.managerOptions(fault))
	if err != nil {
		s.fail("create weights manager", "error", err)
		return kernel.None
	}
	return s.insert("weights_manager", m)
}

func (s *Session) CreateResistorsManager(distribution, resistances kernel.Handle, fault interrupt.Fault) kernel.Handle {
	d, ok := kernel.Acquire[dist.Distribution](s.reg, distribution)
	if !ok {
		s.fail("create resistors manager", "distribution", distribution.String())
		return kernel.None
	}
	r, ok := kernel.Acquire[*params.Resistances](s.reg, resistances)
	if !ok {
		d.Release()
		s.fail("create resistors manager", "resistances", resistances.String())
		return kernel.None
	}
	m, err := interrupt.NewResistorsManager(d, r, s.managerOptions(fault))
	if err != nil {
		s.fail("create resistors manager", "error", err)
		return kernel.None
	}
	return s.insert("resistors_manager", m)
}

func (s *Session) managerOptions(fault interrupt.Fault) interrupt.Options {
	return interrupt.Options{Fault: fault, Source: dist.NewSource(s.src.Int63())}
}

// CreateEngine builds an empty simulation engine whose steps are counted in
// the session metrics and logged at trace level.
func (s *Session) CreateEngine() kernel.Handle {
	e := engine.New()
	e.OnStep(func(ev engine.Event) {
		s.metrics.Step()
		s.logger.Log(context.Background(), logging.LevelTrace, "step",
			"step", ev.Step, "t", ev.Time, "manager", ev.Manager.String(), "source", ev.Source)
	})
	return s.insert("engine", e)
}

// CreateActivation builds a named activation function.
func (s *Session) CreateActivation(name string, p []float64) kernel.Handle {
	a, err := neuron.NewActivation(name, p)
	if err != nil {
		s.fail("create activation", "name", name, "error", err)
		return kernel.None
	}
	return s.insert("activation", a)
}

// CreateCustomActivation registers caller supplied functions. A nil
// derivative is approximated numerically.
func (s *Session) CreateCustomActivation(f, d func(float64) float64) kernel.Handle {
	if f == nil {
		s.fail("create custom activation", "reason", "nil function")
		return kernel.None
	}
	return s.insert("activation", neuron.CustomActivation{F: f, D: d})
}

// Processor kinds accepted by CreateProcessor.
const (
	ProcessorWeightedSum = "weightedsum"
	ProcessorScalar      = "scalar"
	ProcessorRadialBasis = "radialbasis"
)

func (s *Session) CreateProcessor(kind string, useMultiplier bool) kernel.Handle {
	var p neuron.Processor
	switch kind {
	case ProcessorWeightedSum:
		p = neuron.WeightedSum{}
	case ProcessorScalar:
		p = neuron.Scalar{}
	case ProcessorRadialBasis:
		p = neuron.RadialBasis{UseMultiplier: useMultiplier}
	default:
		s.fail("create processor", "kind", kind)
		return kernel.None
	}
	return s.insert("processor", p)
}

func (s *Session) CreateCustomProcessor(fn func(x, w []float64) float64, useMultiplier bool) kernel.Handle {
	if fn == nil {
		s.fail("create custom processor", "reason", "nil function")
		return kernel.None
	}
	return s.insert("processor", neuron.CustomProcessor{Fn: fn, UseMultiplier: useMultiplier})
}
