// Package interrupt implements the event sources that compete for the next
// simulation step. Each source perturbs one entry of a shared parameter array
// whenever its event fires.
package interrupt

import (
	"errors"
	"math"

	"neurowombat/internal/dist"
	"neurowombat/internal/kernel"
	"neurowombat/internal/params"
)

// NoSource is reported when no event is pending or none has fired yet.
const NoSource = -1

// Manager is an event source known to the simulation engine.
type Manager interface {
	// IntSource is the source code of the pending event.
	IntSource() int
	// LastIntSource is the source code of the most recently fired event.
	LastIntSource() int
	// FutureTime is the absolute time of the pending event, +Inf if none.
	FutureTime() float64
	// Trigger fires the pending event at now and schedules the next one.
	// It returns the new pending time.
	Trigger(now float64) float64
	// Reschedule redraws the pending event starting from now without
	// firing it.
	Reschedule(now float64)
}

type Options struct {
	Fault  Fault
	Source *dist.Source
}

type releaser interface {
	Release()
}

// perturber is the shared state machine behind every concrete manager. The
// source code of an event is the index of the entry it will perturb; indices
// are drawn uniformly when the event is scheduled.
type perturber struct {
	distribution dist.Distribution
	target       params.Vector
	fault        Fault
	src          *dist.Source
	holds        []releaser

	futureTime   float64
	futureSource int
	lastSource   int
	fired        uint64
}

func newPerturber(d dist.Distribution, target params.Vector, opts Options, holds ...releaser) (perturber, error) {
	if d == nil {
		return perturber{}, errors.New("distribution is required")
	}
	if target == nil || target.Len() == 0 {
		return perturber{}, errors.New("target array is required")
	}
	if opts.Source == nil {
		return perturber{}, errors.New("random source is required")
	}
	fault := opts.Fault
	if fault == nil {
		fault = DefaultFault
	}
	p := perturber{
		distribution: d,
		target:       target,
		fault:        fault,
		src:          opts.Source,
		holds:        holds,
		lastSource:   NoSource,
	}
	p.schedule(0)
	return p, nil
}

func (p *perturber) IntSource() int      { return p.futureSource }
func (p *perturber) LastIntSource() int  { return p.lastSource }
func (p *perturber) FutureTime() float64 { return p.futureTime }

// Fired returns how many events this manager has triggered.
func (p *perturber) Fired() uint64 { return p.fired }

// FaultName reports the fault model applied by this manager.
func (p *perturber) FaultName() string { return p.fault.Name() }

func (p *perturber) Trigger(now float64) float64 {
	if idx := p.futureSource; idx != NoSource {
		old, _ := p.target.At(idx)
		_ = p.target.Set(idx, p.fault.Apply(old, p.src))
	}
	p.lastSource = p.futureSource
	p.fired++
	p.schedule(now)
	return p.futureTime
}

func (p *perturber) Reschedule(now float64) {
	p.schedule(now)
}

func (p *perturber) schedule(now float64) {
	interval := p.distribution.NextInterval()
	if math.IsInf(interval, 1) || math.IsNaN(interval) {
		p.futureTime = math.Inf(1)
		p.futureSource = NoSource
		return
	}
	p.futureTime = now + interval
	p.futureSource = p.src.Intn(p.target.Len())
}

func (p *perturber) Destroy() {
	for _, h := range p.holds {
		h.Release()
	}
	p.holds = nil
}

// WeightsManager perturbs abstract neuron weights.
type WeightsManager struct {
	perturber
	weights *params.Weights
}

// NewWeightsManager takes ownership of both references: they are released
// when the manager is destroyed, or right away if construction fails.
func NewWeightsManager(d kernel.Ref[dist.Distribution], w kernel.Ref[*params.Weights], opts Options) (*WeightsManager, error) {
	if !d.Valid() || !w.Valid() {
		d.Release()
		w.Release()
		return nil, errors.New("distribution and weights references are required")
	}
	p, err := newPerturber(d.Value(), w.Value(), opts, d, w)
	if err != nil {
		d.Release()
		w.Release()
		return nil, err
	}
	return &WeightsManager{perturber: p, weights: w.Value()}, nil
}

func (m *WeightsManager) Weights() *params.Weights { return m.weights }

// ResistorsManager perturbs analog neuron resistances.
type ResistorsManager struct {
	perturber
	resistances *params.Resistances
}

func NewResistorsManager(d kernel.Ref[dist.Distribution], r kernel.Ref[*params.Resistances], opts Options) (*ResistorsManager, error) {
	if !d.Valid() || !r.Valid() {
		d.Release()
		r.Release()
		return nil, errors.New("distribution and resistances references are required")
	}
	p, err := newPerturber(d.Value(), r.Value(), opts, d, r)
	if err != nil {
		d.Release()
		r.Release()
		return nil, err
	}
	return &ResistorsManager{perturber: p, resistances: r.Value()}, nil
}

func (m *ResistorsManager) Resistances() *params.Resistances { return m.resistances }
