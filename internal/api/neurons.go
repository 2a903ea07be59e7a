package api

import (
	"neurowombat/internal/kernel"
	"neurowombat/internal/neuron"
	"neurowombat/internal/params"
)

// AbstractNeuronSpec addresses the collaborators of an abstract neuron by
// handle. Weights may be kernel.None for private weights.
type AbstractNeuronSpec struct {
	Inputs     []int
	Signals    kernel.Handle
	SignalBase int
	Weights    kernel.Handle
	WeightBase int
	Processor  kernel.Handle
	Activation kernel.Handle
}

func (s *Session) CreateAbstractNeuron(spec AbstractNeuronSpec) kernel.Handle {
	cfg := neuron.AbstractConfig{
		Inputs:     append([]int(nil), spec.Inputs...),
		SignalBase: spec.SignalBase,
		WeightBase: spec.WeightBase,
	}
	var ok bool
	if cfg.Signals, ok = kernel.Acquire[*params.Signals](s.reg, spec.Signals); !ok {
		s.fail("create abstract neuron", "signals", spec.Signals.String())
	}
	if spec.Weights != kernel.None {
		if cfg.Weights, ok = kernel.Acquire[*params.Weights](s.reg, spec.Weights); !ok {
			cfg.Signals.Release()
			s.fail("create abstract neuron", "weights", spec.Weights.String())
			return kernel.None
		}
	}
	if cfg.Processor, ok = kernel.Acquire[neuron.Processor](s.reg, spec.Processor); !ok {
		s.fail("create abstract neuron", "processor", spec.Processor.String())
	}
	if cfg.Activation, ok = kernel.Acquire[neuron.Activation](s.reg, spec.Activation); !ok {
		s.fail("create abstract neuron", "activation", spec.Activation.String())
	}
	// The constructor owns cfg from here on and rejects missing references.
	n, err := neuron.NewAbstractNeuron(cfg)
	if err != nil {
		s.fail("create abstract neuron", "error", err)
		return kernel.None
	}
	return s.insert("abstract_neuron", n)
}

// AnalogNeuronSpec addresses the collaborators of an analog neuron by handle.
type AnalogNeuronSpec struct {
	Inputs         []int
	Ground         int
	Source         int
	Comparators    kernel.Handle
	ComparatorBase int
	Resistors      kernel.Handle
	ResistorBase   int
	Wires          kernel.Handle
	WireBase       int
}

func (s *Session) CreateAnalogNeuron(spec AnalogNeuronSpec) kernel.Handle {
	cfg := neuron.AnalogConfig{
		Inputs:         append([]int(nil), spec.Inputs...),
		Ground:         spec.Ground,
		Source:         spec.Source,
		ComparatorBase: spec.ComparatorBase,
		ResistorBase:   spec.ResistorBase,
		WireBase:       spec.WireBase,
	}
	var ok bool
	if cfg.Comparators, ok = kernel.Acquire[*params.Comparators](s.reg, spec.Comparators); !ok {
		s.fail("create analog neuron", "comparators", spec.Comparators.String())
	}
	if cfg.Resistors, ok = kernel.Acquire[*params.Resistances](s.reg, spec.Resistors); !ok {
		s.fail("create analog neuron", "resistors", spec.Resistors.String())
	}
	if cfg.Wires, ok = kernel.Acquire[*params.Potentials](s.reg, spec.Wires); !ok {
		s.fail("create analog neuron", "wires", spec.Wires.String())
	}
	n, err := neuron.NewAnalogNeuron(cfg)
	if err != nil {
		s.fail("create analog neuron", "error", err)
		return kernel.None
	}
	return s.insert("analog_neuron", n)
}

func (s *Session) abstractNeurons(op string, handles []kernel.Handle) ([]*neuron.AbstractNeuron, bool) {
	out := make([]*neuron.AbstractNeuron, len(handles))
	for i, h := range handles {
		n, ok := kernel.Lookup[*neuron.AbstractNeuron](s.reg, h)
		if !ok {
			s.fail(op, "neuron", h.String(), "position", i)
			return nil, false
		}
		out[i] = n
	}
	return out, true
}

// ComputeAbstract evaluates the neurons in order, times times over.
func (s *Session) ComputeAbstract(handles []kernel.Handle, times int) bool {
	neurons, ok := s.abstractNeurons("compute abstract", handles)
	if !ok {
		return false
	}
	neuron.ComputeAll(neurons, times)
	return true
}

// TrainBP runs one back-propagation pass over a layered abstract network.
func (s *Session) TrainBP(handles []kernel.Handle, layers []int, target []float64, damping, speed float64) bool {
	neurons, ok := s.abstractNeurons("train bp", handles)
	if !ok {
		return false
	}
	if err := neuron.TrainBP(neurons, layers, target, damping, speed); err != nil {
		s.fail("train bp", "error", err)
		return false
	}
	return true
}

func (s *Session) ComputeAnalog(handles []kernel.Handle, times int) bool {
	neurons := make([]*neuron.AnalogNeuron, len(handles))
	for i, h := range handles {
		n, ok := kernel.Lookup[*neuron.AnalogNeuron](s.reg, h)
		if !ok {
			s.fail("compute analog", "neuron", h.String(), "position", i)
			return false
		}
		neurons[i] = n
	}
	neuron.ComputeAnalog(neurons, times)
	return true
}

// Output returns the last computed output of an abstract or analog neuron.
func (s *Session) Output(h kernel.Handle) (float64, bool) {
	if n, ok := kernel.Lookup[*neuron.AbstractNeuron](s.reg, h); ok {
		return n.Output(), true
	}
	if n, ok := kernel.Lookup[*neuron.AnalogNeuron](s.reg, h); ok {
		return n.Output(), true
	}
	s.fail("output", "neuron", h.String())
	return 0, false
}

// SetupResistances writes copies blocks of resistor values derived from
// weights and returns the number of values written.
func (s *Session) SetupResistances(h kernel.Handle, base int, weights []float64, copies int) int {
	r, ok := kernel.Lookup[*params.Resistances](s.reg, h)
	if !ok {
		s.fail("setup resistances", "resistances", h.String())
		return 0
	}
	return params.SetupResistances(r, base, weights, copies)
}
