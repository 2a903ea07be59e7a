package neuron

import (
	"fmt"
	"math"

	"neurowombat/internal/kernel"
	"neurowombat/internal/params"
)

type AnalogConfig struct {
	// Inputs are wire indices, one resistor each starting at ResistorBase.
	Inputs         []int
	Ground         int
	Source         int
	Comparators    kernel.Ref[*params.Comparators]
	ComparatorBase int
	Resistors      kernel.Ref[*params.Resistances]
	ResistorBase   int
	// Wires holds every potential; the neuron drives Wires[WireBase].
	Wires    kernel.Ref[*params.Potentials]
	WireBase int
}

func (c AnalogConfig) release() {
	c.Comparators.Release()
	c.Resistors.Release()
	c.Wires.Release()
}

// AnalogNeuron is a resistor summing node followed by a comparator that
// switches its output wire between the ground and source potentials.
type AnalogNeuron struct {
	cfg         AnalogConfig
	comparators *params.Comparators
	resistors   *params.Resistances
	wires       *params.Potentials
	node        float64
}

// NewAnalogNeuron takes ownership of every reference in cfg, also when it
// fails.
func NewAnalogNeuron(cfg AnalogConfig) (*AnalogNeuron, error) {
	if !cfg.Comparators.Valid() || !cfg.Resistors.Valid() || !cfg.Wires.Valid() {
		cfg.release()
		return nil, fmt.Errorf("%w: comparators, resistors and wires are required", ErrMissingDependency)
	}
	n := &AnalogNeuron{
		cfg:         cfg,
		comparators: cfg.Comparators.Value(),
		resistors:   cfg.Resistors.Value(),
		wires:       cfg.Wires.Value(),
	}
	if err := n.validate(); err != nil {
		cfg.release()
		return nil, err
	}
	return n, nil
}

func (n *AnalogNeuron) validate() error {
	wires := n.wires.Len()
	check := func(what string, idx, size int) error {
		if idx < 0 || idx >= size {
			return fmt.Errorf("%w: %s %d of %d", ErrIndexOutOfRange, what, idx, size)
		}
		return nil
	}
	for _, idx := range n.cfg.Inputs {
		if err := check("input wire", idx, wires); err != nil {
			return err
		}
	}
	for _, c := range []struct {
		what      string
		idx, size int
	}{
		{"ground wire", n.cfg.Ground, wires},
		{"source wire", n.cfg.Source, wires},
		{"output wire", n.cfg.WireBase, wires},
		{"comparator", n.cfg.ComparatorBase, n.comparators.Len()},
	} {
		if err := check(c.what, c.idx, c.size); err != nil {
			return err
		}
	}
	if len(n.cfg.Inputs) > 0 {
		last := n.cfg.ResistorBase + len(n.cfg.Inputs) - 1
		if err := check("resistor", n.cfg.ResistorBase, n.resistors.Len()); err != nil {
			return err
		}
		if err := check("resistor", last, n.resistors.Len()); err != nil {
			return err
		}
	}
	return nil
}

// Compute solves the summing node with Millman's theorem and updates the
// output wire. Zero or infinite resistances are treated as disconnected;
// with nothing connected the node floats at ground.
func (n *AnalogNeuron) Compute() {
	ground := n.wires.Get(n.cfg.Ground)
	num, den := 0.0, 0.0
	for i, idx := range n.cfg.Inputs {
		r := n.resistors.Get(n.cfg.ResistorBase + i)
		if r == 0 || math.IsInf(r, 0) || math.IsNaN(r) {
			continue
		}
		g := 1 / r
		num += n.wires.Get(idx) * g
		den += g
	}
	n.node = ground
	if den != 0 {
		n.node = num / den
	}

	out := ground
	if n.node-ground > n.comparators.Get(n.cfg.ComparatorBase) {
		out = n.wires.Get(n.cfg.Source)
	}
	_ = n.wires.Set(n.cfg.WireBase, out)
}

// Node returns the summing node potential of the last Compute.
func (n *AnalogNeuron) Node() float64 { return n.node }

func (n *AnalogNeuron) Output() float64 { return n.wires.Get(n.cfg.WireBase) }

func (n *AnalogNeuron) Destroy() {
	n.cfg.release()
}

// ComputeAnalog evaluates neurons in order, times times over.
func ComputeAnalog(neurons []*AnalogNeuron, times int) {
	for t := 0; t < times; t++ {
		for _, n := range neurons {
			if n != nil {
				n.Compute()
			}
		}
	}
}
