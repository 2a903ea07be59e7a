// Package neuron holds the numeric models that read and write the shared
// parameter arrays: abstract neurons with pluggable processors and
// activations, and resistor based analog neurons.
package neuron

import (
	"errors"
	"fmt"

	"neurowombat/internal/kernel"
	"neurowombat/internal/params"
)

var (
	ErrMissingDependency = errors.New("neuron dependency missing")
	ErrIndexOutOfRange   = errors.New("neuron index out of range")
	ErrLayout            = errors.New("invalid layer layout")
)

type AbstractConfig struct {
	// Inputs are signal indices read by the neuron.
	Inputs []int
	// Signals is required; the neuron writes its output at SignalBase.
	Signals    kernel.Ref[*params.Signals]
	SignalBase int
	// Weights is optional. Without it the neuron keeps private weights.
	Weights    kernel.Ref[*params.Weights]
	WeightBase int
	Processor  kernel.Ref[Processor]
	Activation kernel.Ref[Activation]
}

func (c AbstractConfig) release() {
	c.Signals.Release()
	c.Weights.Release()
	c.Processor.Release()
	c.Activation.Release()
}

// AbstractNeuron evaluates activation(processor(x, w)) into its output signal.
type AbstractNeuron struct {
	cfg        AbstractConfig
	signals    *params.Signals
	weights    *params.Weights
	builtIn    []float64
	buffers    []float64
	processor  Processor
	activation Activation

	x           []float64
	w           []float64
	processed   float64
	delta       float64
	weightCount int
}

// NewAbstractNeuron takes ownership of every reference in cfg, also when it
// fails.
func NewAbstractNeuron(cfg AbstractConfig) (*AbstractNeuron, error) {
	if !cfg.Signals.Valid() || !cfg.Processor.Valid() || !cfg.Activation.Valid() {
		cfg.release()
		return nil, fmt.Errorf("%w: signals, processor and activation are required", ErrMissingDependency)
	}
	n := &AbstractNeuron{
		cfg:        cfg,
		signals:    cfg.Signals.Value(),
		processor:  cfg.Processor.Value(),
		activation: cfg.Activation.Value(),
		x:          make([]float64, len(cfg.Inputs)),
	}
	n.weightCount = n.processor.Weights(len(cfg.Inputs))
	n.w = make([]float64, n.weightCount)

	if err := n.validate(); err != nil {
		cfg.release()
		return nil, err
	}
	if cfg.Weights.Valid() {
		n.weights = cfg.Weights.Value()
	} else {
		n.builtIn = make([]float64, n.weightCount)
	}
	return n, nil
}

func (n *AbstractNeuron) validate() error {
	size := n.signals.Len()
	for _, idx := range n.cfg.Inputs {
		if idx < 0 || idx >= size {
			return fmt.Errorf("%w: input signal %d of %d", ErrIndexOutOfRange, idx, size)
		}
	}
	if n.cfg.SignalBase < 0 || n.cfg.SignalBase >= size {
		return fmt.Errorf("%w: output signal %d of %d", ErrIndexOutOfRange, n.cfg.SignalBase, size)
	}
	if n.cfg.Weights.Valid() {
		w := n.cfg.Weights.Value()
		if n.cfg.WeightBase < 0 || n.cfg.WeightBase+n.weightCount > w.Len() {
			return fmt.Errorf("%w: weights [%d,%d) of %d", ErrIndexOutOfRange, n.cfg.WeightBase, n.cfg.WeightBase+n.weightCount, w.Len())
		}
	}
	return nil
}

func (n *AbstractNeuron) Inputs() int { return len(n.cfg.Inputs) }

func (n *AbstractNeuron) Weight(i int) float64 {
	if n.weights == nil {
		return n.builtIn[i]
	}
	return n.weights.Get(n.cfg.WeightBase + i)
}

func (n *AbstractNeuron) SetWeight(i int, v float64) {
	if n.weights == nil {
		n.builtIn[i] = v
		return
	}
	_ = n.weights.Set(n.cfg.WeightBase+i, v)
}

func (n *AbstractNeuron) Output() float64 { return n.signals.Get(n.cfg.SignalBase) }

// Compute reads the inputs, runs the processor and the activation and writes
// the output signal.
func (n *AbstractNeuron) Compute() {
	for i, idx := range n.cfg.Inputs {
		n.x[i] = n.signals.Get(idx)
	}
	for i := range n.w {
		n.w[i] = n.Weight(i)
	}
	n.processed = n.processor.Process(n.x, n.w)
	_ = n.signals.Set(n.cfg.SignalBase, n.activation.Evaluate(n.processed))
}

// SnapDelta stores err scaled by the activation slope at the last processor
// output.
func (n *AbstractNeuron) SnapDelta(err float64) {
	n.delta = err * n.activation.Derivative(n.processed)
}

func (n *AbstractNeuron) Delta() float64 { return n.delta }

// WeightedDelta is the share of this neuron's delta propagated back through
// input i.
func (n *AbstractNeuron) WeightedDelta(i int) float64 { return n.delta * n.Weight(i) }

// ModifyWeights applies one momentum update:
// dw_i = damping*dw_i' + delta*speed*x_i.
func (n *AbstractNeuron) ModifyWeights(damping, speed float64) {
	if n.buffers == nil {
		n.buffers = make([]float64, len(n.cfg.Inputs))
	}
	d := n.delta * speed
	for i, idx := range n.cfg.Inputs {
		dw := damping*n.buffers[i] + d*n.signals.Get(idx)
		n.buffers[i] = dw
		n.SetWeight(i, n.Weight(i)+dw)
	}
}

func (n *AbstractNeuron) Destroy() {
	n.cfg.release()
}

// ComputeAll evaluates neurons in order, times times over.
func ComputeAll(neurons []*AbstractNeuron, times int) {
	for t := 0; t < times; t++ {
		for _, n := range neurons {
			if n != nil {
				n.Compute()
			}
		}
	}
}

// TrainBP runs one back-propagation pass. neurons are ordered layer by layer
// and layers gives the neuron count of each layer; every neuron of a layer
// reads the whole previous layer in order. target holds the expected outputs
// of the last layer.
func TrainBP(neurons []*AbstractNeuron, layers []int, target []float64, damping, speed float64) error {
	if len(layers) == 0 {
		return fmt.Errorf("%w: no layers", ErrLayout)
	}
	total := 0
	for _, count := range layers {
		if count <= 0 {
			return fmt.Errorf("%w: layer size %d", ErrLayout, count)
		}
		total += count
	}
	if total != len(neurons) {
		return fmt.Errorf("%w: layers hold %d neurons, got %d", ErrLayout, total, len(neurons))
	}
	outputs := layers[len(layers)-1]
	if len(target) != outputs {
		return fmt.Errorf("%w: target length %d, want %d", ErrLayout, len(target), outputs)
	}
	for _, n := range neurons {
		if n == nil {
			return fmt.Errorf("%w: nil neuron", ErrMissingDependency)
		}
	}
	for l := 1; l < len(layers); l++ {
		start := total - sumFrom(layers, l)
		for k := 0; k < layers[l]; k++ {
			if neurons[start+k].Inputs() < layers[l-1] {
				return fmt.Errorf("%w: layer %d neuron %d reads %d inputs, previous layer has %d", ErrLayout, l, k, neurons[start+k].Inputs(), layers[l-1])
			}
		}
	}

	ComputeAll(neurons, 1)

	offset := total - outputs
	for i := 0; i < outputs; i++ {
		n := neurons[offset+i]
		n.SnapDelta(target[i] - n.Output())
	}

	next := offset
	for l := len(layers) - 2; l >= 0; l-- {
		start := next - layers[l]
		for j := 0; j < layers[l]; j++ {
			err := 0.0
			for k := 0; k < layers[l+1]; k++ {
				err += neurons[next+k].WeightedDelta(j)
			}
			neurons[start+j].SnapDelta(err)
		}
		next = start
	}

	for _, n := range neurons {
		n.ModifyWeights(damping, speed)
	}
	return nil
}

func sumFrom(layers []int, from int) int {
	sum := 0
	for _, count := range layers[from:] {
		sum += count
	}
	return sum
}
