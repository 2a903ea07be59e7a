package experiment

import (
	"fmt"

	"neurowombat/internal/api"
	"neurowombat/internal/config"
	"neurowombat/internal/dist"
	"neurowombat/internal/interrupt"
	"neurowombat/internal/kernel"
)

// Analog circuits reserve the first two wires.
const (
	groundWire = 0
	sourceWire = 1
	firstWire  = 2
)

// network is a layered circuit built inside one session. Every perturbable
// array belongs to exactly one layer.
type network struct {
	s       *api.Session
	analog  bool
	neurons []kernel.Handle
	arrays  []kernel.Handle

	// io is the signals array (abstract) or the wires array (analog).
	io         kernel.Handle
	inputBase  int
	outputBase int
	outputs    int
}

// Weights returns the configured weights, or seeded random ones when the
// configuration leaves them out. Analog circuits get positive weights so
// every resistor stays physical.
func Weights(cfg config.NetworkConfig) []float64 {
	if len(cfg.Weights) > 0 {
		return append([]float64(nil), cfg.Weights...)
	}
	src := dist.NewSource(cfg.WeightSeed)
	out := make([]float64, config.WeightCount(cfg.Layers))
	for i := range out {
		if cfg.Kind == config.NetworkAnalog {
			out[i] = 0.5 + src.Float64()
		} else {
			out[i] = 2*src.Float64() - 1
		}
	}
	return out
}

func buildNetwork(s *api.Session, cfg config.NetworkConfig, weights []float64) (*network, error) {
	if len(weights) != config.WeightCount(cfg.Layers) {
		return nil, fmt.Errorf("expected %d weights, got %d", config.WeightCount(cfg.Layers), len(weights))
	}
	if cfg.Kind == config.NetworkAnalog {
		return buildAnalog(s, cfg, weights)
	}
	return buildAbstract(s, cfg, weights)
}

func buildAbstract(s *api.Session, cfg config.NetworkConfig, weights []float64) (*network, error) {
	layers := cfg.Layers
	total := sum(layers)

	net := &network{s: s, outputBase: total - layers[len(layers)-1], outputs: layers[len(layers)-1]}
	net.io = s.CreateSignals(total)
	proc := s.CreateProcessor(api.ProcessorWeightedSum, false)
	act := s.CreateActivation(cfg.Activation, cfg.ActivationParams)
	if net.io == kernel.None || proc == kernel.None || act == kernel.None {
		return nil, fmt.Errorf("abstract network: cannot create signals, processor or activation %q", cfg.Activation)
	}

	offset, wi := 0, 0
	for l := 1; l < len(layers); l++ {
		prev, size := layers[l-1], layers[l]
		arr := s.CreateWeights(prev * size)
		if arr == kernel.None {
			return nil, fmt.Errorf("abstract network: cannot create weights of layer %d", l)
		}
		s.SetValues(arr, 0, weights[wi:wi+prev*size])
		wi += prev * size
		net.arrays = append(net.arrays, arr)

		inputs := span(offset, prev)
		for k := 0; k < size; k++ {
			h := s.CreateAbstractNeuron(api.AbstractNeuronSpec{
				Inputs:     inputs,
				Signals:    net.io,
				SignalBase: offset + prev + k,
				Weights:    arr,
				WeightBase: k * prev,
				Processor:  proc,
				Activation: act,
			})
			if h == kernel.None {
				return nil, fmt.Errorf("abstract network: cannot create neuron %d of layer %d", k, l)
			}
			net.neurons = append(net.neurons, h)
		}
		offset += prev
	}
	return net, nil
}

func buildAnalog(s *api.Session, cfg config.NetworkConfig, weights []float64) (*network, error) {
	layers := cfg.Layers
	total := sum(layers)

	net := &network{
		s:          s,
		analog:     true,
		inputBase:  firstWire,
		outputBase: firstWire + total - layers[len(layers)-1],
		outputs:    layers[len(layers)-1],
	}
	net.io = s.CreatePotentials(firstWire + total)
	if net.io == kernel.None {
		return nil, fmt.Errorf("analog network: cannot create wires")
	}
	s.SetValue(net.io, groundWire, 0)
	s.SetValue(net.io, sourceWire, 1)

	offset, wi := 0, 0
	for l := 1; l < len(layers); l++ {
		prev, size := layers[l-1], layers[l]
		res := s.CreateResistances(prev * size)
		cmp := s.CreateComparators(size)
		if res == kernel.None || cmp == kernel.None {
			return nil, fmt.Errorf("analog network: cannot create arrays of layer %d", l)
		}
		for k := 0; k < size; k++ {
			s.SetupResistances(res, k*prev, weights[wi+k*prev:wi+(k+1)*prev], 1)
			s.SetValue(cmp, k, cfg.Threshold)
		}
		wi += prev * size
		net.arrays = append(net.arrays, res)

		inputs := span(firstWire+offset, prev)
		for k := 0; k < size; k++ {
			h := s.CreateAnalogNeuron(api.AnalogNeuronSpec{
				Inputs:         inputs,
				Ground:         groundWire,
				Source:         sourceWire,
				Comparators:    cmp,
				ComparatorBase: k,
				Resistors:      res,
				ResistorBase:   k * prev,
				Wires:          net.io,
				WireBase:       firstWire + offset + prev + k,
			})
			if h == kernel.None {
				return nil, fmt.Errorf("analog network: cannot create neuron %d of layer %d", k, l)
			}
			net.neurons = append(net.neurons, h)
		}
		offset += prev
	}
	return net, nil
}

// attach creates one perturbation manager per layer array, each with its own
// distribution, and appends them to a new engine.
func (n *network) attach(faults config.FaultConfig) (kernel.Handle, error) {
	fault, err := interrupt.ParseFault(faults.Model, faults.ModelParams)
	if err != nil {
		return kernel.None, err
	}
	e := n.s.CreateEngine()
	if e == kernel.None {
		return kernel.None, fmt.Errorf("cannot create engine")
	}
	for i, arr := range n.arrays {
		d := n.s.CreateDistribution(faults.Distribution, faults.Params)
		if d == kernel.None {
			return kernel.None, fmt.Errorf("cannot create %s distribution %v", faults.Distribution, faults.Params)
		}
		var m kernel.Handle
		if n.analog {
			m = n.s.CreateResistorsManager(d, arr, fault)
		} else {
			m = n.s.CreateWeightsManager(d, arr, fault)
		}
		if m == kernel.None || !n.s.AppendManager(e, m) {
			return kernel.None, fmt.Errorf("cannot attach manager to layer array %d", i)
		}
	}
	return e, nil
}

// evaluate feeds pattern through the network and returns the outputs.
func (n *network) evaluate(pattern []float64) []float64 {
	n.s.SetValues(n.io, n.inputBase, pattern)
	if n.analog {
		n.s.ComputeAnalog(n.neurons, 1)
	} else {
		n.s.ComputeAbstract(n.neurons, 1)
	}
	return n.s.Values(n.io, n.outputBase, n.outputs)
}

// outputsFor evaluates every pattern in order.
func (n *network) outputsFor(patterns [][]float64) [][]float64 {
	out := make([][]float64, len(patterns))
	for i, p := range patterns {
		out[i] = n.evaluate(p)
	}
	return out
}

func span(from, count int) []int {
	out := make([]int, count)
	for i := range out {
		out[i] = from + i
	}
	return out
}

func sum(values []int) int {
	total := 0
	for _, v := range values {
		total += v
	}
	return total
}
