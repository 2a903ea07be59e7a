package api

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neurowombat/internal/interrupt"
	"neurowombat/internal/kernel"
	"neurowombat/internal/logging"
	"neurowombat/internal/metrics"
)

func newSession(t *testing.T) *Session {
	t.Helper()
	s := NewSession(Options{Seed: 42})
	t.Cleanup(s.Shutdown)
	return s
}

func TestConcreteScenarioThroughBoundary(t *testing.T) {
	s := newSession(t)

	w := s.CreateWeights(4)
	require.NotEqual(t, kernel.None, w)
	require.Equal(t, 4, s.SetValues(w, 0, []float64{1, 1, 1, 1}))

	d := s.CreateDistribution("exponential", []float64{1.0})
	require.NotEqual(t, kernel.None, d)
	m := s.CreateWeightsManager(d, w, nil)
	require.NotEqual(t, kernel.None, m)
	e := s.CreateEngine()
	require.NotEqual(t, kernel.None, e)
	require.True(t, s.AppendManager(e, m))

	prev := s.Values(w, 0, 4)
	lastTime := s.CurrentTime(e)
	for step := 0; step < 5; step++ {
		require.True(t, s.StepOver(e))
		now := s.CurrentTime(e)
		assert.Greater(t, now, lastTime)
		lastTime = now

		cur := s.Values(w, 0, 4)
		changed := 0
		for i := range cur {
			if math.Float64bits(cur[i]) != math.Float64bits(prev[i]) {
				changed++
			}
		}
		assert.Equal(t, 1, changed, "step %d", step)

		mgr, src := s.CurrentSource(e)
		assert.Equal(t, m, mgr)
		assert.GreaterOrEqual(t, src, 0)
		prev = cur
	}
	assert.Equal(t, uint64(5), s.Steps(e))
}

func TestSentinelsForUnknownAndMismatchedHandles(t *testing.T) {
	s := newSession(t)
	d := s.CreateDistribution("weibull", []float64{2, 1.5})
	require.NotEqual(t, kernel.None, d)

	_, ok := s.Value(d, 0)
	assert.False(t, ok, "distribution is not a parameter array")
	assert.Nil(t, s.Values(d, 0, 2))
	assert.False(t, s.SetValue(d, 0, 1))
	assert.False(t, s.StepOver(d))
	assert.Equal(t, -1.0, s.FutureTime(d))
	h, src := s.FutureSource(kernel.None)
	assert.Equal(t, kernel.None, h)
	assert.Equal(t, interrupt.NoSource, src)
	assert.False(t, s.Close(kernel.Handle(999)))
	assert.Equal(t, 0, s.SetupResistances(d, 0, []float64{1}, 1))
	_, ok = s.Output(d)
	assert.False(t, ok)
}

func TestEmptyConstructionYieldsNone(t *testing.T) {
	s := newSession(t)
	assert.Equal(t, kernel.None, s.CreateWeights(0))
	assert.Equal(t, kernel.None, s.CreateResistances(-1))
	assert.Equal(t, kernel.None, s.CreateDistribution("exponential", []float64{0}))
	assert.Equal(t, kernel.None, s.CreateDistribution("gamma", []float64{1}))
	assert.Equal(t, kernel.None, s.CreateActivation("softmax", nil))
	assert.Equal(t, kernel.None, s.CreateProcessor("fft", false))
	assert.Equal(t, kernel.None, s.CreateCustomActivation(nil, nil))
	assert.Equal(t, 0, s.Objects())
}

func TestManagerCreationRejectsWrongCapability(t *testing.T) {
	s := newSession(t)
	d := s.CreateDistribution("fixed", []float64{1, 2})
	r := s.CreateResistances(3)

	assert.Equal(t, kernel.None, s.CreateWeightsManager(d, r, nil))
	assert.Equal(t, kernel.None, s.CreateResistorsManager(r, d, nil))
	assert.Equal(t, 0, s.Registry().Captures(d), "failed construction must release captures")
	assert.Equal(t, 0, s.Registry().Captures(r))

	m := s.CreateResistorsManager(d, r, interrupt.Open{})
	require.NotEqual(t, kernel.None, m)
	assert.Equal(t, 1, s.Registry().Captures(d))
	assert.Equal(t, 1, s.Registry().Captures(r))
}

func TestCloseDefersDestructionUntilHoldersRelease(t *testing.T) {
	s := newSession(t)
	w := s.CreateWeights(2)
	d := s.CreateDistribution("fixed", []float64{1})
	m := s.CreateWeightsManager(d, w, nil)
	e := s.CreateEngine()
	require.True(t, s.AppendManager(e, m))

	require.True(t, s.Close(w))
	require.True(t, s.Close(d))
	require.True(t, s.Close(m))
	assert.Equal(t, 4, s.Objects(), "engine keeps the manager and its arrays alive")
	_, ok := s.Value(w, 0)
	assert.False(t, ok, "closed handles are unreachable")

	require.True(t, s.StepOver(e), "detached objects keep working")
	assert.False(t, s.StepOver(e))

	require.True(t, s.Close(e))
	assert.Equal(t, 0, s.Objects())
}

func TestShutdownDestroysEverything(t *testing.T) {
	s := NewSession(Options{Seed: 1})
	w := s.CreateWeights(3)
	d := s.CreateDistribution("exponential", []float64{2})
	m := s.CreateWeightsManager(d, w, nil)
	e := s.CreateEngine()
	require.True(t, s.AppendManager(e, m))

	s.Shutdown()
	assert.Equal(t, 0, s.Objects())
}

func TestSeededSessionsAreDeterministic(t *testing.T) {
	run := func() []float64 {
		s := NewSession(Options{Seed: 9})
		defer s.Shutdown()
		w := s.CreateWeights(5)
		s.SetValues(w, 0, []float64{1, 2, 3, 4, 5})
		d := s.CreateDistribution("exponential", []float64{0.5})
		m := s.CreateWeightsManager(d, w, nil)
		e := s.CreateEngine()
		s.AppendManager(e, m)
		var times []float64
		for s.StepOver(e) && len(times) < 10 {
			times = append(times, s.CurrentTime(e))
		}
		return append(times, s.Values(w, 0, 5)...)
	}
	assert.Equal(t, run(), run())
}

func TestAbstractNetworkThroughBoundary(t *testing.T) {
	s := newSession(t)

	signals := s.CreateSignals(3)
	weights := s.CreateWeights(2)
	proc := s.CreateProcessor(ProcessorWeightedSum, false)
	act := s.CreateActivation("linear", []float64{1, 0})
	require.NotEqual(t, kernel.None, act)

	n := s.CreateAbstractNeuron(AbstractNeuronSpec{
		Inputs:     []int{0, 1},
		Signals:    signals,
		SignalBase: 2,
		Weights:    weights,
		Processor:  proc,
		Activation: act,
	})
	require.NotEqual(t, kernel.None, n)

	s.SetValues(weights, 0, []float64{0.5, 2})
	s.SetValues(signals, 0, []float64{2, 3})
	require.True(t, s.ComputeAbstract([]kernel.Handle{n}, 1))
	out, ok := s.Output(n)
	require.True(t, ok)
	assert.InDelta(t, 7.0, out, 1e-12)

	require.True(t, s.TrainBP([]kernel.Handle{n}, []int{1}, []float64{8}, 0, 0.01))
	w0, _ := s.Value(weights, 0)
	assert.Greater(t, w0, 0.5, "training moves weights toward the target")

	assert.False(t, s.TrainBP([]kernel.Handle{n}, []int{2}, []float64{8}, 0, 0.01))
	assert.False(t, s.ComputeAbstract([]kernel.Handle{weights}, 1))
}

func TestAbstractNeuronCreationFailureReleases(t *testing.T) {
	s := newSession(t)
	signals := s.CreateSignals(2)
	proc := s.CreateProcessor(ProcessorScalar, false)

	n := s.CreateAbstractNeuron(AbstractNeuronSpec{
		Inputs:     []int{0},
		Signals:    signals,
		SignalBase: 1,
		Processor:  proc,
		Activation: kernel.None,
	})
	assert.Equal(t, kernel.None, n)
	assert.Equal(t, 0, s.Registry().Captures(signals))
	assert.Equal(t, 0, s.Registry().Captures(proc))
}

func TestAnalogNeuronThroughBoundary(t *testing.T) {
	s := newSession(t)

	// wires: 0 ground, 1 source, 2..3 inputs, 4 output
	wires := s.CreatePotentials(5)
	resistors := s.CreateResistances(2)
	comparators := s.CreateComparators(1)
	s.SetValues(wires, 0, []float64{0, 1, 1, 0})
	require.Equal(t, 2, s.SetupResistances(resistors, 0, []float64{3, 1}, 1))
	s.SetValue(comparators, 0, 0.5)

	n := s.CreateAnalogNeuron(AnalogNeuronSpec{
		Inputs:      []int{2, 3},
		Ground:      0,
		Source:      1,
		Comparators: comparators,
		Resistors:   resistors,
		Wires:       wires,
		WireBase:    4,
	})
	require.NotEqual(t, kernel.None, n)
	require.True(t, s.ComputeAnalog([]kernel.Handle{n}, 1))
	out, ok := s.Output(n)
	require.True(t, ok)
	assert.Equal(t, 1.0, out)

	s.SetValue(comparators, 0, 0.9)
	require.True(t, s.ComputeAnalog([]kernel.Handle{n}, 1))
	out, _ = s.Output(n)
	assert.Equal(t, 0.0, out)
}

func TestSessionMetricsAndTraceLogging(t *testing.T) {
	m := metrics.Must()
	var buf bytes.Buffer
	s := NewSession(Options{Seed: 3, Metrics: m, Logger: logging.NewLogger("trace", &buf)})

	w := s.CreateWeights(2)
	d := s.CreateDistribution("fixed", []float64{1, 1})
	mh := s.CreateWeightsManager(d, w, nil)
	e := s.CreateEngine()
	require.True(t, s.AppendManager(e, mh))
	assert.Equal(t, 2, s.RunUntil(e, 10))

	assert.Contains(t, buf.String(), "msg=step")
	assert.Contains(t, buf.String(), "level=TRACE")

	assert.Equal(t, 4.0, liveObjects(t, m))
	s.Shutdown()
	assert.Equal(t, 0.0, liveObjects(t, m))
}

func liveObjects(t *testing.T, m *metrics.Metrics) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "neurowombat_registry_objects" {
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatal("registry objects gauge not exported")
	return 0
}
