package interrupt

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neurowombat/internal/dist"
	"neurowombat/internal/kernel"
	"neurowombat/internal/params"
)

type fixture struct {
	reg     *kernel.Registry
	distH   kernel.Handle
	weightH kernel.Handle
	weights *params.Weights
}

func newFixture(t *testing.T, d dist.Distribution, n int) fixture {
	t.Helper()
	reg := kernel.NewRegistry()
	w, err := params.NewWeights(n)
	require.NoError(t, err)
	w.Fill(1)
	return fixture{
		reg:     reg,
		distH:   reg.Insert(d),
		weightH: reg.Insert(w),
		weights: w,
	}
}

func (f fixture) weightsManager(t *testing.T, opts Options) *WeightsManager {
	t.Helper()
	d, ok := kernel.Acquire[dist.Distribution](f.reg, f.distH)
	require.True(t, ok)
	w, ok := kernel.Acquire[*params.Weights](f.reg, f.weightH)
	require.True(t, ok)
	m, err := NewWeightsManager(d, w, opts)
	require.NoError(t, err)
	return m
}

func TestManagerSchedulesOnConstruction(t *testing.T) {
	fixed, err := dist.NewFixed([]float64{2.5, 1})
	require.NoError(t, err)
	f := newFixture(t, fixed, 3)

	m := f.weightsManager(t, Options{Source: dist.NewSource(7)})
	assert.Equal(t, 2.5, m.FutureTime())
	assert.GreaterOrEqual(t, m.IntSource(), 0)
	assert.Less(t, m.IntSource(), 3)
	assert.Equal(t, NoSource, m.LastIntSource())
}

func TestTriggerMutatesExactlyOneEntry(t *testing.T) {
	exp, err := dist.NewExponential(1, dist.NewSource(11))
	require.NoError(t, err)
	f := newFixture(t, exp, 8)
	m := f.weightsManager(t, Options{Source: dist.NewSource(12)})

	now := 0.0
	for step := 0; step < 20; step++ {
		before := f.weights.Snapshot()
		pending := m.IntSource()
		now = m.FutureTime()
		next := m.Trigger(now)

		require.Greater(t, next, now)
		assert.Equal(t, pending, m.LastIntSource())
		after := f.weights.Snapshot()
		changed := 0
		for i := range before {
			if math.Float64bits(before[i]) != math.Float64bits(after[i]) {
				changed++
				assert.Equal(t, pending, i)
			}
		}
		assert.Equal(t, 1, changed, "step %d", step)
	}
	assert.Equal(t, uint64(20), m.Fired())
}

func TestExhaustedDistributionLeavesNoPendingEvent(t *testing.T) {
	fixed, err := dist.NewFixed([]float64{1})
	require.NoError(t, err)
	f := newFixture(t, fixed, 2)
	m := f.weightsManager(t, Options{Source: dist.NewSource(1), Fault: Zero{}})

	next := m.Trigger(1)
	assert.True(t, math.IsInf(next, 1))
	assert.Equal(t, NoSource, m.IntSource())
	assert.Equal(t, "zero", m.FaultName())
}

func TestRescheduleDrawsFromNow(t *testing.T) {
	fixed, err := dist.NewFixed([]float64{1, 4})
	require.NoError(t, err)
	f := newFixture(t, fixed, 2)
	m := f.weightsManager(t, Options{Source: dist.NewSource(1)})

	snap := f.weights.Snapshot()
	m.Reschedule(10)
	assert.Equal(t, 14.0, m.FutureTime())
	assert.Equal(t, snap, f.weights.Snapshot())
}

func TestDestroyReleasesCapturedObjects(t *testing.T) {
	fixed, err := dist.NewFixed([]float64{1})
	require.NoError(t, err)
	f := newFixture(t, fixed, 2)
	m := f.weightsManager(t, Options{Source: dist.NewSource(1)})

	assert.Equal(t, 1, f.reg.Captures(f.distH))
	assert.Equal(t, 1, f.reg.Captures(f.weightH))

	require.True(t, f.reg.Delete(f.weightH))
	assert.Equal(t, 2, f.reg.Len(), "captured weights must outlive their handle")

	m.Destroy()
	assert.Equal(t, 0, f.reg.Captures(f.distH))
	assert.Equal(t, 1, f.reg.Len())
}

func TestConstructionFailureReleasesRefs(t *testing.T) {
	fixed, err := dist.NewFixed([]float64{1})
	require.NoError(t, err)
	f := newFixture(t, fixed, 2)

	d, ok := kernel.Acquire[dist.Distribution](f.reg, f.distH)
	require.True(t, ok)
	w, ok := kernel.Acquire[*params.Weights](f.reg, f.weightH)
	require.True(t, ok)

	_, err = NewWeightsManager(d, w, Options{})
	require.Error(t, err)
	assert.Equal(t, 0, f.reg.Captures(f.distH))
	assert.Equal(t, 0, f.reg.Captures(f.weightH))
}

func TestResistorsManagerOpenFault(t *testing.T) {
	reg := kernel.NewRegistry()
	fixed, err := dist.NewFixed([]float64{0.5})
	require.NoError(t, err)
	r, err := params.NewResistances(1)
	require.NoError(t, err)
	r.Fill(10)

	d, _ := kernel.Acquire[dist.Distribution](reg, reg.Insert(fixed))
	rr, _ := kernel.Acquire[*params.Resistances](reg, reg.Insert(r))
	m, err := NewResistorsManager(d, rr, Options{Source: dist.NewSource(3), Fault: Open{}})
	require.NoError(t, err)

	m.Trigger(m.FutureTime())
	v, _ := m.Resistances().At(0)
	assert.True(t, math.IsInf(v, 1))
}

func TestParseFault(t *testing.T) {
	f, err := ParseFault("", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultFault, f)

	f, err = ParseFault("Scale", []float64{0.5})
	require.NoError(t, err)
	assert.Equal(t, Scale{Factor: 0.5}, f)

	_, err = ParseFault("drift", []float64{0})
	assert.Error(t, err)
	_, err = ParseFault("resample", []float64{2, 1})
	assert.Error(t, err)

	_, err = ParseFault("melt", nil)
	assert.True(t, errors.Is(err, ErrUnknownFault))
}
