package experiment

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neurowombat/internal/config"
	"neurowombat/internal/metrics"
	"neurowombat/internal/stats"
)

// singleWeight is a one-input linear neuron whose output equals its weight.
func singleWeight(trials int) *config.Config {
	cfg := config.Default()
	cfg.Network = config.NetworkConfig{
		Kind:             config.NetworkAbstract,
		Layers:           []int{1, 1},
		Weights:          []float64{1},
		Activation:       "linear",
		ActivationParams: []float64{1, 0},
		Patterns:         [][]float64{{1}},
	}
	cfg.Faults = config.FaultConfig{Distribution: "fixed", Params: []float64{2, 3}, Model: "zero"}
	cfg.Experiment.Trials = trials
	cfg.Experiment.Workers = 2
	cfg.Experiment.Horizon = 10
	return cfg
}

func TestWeightsUsesConfiguredValues(t *testing.T) {
	cfg := config.NetworkConfig{Layers: []int{2, 1}, Weights: []float64{0.5, -0.5}}
	w := Weights(cfg)
	assert.Equal(t, []float64{0.5, -0.5}, w)
	w[0] = 9
	assert.Equal(t, 0.5, cfg.Weights[0], "returned weights are a copy")
}

func TestWeightsGeneratedFromSeed(t *testing.T) {
	abstract := config.NetworkConfig{Kind: config.NetworkAbstract, Layers: []int{2, 3, 1}, WeightSeed: 7}
	first := Weights(abstract)
	require.Len(t, first, 9)
	assert.Equal(t, first, Weights(abstract))
	for _, w := range first {
		assert.GreaterOrEqual(t, w, -1.0)
		assert.Less(t, w, 1.0)
	}

	analog := abstract
	analog.Kind = config.NetworkAnalog
	for _, w := range Weights(analog) {
		assert.GreaterOrEqual(t, w, 0.5, "analog weights stay positive")
	}
}

func TestRunRecordsFailureTime(t *testing.T) {
	cfg := singleWeight(5)
	res, err := Run(context.Background(), cfg, Options{RunID: "fixed-zero"})
	require.NoError(t, err)

	assert.Equal(t, "fixed-zero", res.RunID)
	require.Len(t, res.Trials, 5)
	for i, tr := range res.Trials {
		assert.Equal(t, i, tr.Trial)
		assert.Equal(t, cfg.Experiment.Seed+int64(i), tr.Seed)
		assert.True(t, tr.Failed)
		assert.Equal(t, 2.0, tr.FailureTime)
		assert.Equal(t, 1, tr.Events)
	}
	assert.Equal(t, 5, res.Failures)
	assert.Equal(t, 5, res.TotalEvents)
	require.NotNil(t, res.MeanFailureTime)
	assert.Equal(t, stats.Interval{Estimate: 2, Low: 2, High: 2}, *res.MeanFailureTime)
	assert.Equal(t, 0.0, res.Survival.Estimate)
	assert.Equal(t, 0.0, res.Survival.Low)
	assert.Greater(t, res.Survival.High, 0.0)
}

func TestRunSurvivorsReachHorizon(t *testing.T) {
	cfg := singleWeight(3)
	cfg.Faults = config.FaultConfig{Distribution: "fixed", Params: []float64{1, 1, 1}, Model: "scale", ModelParams: []float64{1}}

	res, err := Run(context.Background(), cfg, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Failures)
	assert.Nil(t, res.MeanFailureTime)
	assert.Equal(t, 1.0, res.Survival.Estimate)
	for _, tr := range res.Trials {
		assert.False(t, tr.Failed)
		assert.Equal(t, cfg.Experiment.Horizon, tr.FailureTime)
		assert.Equal(t, 3, tr.Events, "fixed schedule exhausts after three events")
	}
	assert.Contains(t, res.RunID, "abstract-")
}

func TestRunStopsAtHorizonAndMaxSteps(t *testing.T) {
	cfg := singleWeight(1)
	cfg.Faults = config.FaultConfig{Distribution: "fixed", Params: []float64{1, 1, 1}, Model: "scale", ModelParams: []float64{1}}
	cfg.Experiment.Horizon = 2.5

	res, err := Run(context.Background(), cfg, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Trials[0].Events)

	cfg.Experiment.Horizon = 10
	cfg.Experiment.MaxSteps = 1
	res, err = Run(context.Background(), cfg, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Trials[0].Events)
	assert.False(t, res.Trials[0].Failed)
}

func TestRunAnalogOpenResistor(t *testing.T) {
	cfg := config.Default()
	cfg.Network = config.NetworkConfig{
		Kind:      config.NetworkAnalog,
		Layers:    []int{1, 1},
		Weights:   []float64{1},
		Threshold: 0.5,
		Patterns:  [][]float64{{1}},
	}
	cfg.Faults = config.FaultConfig{Distribution: "fixed", Params: []float64{1.5}, Model: "open"}
	cfg.Experiment.Trials = 2

	res, err := Run(context.Background(), cfg, Options{})
	require.NoError(t, err)
	for _, tr := range res.Trials {
		assert.True(t, tr.Failed, "an open input resistor drops the node to ground")
		assert.Equal(t, 1.5, tr.FailureTime)
	}
}

func TestRunIsDeterministicAcrossWorkerCounts(t *testing.T) {
	cfg := config.Default()
	cfg.Experiment.Trials = 12
	cfg.Experiment.Horizon = 50

	cfg.Experiment.Workers = 1
	serial, err := Run(context.Background(), cfg, Options{RunID: "a"})
	require.NoError(t, err)

	cfg.Experiment.Workers = 4
	parallel, err := Run(context.Background(), cfg, Options{RunID: "a"})
	require.NoError(t, err)

	assert.Equal(t, serial.Trials, parallel.Trials)
	assert.Equal(t, serial.Survival, parallel.Survival)
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	_, err := Run(context.Background(), nil, Options{})
	require.Error(t, err)

	cfg := config.Default()
	cfg.Experiment.Trials = 0
	_, err = Run(context.Background(), cfg, Options{})
	require.Error(t, err)

	cfg = singleWeight(1)
	cfg.Faults = config.FaultConfig{Distribution: "exponential", Params: []float64{1}, Model: "scale", ModelParams: []float64{1}}
	cfg.Experiment.Horizon = math.Inf(1)
	cfg.Experiment.MaxSteps = 0
	_, err = Run(context.Background(), cfg, Options{})
	require.ErrorContains(t, err, "horizon")
}

func TestRunHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, config.Default(), Options{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunCountsTrialsInMetrics(t *testing.T) {
	m := metrics.Must()
	_, err := Run(context.Background(), singleWeight(4), Options{Metrics: m})
	require.NoError(t, err)

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	var failed float64
	for _, mf := range families {
		if mf.GetName() != "neurowombat_experiment_trials_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetValue() == metrics.OutcomeFailed {
					failed = metric.GetCounter().GetValue()
				}
			}
		}
	}
	assert.Equal(t, 4.0, failed)
}

func TestResultRecords(t *testing.T) {
	cfg := singleWeight(2)
	res, err := Run(context.Background(), cfg, Options{RunID: "records"})
	require.NoError(t, err)
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	summary := res.Summary(cfg, created)
	assert.Equal(t, "records", summary.RunID)
	assert.Equal(t, 1, summary.SchemaVersion)
	assert.Equal(t, 2, summary.Failures)
	assert.Equal(t, 2.0, summary.MeanFailureTime)
	assert.Equal(t, "2026-01-02T03:04:05Z", summary.CreatedAtUTC)

	records := res.TrialRecords()
	require.Len(t, records, 2)
	assert.Equal(t, cfg.Experiment.Seed+1, records[1].Seed)

	artifacts := res.Artifacts(cfg)
	assert.Equal(t, "linear", artifacts.Config.Activation)
	assert.Equal(t, "zero", artifacts.Config.Fault)
	assert.Len(t, artifacts.Trials, 2)

	dir := t.TempDir()
	_, err = stats.WriteRunArtifacts(dir, artifacts)
	require.NoError(t, err)
	got, ok, err := stats.ReadRunSummary(dir, "records")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, got.Failures)

	entry := res.IndexEntry(cfg, created)
	assert.Equal(t, 2.0, entry.MeanFailureTime)
	assert.Equal(t, 0.0, entry.Survival)
}
