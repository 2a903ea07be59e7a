// Package experiment runs Monte-Carlo reliability experiments: it builds the
// configured network once per trial, lets perturbation managers degrade its
// parameters and records when its outputs first leave the tolerance band.
package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"neurowombat/internal/api"
	"neurowombat/internal/config"
	"neurowombat/internal/logging"
	"neurowombat/internal/metrics"
	"neurowombat/internal/stats"
)

// ctxCheckEvery bounds how many events a trial runs between cancellation
// checks.
const ctxCheckEvery = 256

type Options struct {
	// RunID overrides the generated run id.
	RunID   string
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// TrialResult is the outcome of one trial. FailureTime is the horizon when
// the network survived.
type TrialResult struct {
	Trial       int
	Seed        int64
	FailureTime float64
	Failed      bool
	Events      int
}

type Result struct {
	RunID       string
	Trials      []TrialResult
	Failures    int
	TotalEvents int
	// MeanFailureTime covers failed trials only and is nil without failures.
	MeanFailureTime *stats.Interval
	// Survival is the probability of reaching the horizon.
	Survival stats.Interval
	Elapsed  time.Duration
}

// NewRunID returns a fresh run id for a network kind.
func NewRunID(kind string) string {
	return fmt.Sprintf("%s-%s", kind, uuid.NewString())
}

// Run executes every trial of cfg on a bounded worker pool. Results are
// deterministic for a given configuration regardless of the worker count.
func Run(ctx context.Context, cfg *config.Config, opts Options) (*Result, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	runID := opts.RunID
	if runID == "" {
		runID = NewRunID(cfg.Network.Kind)
	}
	logger = logger.With("run_id", runID)

	start := time.Now()
	weights := Weights(cfg.Network)
	reference, err := referenceOutputs(cfg.Network, weights)
	if err != nil {
		return nil, err
	}

	workers := cfg.Experiment.Workers
	if workers <= 0 {
		workers = 1
	}
	logger.Info("experiment started",
		"network", cfg.Network.Kind,
		"layers", cfg.Network.Layers,
		"trials", cfg.Experiment.Trials,
		"workers", workers,
		"distribution", cfg.Faults.Distribution,
		"fault", cfg.Faults.Model)

	trials := make([]TrialResult, cfg.Experiment.Trials)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range trials {
		if gctx.Err() != nil {
			break
		}
		i := i // per-iteration copy; go.mod targets go 1.21 (pre-1.22 loop semantics)
		g.Go(func() error {
			res, err := runTrial(gctx, cfg, i, weights, reference, logger, opts.Metrics)
			if err != nil {
				return fmt.Errorf("trial %d: %w", i, err)
			}
			trials[i] = res
			opts.Metrics.Trial(res.Failed, res.FailureTime)
			logger.Debug("trial finished", "trial", i, "failed", res.Failed, "t", res.FailureTime, "events", res.Events)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := aggregate(runID, trials, cfg.Experiment.Confidence)
	if err != nil {
		return nil, err
	}
	result.Elapsed = time.Since(start)
	logger.Info("experiment finished",
		"failures", result.Failures,
		"survival", result.Survival.Estimate,
		"events", result.TotalEvents,
		"elapsed", result.Elapsed)
	return result, nil
}

// referenceOutputs evaluates the unperturbed network on every pattern.
func referenceOutputs(cfg config.NetworkConfig, weights []float64) ([][]float64, error) {
	s := api.NewSession(api.Options{})
	defer s.Shutdown()
	net, err := buildNetwork(s, cfg, weights)
	if err != nil {
		return nil, err
	}
	return net.outputsFor(cfg.Patterns), nil
}

func runTrial(ctx context.Context, cfg *config.Config, trial int, weights []float64, reference [][]float64, logger *slog.Logger, m *metrics.Metrics) (TrialResult, error) {
	seed := cfg.Experiment.Seed + int64(trial)
	s := api.NewSession(api.Options{Seed: seed, Logger: logger.With("trial", trial), Metrics: m})
	defer s.Shutdown()

	net, err := buildNetwork(s, cfg.Network, weights)
	if err != nil {
		return TrialResult{}, err
	}
	e, err := net.attach(cfg.Faults)
	if err != nil {
		return TrialResult{}, err
	}

	exp := cfg.Experiment
	res := TrialResult{Trial: trial, Seed: seed, FailureTime: exp.Horizon}
	for exp.MaxSteps == 0 || res.Events < exp.MaxSteps {
		next := s.FutureTime(e)
		if next < 0 || next > exp.Horizon {
			break
		}
		if !s.StepOver(e) {
			break
		}
		res.Events++
		if res.Events%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return res, err
			}
		}
		if !within(net.outputsFor(cfg.Network.Patterns), reference, exp.Tolerance) {
			res.Failed = true
			res.FailureTime = s.CurrentTime(e)
			break
		}
	}
	return res, nil
}

// within reports whether every output stays within tol of its reference.
// NaN outputs count as deviations.
func within(got, want [][]float64, tol float64) bool {
	for i := range want {
		for j := range want[i] {
			d := math.Abs(got[i][j] - want[i][j])
			if math.IsNaN(d) || d > tol {
				return false
			}
		}
	}
	return true
}

func aggregate(runID string, trials []TrialResult, confidence float64) (*Result, error) {
	res := &Result{RunID: runID, Trials: trials}
	var failureTimes []float64
	for _, t := range trials {
		res.TotalEvents += t.Events
		if t.Failed {
			res.Failures++
			failureTimes = append(failureTimes, t.FailureTime)
		}
	}
	if len(failureTimes) > 0 {
		mean, err := stats.MeanInterval(failureTimes, confidence)
		if err != nil {
			return nil, err
		}
		res.MeanFailureTime = &mean
	}
	survival, err := stats.ProbabilityInterval(len(trials)-res.Failures, len(trials), confidence)
	if err != nil {
		return nil, err
	}
	res.Survival = survival
	return res, nil
}
