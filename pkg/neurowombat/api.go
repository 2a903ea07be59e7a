// Package neurowombat is the public client for running reliability
// experiments and browsing their results.
package neurowombat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"neurowombat/internal/config"
	"neurowombat/internal/experiment"
	"neurowombat/internal/logging"
	"neurowombat/internal/metrics"
	"neurowombat/internal/model"
	"neurowombat/internal/stats"
	"neurowombat/internal/storage"
)

const (
	defaultBenchmarksDir = "benchmarks"
	defaultExportsDir    = "exports"
	defaultDBPath        = "neurowombat.db"
)

type Options struct {
	StoreKind     string
	DBPath        string
	BenchmarksDir string
	ExportsDir    string
	Logger        *slog.Logger
	Metrics       *metrics.Metrics
}

type Client struct {
	store   storage.Store
	logger  *slog.Logger
	metrics *metrics.Metrics

	benchmarksDir string
	exportsDir    string

	// now is replaced in tests.
	now func() time.Time
}

type RunRequest struct {
	// Config is used as is when set; otherwise ConfigPath (or the defaults
	// when empty) is loaded with environment overrides.
	Config     *config.Config
	ConfigPath string
	RunID      string
}

type RunSummary struct {
	RunID           string
	ArtifactsDir    string
	Trials          int
	Failures        int
	TotalEvents     int
	MeanFailureTime *stats.Interval
	Survival        stats.Interval
	Elapsed         time.Duration
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID           string
	CreatedAtUTC    string
	Network         string
	Seed            int64
	Trials          int
	Failures        int
	Survival        float64
	MeanFailureTime float64
}

type ShowRequest struct {
	RunID  string
	Latest bool
	// Trials includes the per-trial records.
	Trials bool
}

type RunDetail struct {
	Summary model.ExperimentSummary
	Trials  []model.TrialRecord
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	benchmarksDir := opts.BenchmarksDir
	if benchmarksDir == "" {
		benchmarksDir = defaultBenchmarksDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}
	if err := store.Init(context.Background()); err != nil {
		_ = storage.CloseIfSupported(store)
		return nil, err
	}

	return &Client{
		store:         store,
		logger:        logger,
		metrics:       opts.Metrics,
		benchmarksDir: benchmarksDir,
		exportsDir:    exportsDir,
		now:           time.Now,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

// Run executes an experiment, persists its summary and trials, and writes
// the run artifacts and index entry.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	cfg := req.Config
	if cfg == nil {
		loaded, err := config.Load(req.ConfigPath)
		if err != nil {
			return RunSummary{}, err
		}
		cfg = loaded
	}

	result, err := experiment.Run(ctx, cfg, experiment.Options{
		RunID:   req.RunID,
		Logger:  c.logger,
		Metrics: c.metrics,
	})
	if err != nil {
		return RunSummary{}, err
	}
	now := c.now().UTC()

	if err := c.store.SaveSummary(ctx, result.Summary(cfg, now)); err != nil {
		return RunSummary{}, err
	}
	if err := c.store.SaveTrials(ctx, result.RunID, result.TrialRecords()); err != nil {
		return RunSummary{}, err
	}
	runDir, err := stats.WriteRunArtifacts(c.benchmarksDir, result.Artifacts(cfg))
	if err != nil {
		return RunSummary{}, err
	}
	if err := stats.AppendRunIndex(c.benchmarksDir, result.IndexEntry(cfg, now)); err != nil {
		return RunSummary{}, err
	}

	return RunSummary{
		RunID:           result.RunID,
		ArtifactsDir:    filepath.Clean(runDir),
		Trials:          len(result.Trials),
		Failures:        result.Failures,
		TotalEvents:     result.TotalEvents,
		MeanFailureTime: result.MeanFailureTime,
		Survival:        result.Survival,
		Elapsed:         result.Elapsed,
	}, nil
}

// Runs lists indexed runs, newest first.
func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.benchmarksDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:           e.RunID,
			CreatedAtUTC:    e.CreatedAtUTC,
			Network:         e.Network,
			Seed:            e.Seed,
			Trials:          e.Trials,
			Failures:        e.Failures,
			Survival:        e.Survival,
			MeanFailureTime: e.MeanFailureTime,
		})
	}
	return out, nil
}

// Show returns a stored run. Runs missing from the store, for instance
// because it is in-memory and the run came from another process, are read
// back from their artifacts.
func (c *Client) Show(ctx context.Context, req ShowRequest) (RunDetail, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest, "show")
	if err != nil {
		return RunDetail{}, err
	}

	summary, ok, err := c.store.GetSummary(ctx, runID)
	if err != nil {
		return RunDetail{}, err
	}
	if !ok {
		return c.showFromArtifacts(runID, req.Trials)
	}
	detail := RunDetail{Summary: summary}
	if req.Trials {
		trials, _, err := c.store.GetTrials(ctx, runID)
		if err != nil {
			return RunDetail{}, err
		}
		detail.Trials = trials
	}
	return detail, nil
}

func (c *Client) showFromArtifacts(runID string, withTrials bool) (RunDetail, error) {
	summary, ok, err := stats.ReadRunSummary(c.benchmarksDir, runID)
	if err != nil {
		return RunDetail{}, err
	}
	if !ok {
		return RunDetail{}, fmt.Errorf("run not found: %s", runID)
	}
	cfg, _, err := stats.ReadRunConfig(c.benchmarksDir, runID)
	if err != nil {
		return RunDetail{}, err
	}

	detail := RunDetail{Summary: model.ExperimentSummary{
		VersionedRecord: storage.Versioned(),
		RunID:           summary.RunID,
		Network:         summary.Network,
		Trials:          summary.Trials,
		Failures:        summary.Failures,
		Seed:            cfg.Seed,
		Horizon:         summary.Horizon,
		Confidence:      summary.Confidence,
		Survival:        summary.Survival.Estimate,
		SurvivalLow:     summary.Survival.Low,
		SurvivalHigh:    summary.Survival.High,
		TotalEvents:     summary.TotalEvents,
	}}
	if m := summary.MeanFailureTime; m != nil {
		detail.Summary.MeanFailureTime = m.Estimate
		detail.Summary.MeanFailureTimeLow = m.Low
		detail.Summary.MeanFailureTimeHigh = m.High
	}
	if entry, ok := c.indexEntry(runID); ok {
		detail.Summary.CreatedAtUTC = entry.CreatedAtUTC
	}
	if withTrials {
		rows, _, err := stats.ReadTrials(c.benchmarksDir, runID)
		if err != nil {
			return RunDetail{}, err
		}
		for _, r := range rows {
			detail.Trials = append(detail.Trials, model.TrialRecord{
				VersionedRecord: storage.Versioned(),
				Trial:           r.Trial,
				Seed:            r.Seed,
				FailureTime:     r.FailureTime,
				Failed:          r.Failed,
				Events:          r.Events,
			})
		}
	}
	return detail, nil
}

func (c *Client) indexEntry(runID string) (stats.RunIndexEntry, bool) {
	entries, err := stats.ListRunIndex(c.benchmarksDir)
	if err != nil {
		return stats.RunIndexEntry{}, false
	}
	for _, e := range entries {
		if e.RunID == runID {
			return e, true
		}
	}
	return stats.RunIndexEntry{}, false
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest, "export")
	if err != nil {
		return ExportSummary{}, err
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	exportedDir, err := stats.ExportRunArtifacts(c.benchmarksDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) resolveRunID(runID string, latest bool, op string) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if runID == "" && !latest {
		return "", fmt.Errorf("%s requires run id or latest", op)
	}
	if !latest {
		return runID, nil
	}
	entries, err := stats.ListRunIndex(c.benchmarksDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.New("no runs available")
	}
	return entries[0].RunID, nil
}
