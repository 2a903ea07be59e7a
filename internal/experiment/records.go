package experiment

import (
	"time"

	"neurowombat/internal/config"
	"neurowombat/internal/model"
	"neurowombat/internal/stats"
	"neurowombat/internal/storage"
)

// Artifacts converts the result into the files written per run.
func (r *Result) Artifacts(cfg *config.Config) stats.RunArtifacts {
	rows := make([]stats.TrialRow, len(r.Trials))
	for i, t := range r.Trials {
		rows[i] = stats.TrialRow{
			Trial:       t.Trial,
			Seed:        t.Seed,
			FailureTime: t.FailureTime,
			Failed:      t.Failed,
			Events:      t.Events,
		}
	}
	return stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:              r.RunID,
			Network:            cfg.Network.Kind,
			Layers:             append([]int(nil), cfg.Network.Layers...),
			Activation:         activationName(cfg),
			ActivationParams:   cfg.Network.ActivationParams,
			Distribution:       cfg.Faults.Distribution,
			DistributionParams: cfg.Faults.Params,
			Fault:              cfg.Faults.Model,
			FaultParams:        cfg.Faults.ModelParams,
			Trials:             cfg.Experiment.Trials,
			Seed:               cfg.Experiment.Seed,
			Workers:            cfg.Experiment.Workers,
			Horizon:            cfg.Experiment.Horizon,
			Tolerance:          cfg.Experiment.Tolerance,
			Confidence:         cfg.Experiment.Confidence,
		},
		Trials: rows,
		Summary: stats.RunSummary{
			RunID:           r.RunID,
			Network:         cfg.Network.Kind,
			Trials:          len(r.Trials),
			Failures:        r.Failures,
			Horizon:         cfg.Experiment.Horizon,
			Confidence:      cfg.Experiment.Confidence,
			TotalEvents:     r.TotalEvents,
			MeanFailureTime: r.MeanFailureTime,
			Survival:        r.Survival,
			ElapsedMS:       r.Elapsed.Milliseconds(),
		},
	}
}

// IndexEntry is the run index line for the result.
func (r *Result) IndexEntry(cfg *config.Config, createdAt time.Time) stats.RunIndexEntry {
	entry := stats.RunIndexEntry{
		RunID:        r.RunID,
		Network:      cfg.Network.Kind,
		Trials:       len(r.Trials),
		Seed:         cfg.Experiment.Seed,
		Workers:      cfg.Experiment.Workers,
		Failures:     r.Failures,
		Survival:     r.Survival.Estimate,
		CreatedAtUTC: createdAt.UTC().Format(time.RFC3339Nano),
	}
	if r.MeanFailureTime != nil {
		entry.MeanFailureTime = r.MeanFailureTime.Estimate
	}
	return entry
}

// Summary converts the result into its persistent record.
func (r *Result) Summary(cfg *config.Config, createdAt time.Time) model.ExperimentSummary {
	s := model.ExperimentSummary{
		VersionedRecord: storage.Versioned(),
		RunID:           r.RunID,
		Network:         cfg.Network.Kind,
		Trials:          len(r.Trials),
		Failures:        r.Failures,
		Seed:            cfg.Experiment.Seed,
		Horizon:         cfg.Experiment.Horizon,
		Confidence:      cfg.Experiment.Confidence,
		Survival:        r.Survival.Estimate,
		SurvivalLow:     r.Survival.Low,
		SurvivalHigh:    r.Survival.High,
		TotalEvents:     r.TotalEvents,
		CreatedAtUTC:    createdAt.UTC().Format(time.RFC3339Nano),
	}
	if r.MeanFailureTime != nil {
		s.MeanFailureTime = r.MeanFailureTime.Estimate
		s.MeanFailureTimeLow = r.MeanFailureTime.Low
		s.MeanFailureTimeHigh = r.MeanFailureTime.High
	}
	return s
}

// TrialRecords converts the trials into their persistent records.
func (r *Result) TrialRecords() []model.TrialRecord {
	out := make([]model.TrialRecord, len(r.Trials))
	for i, t := range r.Trials {
		out[i] = model.TrialRecord{
			VersionedRecord: storage.Versioned(),
			Trial:           t.Trial,
			Seed:            t.Seed,
			FailureTime:     t.FailureTime,
			Failed:          t.Failed,
			Events:          t.Events,
		}
	}
	return out
}

func activationName(cfg *config.Config) string {
	if cfg.Network.Kind == config.NetworkAnalog {
		return ""
	}
	return cfg.Network.Activation
}
