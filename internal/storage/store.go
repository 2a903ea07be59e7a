package storage

import (
	"context"

	"neurowombat/internal/model"
)

// Store persists experiment results. Simulation state is never stored.
type Store interface {
	Init(ctx context.Context) error
	SaveSummary(ctx context.Context, summary model.ExperimentSummary) error
	GetSummary(ctx context.Context, runID string) (model.ExperimentSummary, bool, error)
	ListSummaries(ctx context.Context) ([]model.ExperimentSummary, error)
	SaveTrials(ctx context.Context, runID string, trials []model.TrialRecord) error
	GetTrials(ctx context.Context, runID string) ([]model.TrialRecord, bool, error)
	DeleteRun(ctx context.Context, runID string) error
}
