package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// ExperimentSummary is the aggregate outcome of one reliability experiment.
type ExperimentSummary struct {
	VersionedRecord
	RunID               string  `json:"run_id"`
	Network             string  `json:"network"`
	Trials              int     `json:"trials"`
	Failures            int     `json:"failures"`
	Seed                int64   `json:"seed"`
	Horizon             float64 `json:"horizon"`
	Confidence          float64 `json:"confidence"`
	MeanFailureTime     float64 `json:"mean_failure_time"`
	MeanFailureTimeLow  float64 `json:"mean_failure_time_low"`
	MeanFailureTimeHigh float64 `json:"mean_failure_time_high"`
	Survival            float64 `json:"survival"`
	SurvivalLow         float64 `json:"survival_low"`
	SurvivalHigh        float64 `json:"survival_high"`
	TotalEvents         int     `json:"total_events"`
	CreatedAtUTC        string  `json:"created_at_utc"`
}

// TrialRecord is one Monte-Carlo trial of an experiment.
type TrialRecord struct {
	VersionedRecord
	Trial       int     `json:"trial"`
	Seed        int64   `json:"seed"`
	FailureTime float64 `json:"failure_time"`
	Failed      bool    `json:"failed"`
	Events      int     `json:"events"`
}
