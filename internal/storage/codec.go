package storage

import (
	"encoding/json"
	"errors"

	"neurowombat/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// Versioned returns the record header written by this build.
func Versioned() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodeSummary(s model.ExperimentSummary) ([]byte, error) {
	return json.Marshal(s)
}

func DecodeSummary(data []byte) (model.ExperimentSummary, error) {
	var summary model.ExperimentSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return model.ExperimentSummary{}, err
	}
	if err := checkVersion(summary.VersionedRecord); err != nil {
		return model.ExperimentSummary{}, err
	}
	return summary, nil
}

func EncodeTrials(records []model.TrialRecord) ([]byte, error) {
	return json.Marshal(records)
}

func DecodeTrials(data []byte) ([]model.TrialRecord, error) {
	var records []model.TrialRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	for _, record := range records {
		if err := checkVersion(record.VersionedRecord); err != nil {
			return nil, err
		}
	}
	return records, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
