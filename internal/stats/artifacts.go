package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const runIndexFile = "run_index.json"

type RunConfig struct {
	RunID              string    `json:"run_id"`
	Network            string    `json:"network"`
	Layers             []int     `json:"layers"`
	Activation         string    `json:"activation,omitempty"`
	ActivationParams   []float64 `json:"activation_params,omitempty"`
	Distribution       string    `json:"distribution"`
	DistributionParams []float64 `json:"distribution_params"`
	Fault              string    `json:"fault"`
	FaultParams        []float64 `json:"fault_params,omitempty"`
	Trials             int       `json:"trials"`
	Seed               int64     `json:"seed"`
	Workers            int       `json:"workers"`
	Horizon            float64   `json:"horizon"`
	Tolerance          float64   `json:"tolerance"`
	Confidence         float64   `json:"confidence"`
}

// TrialRow is one Monte-Carlo trial. FailureTime equals the horizon for
// trials that survived.
type TrialRow struct {
	Trial       int     `json:"trial"`
	Seed        int64   `json:"seed"`
	FailureTime float64 `json:"failure_time"`
	Failed      bool    `json:"failed"`
	Events      int     `json:"events"`
}

type RunSummary struct {
	RunID           string    `json:"run_id"`
	Network         string    `json:"network"`
	Trials          int       `json:"trials"`
	Failures        int       `json:"failures"`
	Horizon         float64   `json:"horizon"`
	Confidence      float64   `json:"confidence"`
	TotalEvents     int       `json:"total_events"`
	MeanFailureTime *Interval `json:"mean_failure_time,omitempty"`
	Survival        Interval  `json:"survival"`
	ElapsedMS       int64     `json:"elapsed_ms"`
}

type RunArtifacts struct {
	Config  RunConfig  `json:"config"`
	Trials  []TrialRow `json:"trials"`
	Summary RunSummary `json:"summary"`
}

type RunIndexEntry struct {
	RunID           string  `json:"run_id"`
	Network         string  `json:"network"`
	Trials          int     `json:"trials"`
	Seed            int64   `json:"seed"`
	Workers         int     `json:"workers"`
	Failures        int     `json:"failures"`
	Survival        float64 `json:"survival"`
	MeanFailureTime float64 `json:"mean_failure_time,omitempty"`
	CreatedAtUTC    string  `json:"created_at_utc"`
}

var artifactFiles = []string{"config.json", "trials.json", "trials.csv", "summary.json"}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "config.json"), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "trials.json"), artifacts.Trials); err != nil {
		return "", err
	}
	if err := WriteTrialsCSV(runDir, artifacts.Trials); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "summary.json"), artifacts.Summary); err != nil {
		return "", err
	}

	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range artifactFiles {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, "config.json"), &cfg)
	return cfg, ok, err
}

func ReadRunSummary(baseDir, runID string) (RunSummary, bool, error) {
	var summary RunSummary
	ok, err := readJSON(filepath.Join(baseDir, runID, "summary.json"), &summary)
	return summary, ok, err
}

func ReadTrials(baseDir, runID string) ([]TrialRow, bool, error) {
	var trials []TrialRow
	ok, err := readJSON(filepath.Join(baseDir, runID, "trials.json"), &trials)
	return trials, ok, err
}

func WriteTrialsCSV(runDir string, trials []TrialRow) error {
	path := filepath.Join(runDir, "trials.csv")
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"trial", "seed", "failure_time", "failed", "events"}); err != nil {
		return err
	}
	for _, row := range trials {
		if err := writer.Write([]string{
			strconv.Itoa(row.Trial),
			strconv.FormatInt(row.Seed, 10),
			strconv.FormatFloat(row.FailureTime, 'f', -1, 64),
			strconv.FormatBool(row.Failed),
			strconv.Itoa(row.Events),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadTrialsCSV(baseDir, runID string) ([]TrialRow, bool, error) {
	path := filepath.Join(baseDir, runID, "trials.csv")
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []TrialRow{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < 5 {
		return nil, false, fmt.Errorf("trials header must have 5 columns, got %s", strings.Join(header, ","))
	}

	rows := make([]TrialRow, 0, 64)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		row, err := parseTrialRow(record)
		if err != nil {
			return nil, false, err
		}
		rows = append(rows, row)
	}
	return rows, true, nil
}

func parseTrialRow(record []string) (TrialRow, error) {
	if len(record) < 5 {
		return TrialRow{}, fmt.Errorf("trials row must have 5 columns")
	}
	trial, err := strconv.Atoi(record[0])
	if err != nil {
		return TrialRow{}, err
	}
	seed, err := strconv.ParseInt(record[1], 10, 64)
	if err != nil {
		return TrialRow{}, err
	}
	failureTime, err := strconv.ParseFloat(record[2], 64)
	if err != nil {
		return TrialRow{}, err
	}
	failed, err := strconv.ParseBool(record[3])
	if err != nil {
		return TrialRow{}, err
	}
	events, err := strconv.Atoi(record[4])
	if err != nil {
		return TrialRow{}, err
	}
	return TrialRow{Trial: trial, Seed: seed, FailureTime: failureTime, Failed: failed, Events: events}, nil
}

func readJSON(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
