// Package config loads reliability experiment configuration from YAML files
// and environment variables.
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"neurowombat/internal/dist"
	"neurowombat/internal/interrupt"
	"neurowombat/internal/logging"
	"neurowombat/internal/neuron"
	"neurowombat/internal/stats"
	"neurowombat/internal/storage"
)

const (
	NetworkAbstract = "abstract"
	NetworkAnalog   = "analog"
)

// Config contains every setting of one experiment run.
type Config struct {
	// Network describes the circuit under test.
	Network NetworkConfig `json:"network" yaml:"network"`

	// Faults describes when and how parameters are perturbed.
	Faults FaultConfig `json:"faults" yaml:"faults"`

	// Experiment controls the Monte-Carlo driver.
	Experiment ExperimentConfig `json:"experiment" yaml:"experiment"`

	Storage StorageConfig `json:"storage" yaml:"storage"`
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

type NetworkConfig struct {
	// Kind is "abstract" (weighted-sum neurons) or "analog" (resistor
	// summing nodes with comparators).
	Kind string `json:"kind" yaml:"kind"`

	// Layers lists neuron counts starting with the input layer.
	Layers []int `json:"layers" yaml:"layers"`

	// Weights are laid out layer by layer, neuron by neuron, one weight per
	// neuron of the previous layer. Empty means seeded random weights.
	Weights []float64 `json:"weights,omitempty" yaml:"weights,omitempty"`

	// WeightSeed seeds generated weights.
	WeightSeed int64 `json:"weight_seed" yaml:"weight_seed"`

	// Activation and ActivationParams select the abstract neuron activation.
	Activation       string    `json:"activation" yaml:"activation"`
	ActivationParams []float64 `json:"activation_params,omitempty" yaml:"activation_params,omitempty"`

	// Threshold is the analog comparator offset.
	Threshold float64 `json:"threshold" yaml:"threshold"`

	// Patterns are the input vectors the network is checked against.
	Patterns [][]float64 `json:"patterns" yaml:"patterns"`
}

type FaultConfig struct {
	// Distribution is "exponential", "weibull" or "fixed".
	Distribution string    `json:"distribution" yaml:"distribution"`
	Params       []float64 `json:"params" yaml:"params"`

	// Model is the fault applied to the perturbed entry: "drift", "zero",
	// "open", "scale" or "resample".
	Model       string    `json:"model" yaml:"model"`
	ModelParams []float64 `json:"model_params,omitempty" yaml:"model_params,omitempty"`
}

type ExperimentConfig struct {
	Trials  int   `json:"trials" yaml:"trials"`
	Workers int   `json:"workers" yaml:"workers"`
	Seed    int64 `json:"seed" yaml:"seed"`

	// Horizon is the simulated time after which a trial counts as survived.
	Horizon float64 `json:"horizon" yaml:"horizon"`

	// Tolerance is the largest output deviation still counted as correct.
	Tolerance float64 `json:"tolerance" yaml:"tolerance"`

	// Confidence is the level of reported intervals: 0.95, 0.99 or 0.999.
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// MaxSteps bounds the events per trial; 0 means unbounded.
	MaxSteps int `json:"max_steps" yaml:"max_steps"`
}

type StorageConfig struct {
	// Kind is "memory" or "sqlite".
	Kind string `json:"kind" yaml:"kind"`
	// Path is the sqlite database file.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	// ArtifactsDir receives per-run JSON and CSV artifacts.
	ArtifactsDir string `json:"artifacts_dir" yaml:"artifacts_dir"`
}

type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug" or "trace".
	// "trace" logs every simulation step.
	Level string `json:"level" yaml:"level"`
}

type MetricsConfig struct {
	// Addr serves /metrics when non-empty, e.g. ":9464".
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

// Default returns a small abstract network experiment.
func Default() *Config {
	return &Config{
		Network: NetworkConfig{
			Kind:       NetworkAbstract,
			Layers:     []int{2, 3, 1},
			WeightSeed: 7,
			Activation: "sigmoid",
			Threshold:  0.5,
			Patterns:   [][]float64{{0, 0}, {0, 1}, {1, 0}, {1, 1}},
		},
		Faults: FaultConfig{
			Distribution: dist.KindExponential,
			Params:       []float64{0.1},
			Model:        "drift",
			ModelParams:  []float64{0.5},
		},
		Experiment: ExperimentConfig{
			Trials:     100,
			Workers:    4,
			Seed:       1,
			Horizon:    100,
			Tolerance:  0.1,
			Confidence: 0.95,
		},
		Storage: StorageConfig{
			Kind:         storage.DefaultStoreKind(),
			ArtifactsDir: "benchmarks",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load returns the defaults, overlaid by path when given, then by
// environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fileConfig
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	n := c.Network
	switch n.Kind {
	case NetworkAbstract, NetworkAnalog:
	default:
		return fmt.Errorf("invalid network kind: %s (valid: abstract, analog)", n.Kind)
	}
	if len(n.Layers) < 2 {
		return fmt.Errorf("network needs an input and an output layer, got %v", n.Layers)
	}
	for _, size := range n.Layers {
		if size <= 0 {
			return fmt.Errorf("layer sizes must be > 0, got %v", n.Layers)
		}
	}
	if len(n.Weights) > 0 && len(n.Weights) != WeightCount(n.Layers) {
		return fmt.Errorf("expected %d weights for layers %v, got %d", WeightCount(n.Layers), n.Layers, len(n.Weights))
	}
	if n.Kind == NetworkAbstract {
		if _, err := neuron.NewActivation(n.Activation, n.ActivationParams); err != nil {
			return err
		}
	}
	if len(n.Patterns) == 0 {
		return fmt.Errorf("at least one input pattern is required")
	}
	for i, p := range n.Patterns {
		if len(p) != n.Layers[0] {
			return fmt.Errorf("pattern %d has %d inputs, input layer has %d", i, len(p), n.Layers[0])
		}
	}

	if _, err := dist.New(c.Faults.Distribution, c.Faults.Params, dist.NewSource(0)); err != nil {
		return err
	}
	if _, err := interrupt.ParseFault(c.Faults.Model, c.Faults.ModelParams); err != nil {
		return err
	}

	e := c.Experiment
	if e.Trials <= 0 {
		return fmt.Errorf("trials must be > 0, got %d", e.Trials)
	}
	if e.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", e.Workers)
	}
	if !(e.Horizon > 0) || math.IsInf(e.Horizon, 1) {
		return fmt.Errorf("horizon must be finite and > 0, got %f", e.Horizon)
	}
	if e.Tolerance < 0 {
		return fmt.Errorf("tolerance must be >= 0, got %f", e.Tolerance)
	}
	if _, err := stats.MeanCI(0, 0, 2, e.Confidence); err != nil {
		return err
	}
	if e.MaxSteps < 0 {
		return fmt.Errorf("max_steps must be >= 0, got %d", e.MaxSteps)
	}

	switch c.Storage.Kind {
	case "", storage.KindMemory, storage.KindSQLite:
	default:
		return fmt.Errorf("invalid storage kind: %s (valid: memory, sqlite)", c.Storage.Kind)
	}
	if c.Storage.Kind == storage.KindSQLite && c.Storage.Path == "" {
		return fmt.Errorf("storage path is required for sqlite")
	}

	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, warn, error, or empty for default)", c.Logging.Level)
	}
	return nil
}

// WeightCount is the number of weights a fully connected network with the
// given layers needs.
func WeightCount(layers []int) int {
	total := 0
	for l := 1; l < len(layers); l++ {
		total += layers[l] * layers[l-1]
	}
	return total
}

func applyEnvOverrides(c *Config) error {
	if v := os.Getenv("WOMBAT_SEED"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("WOMBAT_SEED: %w", err)
		}
		c.Experiment.Seed = n
	}
	if v := os.Getenv("WOMBAT_TRIALS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("WOMBAT_TRIALS: %w", err)
		}
		c.Experiment.Trials = n
	}
	if v := os.Getenv("WOMBAT_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("WOMBAT_WORKERS: %w", err)
		}
		c.Experiment.Workers = n
	}
	if v := os.Getenv("WOMBAT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("WOMBAT_STORE"); v != "" {
		c.Storage.Kind = v
	}
	if v := os.Getenv("WOMBAT_DB_PATH"); v != "" {
		c.Storage.Path = v
	}
	return nil
}
