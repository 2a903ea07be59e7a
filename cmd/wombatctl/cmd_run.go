package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"neurowombat/internal/config"
	"neurowombat/internal/metrics"
	wombat "neurowombat/pkg/neurowombat"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a reliability experiment",
		Long: `Run loads an experiment configuration (or the built-in defaults),
executes every trial and prints the failure statistics.

Flags override the configuration file; WOMBAT_* environment variables
override the file as well.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := applyRunFlags(cmd, cfg); err != nil {
				return err
			}

			m, err := metrics.New(metrics.DefaultConfig())
			if err != nil {
				return err
			}
			logger := loggerFromFlags(cmd, cfg.Logging.Level)
			addr, _ := cmd.Flags().GetString("metrics-addr")
			if addr == "" {
				addr = cfg.Metrics.Addr
			}
			if addr != "" {
				stop := serveMetrics(addr, m, logger)
				defer stop()
			}

			if !cmd.Flags().Changed("store") && cfg.Storage.Kind != "" {
				_ = cmd.Flags().Set("store", cfg.Storage.Kind)
			}
			if !cmd.Flags().Changed("db-path") && cfg.Storage.Path != "" {
				_ = cmd.Flags().Set("db-path", cfg.Storage.Path)
			}
			if !cmd.Flags().Changed("benchmarks-dir") && cfg.Storage.ArtifactsDir != "" {
				_ = cmd.Flags().Set("benchmarks-dir", cfg.Storage.ArtifactsDir)
			}
			client, err := clientFromFlags(cmd, logger, m)
			if err != nil {
				return err
			}
			defer client.Close()

			runID, _ := cmd.Flags().GetString("run-id")
			summary, err := client.Run(cmd.Context(), wombat.RunRequest{Config: cfg, RunID: runID})
			if err != nil {
				return err
			}
			return printRunSummary(cmd, summary)
		},
	}

	cmd.Flags().String("config", "", "experiment YAML file")
	cmd.Flags().String("run-id", "", "explicit run id (optional)")
	cmd.Flags().Int("trials", 0, "number of trials (overrides config)")
	cmd.Flags().Int64("seed", 0, "base seed (overrides config)")
	cmd.Flags().Int("workers", 0, "parallel trial workers (overrides config)")
	cmd.Flags().Float64("horizon", 0, "simulated time horizon (overrides config)")
	cmd.Flags().String("network", "", "network kind: abstract|analog (overrides config)")
	cmd.Flags().String("distribution", "", "failure distribution: exponential|weibull|fixed (overrides config)")
	cmd.Flags().Float64Slice("params", nil, "distribution parameters (overrides config)")
	cmd.Flags().String("fault", "", "fault model: drift|zero|open|scale|resample (overrides config)")
	cmd.Flags().Float64Slice("fault-params", nil, "fault model parameters (overrides config)")
	cmd.Flags().Float64("confidence", 0, "confidence level: 0.95|0.99|0.999 (overrides config)")
	return cmd
}

func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("trials") {
		cfg.Experiment.Trials, _ = flags.GetInt("trials")
	}
	if flags.Changed("seed") {
		cfg.Experiment.Seed, _ = flags.GetInt64("seed")
	}
	if flags.Changed("workers") {
		cfg.Experiment.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("horizon") {
		cfg.Experiment.Horizon, _ = flags.GetFloat64("horizon")
	}
	if flags.Changed("confidence") {
		cfg.Experiment.Confidence, _ = flags.GetFloat64("confidence")
	}
	if flags.Changed("network") {
		cfg.Network.Kind, _ = flags.GetString("network")
	}
	if flags.Changed("distribution") {
		cfg.Faults.Distribution, _ = flags.GetString("distribution")
	}
	if flags.Changed("params") {
		cfg.Faults.Params, _ = flags.GetFloat64Slice("params")
	}
	if flags.Changed("fault") {
		cfg.Faults.Model, _ = flags.GetString("fault")
		if !flags.Changed("fault-params") {
			cfg.Faults.ModelParams = nil
		}
	}
	if flags.Changed("fault-params") {
		cfg.Faults.ModelParams, _ = flags.GetFloat64Slice("fault-params")
	}
	return cfg.Validate()
}

func printRunSummary(cmd *cobra.Command, summary wombat.RunSummary) error {
	if jsonOutput(cmd) {
		return writeJSON(cmd.OutOrStdout(), summary)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run completed run_id=%s trials=%d failures=%d events=%d elapsed=%s\n",
		summary.RunID, summary.Trials, summary.Failures, summary.TotalEvents, summary.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(out, "survival=%.6f low=%.6f high=%.6f\n",
		summary.Survival.Estimate, summary.Survival.Low, summary.Survival.High)
	if m := summary.MeanFailureTime; m != nil {
		fmt.Fprintf(out, "mean_failure_time=%.6f low=%.6f high=%.6f\n", m.Estimate, m.Low, m.High)
	}
	fmt.Fprintf(out, "artifacts_dir=%s\n", summary.ArtifactsDir)
	return nil
}

// serveMetrics exposes /metrics until the returned stop function is called.
func serveMetrics(addr string, m *metrics.Metrics, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
