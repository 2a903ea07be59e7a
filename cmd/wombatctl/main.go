package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"neurowombat/internal/logging"
	"neurowombat/internal/metrics"
	"neurowombat/internal/storage"
	wombat "neurowombat/pkg/neurowombat"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "wombatctl",
		Short: "Neuromorphic reliability simulator",
		Long: `wombatctl runs Monte-Carlo reliability experiments on abstract and
analog neural networks whose parameters degrade over simulated time.

Each run writes its configuration, trials and summary under the
benchmarks directory and records them in the result store.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	rootCmd.PersistentFlags().String("db-path", "neurowombat.db", "sqlite database path")
	rootCmd.PersistentFlags().String("benchmarks-dir", "benchmarks", "run artifacts directory")
	rootCmd.PersistentFlags().String("exports-dir", "exports", "export destination directory")
	rootCmd.PersistentFlags().String("log-level", "", "log level: info|debug|trace|warn|error")
	rootCmd.PersistentFlags().String("metrics-addr", "", "serve Prometheus metrics on this address while running")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newRunsCmd(),
		newShowCmd(),
		newExportCmd(),
		newCICmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]string{
					"version": version,
					"commit":  commit,
					"date":    date,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wombatctl version %s (commit: %s, built: %s)\n", version, commit, date)
			return nil
		},
	}
}

// clientFromFlags builds a client from the persistent flags. Flags left at
// their zero value fall back to the client defaults.
func clientFromFlags(cmd *cobra.Command, logger *slog.Logger, m *metrics.Metrics) (*wombat.Client, error) {
	storeKind, _ := cmd.Flags().GetString("store")
	dbPath, _ := cmd.Flags().GetString("db-path")
	benchmarksDir, _ := cmd.Flags().GetString("benchmarks-dir")
	exportsDir, _ := cmd.Flags().GetString("exports-dir")
	return wombat.New(wombat.Options{
		StoreKind:     storeKind,
		DBPath:        dbPath,
		BenchmarksDir: benchmarksDir,
		ExportsDir:    exportsDir,
		Logger:        logger,
		Metrics:       m,
	})
}

func loggerFromFlags(cmd *cobra.Command, fallback string) *slog.Logger {
	level, _ := cmd.Flags().GetString("log-level")
	if level == "" {
		level = fallback
	}
	return logging.NewLogger(level, cmd.ErrOrStderr())
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
