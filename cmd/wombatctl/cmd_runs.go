package main

import (
	"fmt"

	"github.com/spf13/cobra"

	wombat "neurowombat/pkg/neurowombat"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := clientFromFlags(cmd, loggerFromFlags(cmd, ""), nil)
			if err != nil {
				return err
			}
			defer client.Close()

			limit, _ := cmd.Flags().GetInt("limit")
			items, err := client.Runs(cmd.Context(), wombat.RunsRequest{Limit: limit})
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), items)
			}
			for _, item := range items {
				fmt.Fprintf(cmd.OutOrStdout(), "run_id=%s created_at=%s network=%s seed=%d trials=%d failures=%d survival=%.6f mean_failure_time=%.6f\n",
					item.RunID, item.CreatedAtUTC, item.Network, item.Seed, item.Trials, item.Failures, item.Survival, item.MeanFailureTime)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "max runs to list")
	return cmd
}

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the summary of one run",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := clientFromFlags(cmd, loggerFromFlags(cmd, ""), nil)
			if err != nil {
				return err
			}
			defer client.Close()

			runID, _ := cmd.Flags().GetString("run-id")
			latest, _ := cmd.Flags().GetBool("latest")
			withTrials, _ := cmd.Flags().GetBool("trials")
			detail, err := client.Show(cmd.Context(), wombat.ShowRequest{RunID: runID, Latest: latest, Trials: withTrials})
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), detail)
			}

			s := detail.Summary
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run_id=%s network=%s created_at=%s seed=%d trials=%d failures=%d events=%d horizon=%g confidence=%g\n",
				s.RunID, s.Network, s.CreatedAtUTC, s.Seed, s.Trials, s.Failures, s.TotalEvents, s.Horizon, s.Confidence)
			fmt.Fprintf(out, "survival=%.6f low=%.6f high=%.6f\n", s.Survival, s.SurvivalLow, s.SurvivalHigh)
			if s.Failures > 0 {
				fmt.Fprintf(out, "mean_failure_time=%.6f low=%.6f high=%.6f\n", s.MeanFailureTime, s.MeanFailureTimeLow, s.MeanFailureTimeHigh)
			}
			for _, t := range detail.Trials {
				fmt.Fprintf(out, "trial=%d seed=%d failed=%t failure_time=%.6f events=%d\n", t.Trial, t.Seed, t.Failed, t.FailureTime, t.Events)
			}
			return nil
		},
	}
	cmd.Flags().String("run-id", "", "run id")
	cmd.Flags().Bool("latest", false, "use the most recent run")
	cmd.Flags().Bool("trials", false, "include per-trial results")
	return cmd
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Copy the artifacts of one run to the exports directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := clientFromFlags(cmd, loggerFromFlags(cmd, ""), nil)
			if err != nil {
				return err
			}
			defer client.Close()

			runID, _ := cmd.Flags().GetString("run-id")
			latest, _ := cmd.Flags().GetBool("latest")
			outDir, _ := cmd.Flags().GetString("out")
			exported, err := client.Export(cmd.Context(), wombat.ExportRequest{RunID: runID, Latest: latest, OutDir: outDir})
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), exported)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported run_id=%s dir=%s\n", exported.RunID, exported.Directory)
			return nil
		},
	}
	cmd.Flags().String("run-id", "", "run id")
	cmd.Flags().Bool("latest", false, "export the most recent run")
	cmd.Flags().String("out", "", "output directory (defaults to --exports-dir)")
	return cmd
}
