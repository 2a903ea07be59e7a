package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"neurowombat/internal/stats"
)

func newCICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ci",
		Short: "Confidence interval calculators",
	}
	cmd.AddCommand(newCIMeanCmd(), newCIProbabilityCmd())
	return cmd
}

func newCIMeanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mean",
		Short: "Half width of the confidence interval of a sample mean",
		RunE: func(cmd *cobra.Command, args []string) error {
			mean, _ := cmd.Flags().GetFloat64("mean")
			meanSqr, _ := cmd.Flags().GetFloat64("mean-sqr")
			times, _ := cmd.Flags().GetInt("times")
			beta, _ := cmd.Flags().GetFloat64("beta")

			half, err := stats.MeanCI(mean, meanSqr, times, beta)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]float64{
					"mean": mean, "half_width": half, "low": mean - half, "high": mean + half,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "mean=%.6f half_width=%.6f low=%.6f high=%.6f\n", mean, half, mean-half, mean+half)
			return nil
		},
	}
	cmd.Flags().Float64("mean", 0, "sample mean")
	cmd.Flags().Float64("mean-sqr", 0, "sample mean of squares")
	cmd.Flags().Int("times", 0, "sample count")
	cmd.Flags().Float64("beta", 0.95, "confidence level: 0.95|0.99|0.999")
	return cmd
}

func newCIProbabilityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probability",
		Short: "Agresti-Coull interval of an observed probability",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _ := cmd.Flags().GetFloat64("p")
			times, _ := cmd.Flags().GetInt("times")
			alpha, _ := cmd.Flags().GetFloat64("alpha")

			lo, hi, err := stats.ACProbabilityCI(p, times, alpha)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]float64{"p": p, "low": lo, "high": hi})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "p=%.6f low=%.6f high=%.6f\n", p, lo, hi)
			return nil
		},
	}
	cmd.Flags().Float64("p", 0, "observed probability")
	cmd.Flags().Int("times", 0, "number of trials")
	cmd.Flags().Float64("alpha", 0.05, "significance level: 0.05|0.01|0.001")
	return cmd
}
