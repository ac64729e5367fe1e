package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/moca-trajectory-engine/internal/app"
	"github.com/moca-trajectory-engine/internal/domain"
)

func newRecomputeCmd(load configLoader) *cobra.Command {
	var (
		all       bool
		doctorID  string
		outputFmt string
	)

	cmd := &cobra.Command{
		Use:   "recompute [patient-id]",
		Short: "Recompute stored trajectories",
		Long:  `Recomputes one patient's trajectory, or every patient with --all, and saves the result.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if all && len(args) > 0 {
				return fmt.Errorf("--all does not take a patient id")
			}
			if !all && len(args) != 1 {
				return fmt.Errorf("expected one patient id or --all")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			components, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer components.Close()

			out := cmd.OutOrStdout()
			if all {
				summary, err := components.Patients.RecomputeAll(cmd.Context(), doctorID)
				if err != nil {
					return err
				}
				if outputFmt == "json" {
					return writeJSON(out, summary)
				}
				return writeSummary(out, summary.Total, summary.BySource, summary.Failed)
			}

			result, err := components.Patients.Recompute(cmd.Context(), doctorID, args[0])
			if err != nil {
				return err
			}
			if outputFmt == "json" {
				return writeJSON(out, result.Patient.Trajectory)
			}
			if result.Outcome.Err != nil {
				fmt.Fprintf(out, "warning: trajectory kept previous values: %v\n", result.Outcome.Err)
			}
			return writeTrajectory(out, result.Patient.ID, result.Patient.Trajectory)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Recompute every patient")
	cmd.Flags().StringVar(&doctorID, "doctor", "", "Restrict to one doctor's patients")
	cmd.Flags().StringVar(&outputFmt, "output", "text", "Output format: text or json")

	return cmd
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeSummary(w io.Writer, total int, bySource map[domain.ScoringSource]int, failed []string) error {
	fmt.Fprintf(w, "Recomputed %d patients\n", total)
	sources := make([]string, 0, len(bySource))
	for source := range bySource {
		sources = append(sources, string(source))
	}
	sort.Strings(sources)
	for _, source := range sources {
		fmt.Fprintf(w, "  %-9s %d\n", source, bySource[domain.ScoringSource(source)])
	}
	for _, id := range failed {
		fmt.Fprintf(w, "  failed: %s\n", id)
	}
	return nil
}
