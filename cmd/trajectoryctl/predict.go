package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/moca-trajectory-engine/internal/domain"
	"github.com/moca-trajectory-engine/internal/service"
	"github.com/moca-trajectory-engine/internal/trajectory"
)

func newPredictCmd() *cobra.Command {
	var (
		file      string
		outputFmt string
	)

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Score a patient file offline",
		Long: `Reads a patient document (name, dob, mocaTests) and prints the trajectory
computed with the built-in rules. Nothing is stored and no scorer process is started.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPredict(cmd.Context(), file, outputFmt, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Patient JSON file, or - for stdin (required)")
	cmd.Flags().StringVar(&outputFmt, "output", "text", "Output format: text or json")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runPredict(ctx context.Context, file, outputFmt string, out io.Writer) error {
	var (
		data []byte
		err  error
	)
	if file == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return fmt.Errorf("failed to read patient file: %w", err)
	}

	var patient domain.Patient
	if err := json.Unmarshal(data, &patient); err != nil {
		return fmt.Errorf("failed to parse patient file: %w", err)
	}
	if err := patient.Validate(); err != nil {
		return err
	}
	for i, a := range patient.Assessments {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("assessment %d: %w", i, err)
		}
		patient.Assessments[i].PredictedRating = nil
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	outcome := service.NewMetricsAggregator(domain.ScoringModeLocal, nil, logger).Recompute(ctx, &patient)
	if outcome.Err != nil {
		return outcome.Err
	}

	if outputFmt == "json" {
		return writeJSON(out, struct {
			Trajectory  domain.Trajectory   `json:"trajectory"`
			Assessments []domain.Assessment `json:"mocaTests"`
		}{patient.Trajectory, patient.Assessments})
	}

	if err := writeTrajectory(out, patient.Name, patient.Trajectory); err != nil {
		return err
	}
	sorted, _ := trajectory.SortChronologically(patient.Assessments)
	for _, a := range sorted {
		rating := "-"
		if a.PredictedRating != nil {
			rating = fmt.Sprintf("%.1f", *a.PredictedRating)
		}
		fmt.Fprintf(out, "  %-10s  score %2d  rating %s\n", a.Date, a.TotalScore, rating)
	}
	return nil
}

func writeTrajectory(w io.Writer, subject string, t domain.Trajectory) error {
	_, err := fmt.Fprintf(w, "%s\n  status      %s\n  current     %.1f\n  future      %.1f\n  confidence  %.2f (%s)\n  decline     %d\n  %s\n",
		subject, t.StatusTier, t.CurrentRating, t.FutureRating, t.Confidence, t.ConfidenceLabel, t.DeclineRate, t.Narrative)
	return err
}
