package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"wisefido-vision/internal/common/logger"
	"wisefido-vision/internal/pose"
	"wisefido-vision/internal/replay"
	"wisefido-vision/internal/report"
)

func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "fall-replay",
		Short:         "Replay recorded skeleton caches through the fall detector",
		Long:          `Run the joint-angle fall detector over recorded COCO-17 skeleton caches and report the decision for each.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	addPersistentFlags(rootCmd)
	rootCmd.AddCommand(
		NewRunCmd(),
		NewManifestCmd(),
	)
	return rootCmd
}

func addPersistentFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	cmd.PersistentFlags().String("xlsx", "", "Write an Excel report to this path")
	cmd.PersistentFlags().String("log-level", "warn", "Log level (debug|info|warn|error)")
}

func newRunner(cmd *cobra.Command) (*replay.Runner, error) {
	level, _ := cmd.Flags().GetString("log-level")
	log, err := logger.NewLogger(level, "console", "fall-replay")
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return replay.NewRunner(pose.NewDetector(), log), nil
}

// finish prints outcomes, writes the optional report and fails when any cache could not be evaluated.
func finish(cmd *cobra.Command, outcomes []replay.Outcome) error {
	asJSON, _ := cmd.Flags().GetBool("json")
	xlsxPath, _ := cmd.Flags().GetString("xlsx")

	var err error
	if asJSON {
		err = outputJSON(cmd, outcomes)
	} else {
		outputText(cmd, outcomes)
	}
	if err != nil {
		return err
	}

	if xlsxPath != "" {
		if err := report.WriteReplayReport(xlsxPath, outcomes); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}

	if n := replay.Failed(outcomes); n > 0 {
		return fmt.Errorf("%d of %d caches failed", n, len(outcomes))
	}
	return nil
}

func outputText(cmd *cobra.Command, outcomes []replay.Outcome) {
	for _, o := range outcomes {
		if o.Error != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\terror: %s\n", o.Name, o.Error)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\tisFall=%t\tscore=%.2f\tframes=%d\n", o.Name, o.IsFall, o.Score, o.Frames)
	}
}

func outputJSON(cmd *cobra.Command, outcomes []replay.Outcome) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(outcomes)
}
