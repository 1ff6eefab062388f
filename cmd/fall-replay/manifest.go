package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"wisefido-vision/internal/replay"
)

func NewManifestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "manifest <replay.yaml>",
		Short: "Evaluate caches listed in a YAML manifest",
		Long: `Evaluate the caches listed under "caches" in a YAML manifest.
Each entry has a file and optional name, start and end (frame range [start, end)).`,
		Args: cobra.ExactArgs(1),
		RunE: makeManifestRunner(),
	}
}

func makeManifestRunner() func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		m, err := replay.LoadManifest(args[0])
		if err != nil {
			return fmt.Errorf("load manifest: %w", err)
		}

		runner, err := newRunner(cmd)
		if err != nil {
			return err
		}
		return finish(cmd, runner.Run(m.Caches))
	}
}
