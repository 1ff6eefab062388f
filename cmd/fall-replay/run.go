package main

import (
	"github.com/spf13/cobra"
)

func NewRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <cache.json>...",
		Short: "Evaluate whole cache files",
		Long:  `Evaluate each cache file as a single window. Files hold an Mx17x2 array or an object with a "frames" field.`,
		Args:  cobra.MinimumNArgs(1),
		RunE:  makeRunRunner(),
	}
}

func makeRunRunner() func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		runner, err := newRunner(cmd)
		if err != nil {
			return err
		}
		return finish(cmd, runner.RunFiles(args))
	}
}
