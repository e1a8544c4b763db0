package main

import (
	"github.com/spf13/cobra"
)

func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "vidseg",
		Short:         "Keyframe-driven video object segmentation",
		Long:          `Segment an object across a video from sparse keyframe annotations, with mask propagation, device fallback, and interpolation when the model cannot cover a span.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	rootCmd.AddCommand(
		NewProcessCmd(),
		NewKeyframesCmd(),
		NewExtractCmd(),
		NewRunsCmd(),
		NewServeCmd(),
	)

	return rootCmd
}
