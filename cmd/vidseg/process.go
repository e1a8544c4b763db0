package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jmuozan/vidseg/internal/app"
	"github.com/jmuozan/vidseg/internal/server"
)

func NewProcessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process <video>",
		Short: "Segment an object across a video",
		Long:  `Run the full pipeline on a video: extract frames, annotate keyframes, propagate masks, and write the overlay and mask outputs.`,
		Args:  cobra.ExactArgs(1),
		RunE:  runProcess,
	}

	cmd.Flags().IntSlice("keyframes", nil, "Explicit keyframe indices (default: fixed intervals)")
	cmd.Flags().Bool("auto", false, "Select keyframes by motion difference")
	cmd.Flags().String("out", "", "Output directory (overrides config)")
	cmd.Flags().String("checkpoint", "", "Model checkpoint path (overrides config)")
	cmd.Flags().String("model-config", "", "Model configuration path (overrides config)")
	cmd.Flags().String("device", "", "Primary device, e.g. cuda or cpu (overrides config)")
	cmd.Flags().Int("interval", 0, "Fixed keyframe interval in frames (overrides config)")
	cmd.Flags().Int("passes", 0, "Refinement passes per segment (overrides config)")
	cmd.Flags().Int("auto-keyframes", 0, "Keyframe count for --auto (overrides config)")
	cmd.Flags().String("listen", "", "Serve progress events over websocket on this address while processing")

	return cmd
}

func runProcess(cmd *cobra.Command, args []string) error {
	e, err := bootstrap()
	if err != nil {
		return err
	}
	defer e.close()

	keyframes, _ := cmd.Flags().GetIntSlice("keyframes")
	auto, _ := cmd.Flags().GetBool("auto")
	applyProcessFlags(cmd, e)

	a := app.New(e.cfg, e.st, e.log)

	opts := app.RunOptions{
		VideoPath: args[0],
		Keyframes: keyframes,
		Auto:      auto,
	}

	// With --listen, progress events stream over the websocket hub for
	// the duration of the run.
	if addr, _ := cmd.Flags().GetString("listen"); addr != "" {
		srv := server.New(server.Config{Store: e.st, Log: e.log})
		opts.Observer = srv.Hub()
		go func() {
			e.log.Info("progress server listening", zap.String("addr", addr))
			if err := srv.ListenAndServe(addr); err != nil {
				e.log.Warn("progress server stopped", zap.Error(err))
			}
		}()
	}

	run, res, err := a.Process(cmd.Context(), opts)
	if err != nil {
		return fmt.Errorf("process video: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s finished (%d frames, %d masked)\n", run.ID, run.FrameCount, res.MaskedFrames)
	fmt.Fprintf(out, "Overlay video: %s\n", res.OverlayVideo)
	fmt.Fprintf(out, "Mask video:    %s\n", res.MaskVideo)
	fmt.Fprintf(out, "Stills:        %s, %s\n", res.OverlayDir, res.MaskDir)
	return nil
}

// applyProcessFlags lets command flags override the environment config.
func applyProcessFlags(cmd *cobra.Command, e *env) {
	if v, _ := cmd.Flags().GetString("out"); v != "" {
		e.cfg.OutputDir = v
	}
	if v, _ := cmd.Flags().GetString("checkpoint"); v != "" {
		e.cfg.CheckpointPath = v
	}
	if v, _ := cmd.Flags().GetString("model-config"); v != "" {
		e.cfg.ModelConfigPath = v
	}
	if v, _ := cmd.Flags().GetString("device"); v != "" {
		e.cfg.Device = v
	}
	if v, _ := cmd.Flags().GetInt("interval"); v > 0 {
		e.cfg.KeyframeInterval = v
	}
	if v, _ := cmd.Flags().GetInt("passes"); v > 0 {
		e.cfg.Passes = v
	}
	if v, _ := cmd.Flags().GetInt("auto-keyframes"); v > 0 {
		e.cfg.AutoKeyframes = v
	}
}
