package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jmuozan/vidseg/internal/annotate"
	"github.com/jmuozan/vidseg/internal/frames"
	"github.com/jmuozan/vidseg/internal/keyframe"
)

func NewKeyframesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keyframes <video>",
		Short: "Preview keyframe selection for a video",
		Long:  `Show which frames would be annotated and the points each one gets, without running segmentation.`,
		Args:  cobra.ExactArgs(1),
		RunE:  runKeyframes,
	}

	cmd.Flags().Bool("auto", false, "Select keyframes by motion difference")
	cmd.Flags().Bool("json", false, "Output in JSON format")

	return cmd
}

func runKeyframes(cmd *cobra.Command, args []string) error {
	e, err := bootstrap()
	if err != nil {
		return err
	}
	defer e.close()

	auto, _ := cmd.Flags().GetBool("auto")
	asJSON, _ := cmd.Flags().GetBool("json")

	tmpDir, err := os.MkdirTemp("", "vidseg-keyframes-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)

	src, err := frames.Extract(args[0], filepath.Join(tmpDir, "frames"), e.log)
	if err != nil {
		return fmt.Errorf("extract frames: %w", err)
	}
	defer src.Close()

	meta := src.Meta()
	p, err := buildPreviewPlan(src, auto, e)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	}

	fmt.Fprintf(out, "%d frames at %.2f fps, %dx%d\n", meta.FrameCount, meta.FPS, meta.Width, meta.Height)
	for _, f := range p.Frames() {
		pos, neg := 0, 0
		for _, pt := range p[f] {
			if pt.Label == 1 {
				pos++
			} else {
				neg++
			}
		}
		fmt.Fprintf(out, "frame %6d: %d positive, %d negative points\n", f, pos, neg)
	}
	return nil
}

func buildPreviewPlan(src frames.Source, auto bool, e *env) (annotate.Plan, error) {
	meta := src.Meta()
	if auto {
		return keyframe.NewSelector(e.log).AutoPlan(src, e.cfg.AutoKeyframes)
	}
	indices := keyframe.FixedIntervals(meta.FrameCount, e.cfg.KeyframeInterval)
	return keyframe.PlanFromIndices(indices, meta.Width, meta.Height), nil
}
