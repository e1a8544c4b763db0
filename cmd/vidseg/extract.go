package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmuozan/vidseg/internal/frames"
)

func NewExtractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <video> <dir>",
		Short: "Extract a video into numbered JPEG stills",
		Args:  cobra.ExactArgs(2),
		RunE:  runExtract,
	}
}

func runExtract(cmd *cobra.Command, args []string) error {
	e, err := bootstrap()
	if err != nil {
		return err
	}
	defer e.close()

	src, err := frames.Extract(args[0], args[1], e.log)
	if err != nil {
		return fmt.Errorf("extract frames: %w", err)
	}
	defer src.Close()

	meta := src.Meta()
	fmt.Fprintf(cmd.OutOrStdout(), "Extracted %d frames (%dx%d at %.2f fps) to %s\n",
		meta.FrameCount, meta.Width, meta.Height, meta.FPS, src.Dir())
	return nil
}
