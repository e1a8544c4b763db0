// Package render materializes segmentation results: per-frame mask
// images, tinted overlay stills, and the two output videos.
package render

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/jmuozan/vidseg/internal/frames"
	"github.com/jmuozan/vidseg/internal/mask"
)

const (
	// MaskPattern is the naming scheme for per-frame binary masks.
	MaskPattern = "mask_%06d.png"
	// OverlayPattern is the naming scheme for per-frame overlay stills.
	OverlayPattern = "overlay_%06d.jpg"
	// OverlayVideoName is the tinted output video.
	OverlayVideoName = "segmentation_overlay.mp4"
	// MaskVideoName is the white-on-black mask video.
	MaskVideoName = "segmentation_masks.mp4"

	videoCodec   = "mp4v"
	overlayAlpha = 0.5
)

// Result lists the artifacts produced by a materializer run.
type Result struct {
	MaskDir      string
	OverlayDir   string
	OverlayVideo string
	MaskVideo    string
	MaskedFrames int
}

// Materializer writes segmentation outputs under a run's output
// directory. Frames without a mask pass through untinted.
type Materializer struct {
	outputDir string
	objectID  int
	log       *zap.Logger
}

// New creates a materializer rooted at outputDir.
func New(outputDir string, objectID int, log *zap.Logger) *Materializer {
	return &Materializer{outputDir: outputDir, objectID: objectID, log: log}
}

// Write renders every frame of the source against the mask set and
// produces the still directories plus both videos.
func (m *Materializer) Write(src frames.Source, masks *mask.Set) (*Result, error) {
	meta := src.Meta()
	if meta.Width <= 0 || meta.Height <= 0 {
		return nil, fmt.Errorf("source has no dimensions: %dx%d", meta.Width, meta.Height)
	}

	res := &Result{
		MaskDir:      filepath.Join(m.outputDir, "masks"),
		OverlayDir:   filepath.Join(m.outputDir, "overlays"),
		OverlayVideo: filepath.Join(m.outputDir, OverlayVideoName),
		MaskVideo:    filepath.Join(m.outputDir, MaskVideoName),
	}
	for _, dir := range []string{res.MaskDir, res.OverlayDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}

	fps := meta.FPS
	if fps <= 0 {
		fps = 30
	}

	overlayOut, err := gocv.VideoWriterFile(res.OverlayVideo, videoCodec, fps, meta.Width, meta.Height, true)
	if err != nil {
		return nil, fmt.Errorf("open overlay video writer: %w", err)
	}
	defer overlayOut.Close()

	maskOut, err := gocv.VideoWriterFile(res.MaskVideo, videoCodec, fps, meta.Width, meta.Height, true)
	if err != nil {
		return nil, fmt.Errorf("open mask video writer: %w", err)
	}
	defer maskOut.Close()

	green := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 255, 0, 0), meta.Height, meta.Width, gocv.MatTypeCV8UC3)
	defer green.Close()
	tinted := gocv.NewMat()
	defer tinted.Close()
	maskBGR := gocv.NewMat()
	defer maskBGR.Close()
	blackFrame := gocv.Zeros(meta.Height, meta.Width, gocv.MatTypeCV8UC3)
	defer blackFrame.Close()

	for idx := 0; idx < meta.FrameCount; idx++ {
		frame, err := src.ReadFrame(idx)
		if err != nil {
			return nil, fmt.Errorf("read frame %d: %w", idx, err)
		}

		obj := masks.Get(idx, m.objectID)
		if obj == nil {
			overlayPath := filepath.Join(res.OverlayDir, fmt.Sprintf(OverlayPattern, idx))
			if ok := gocv.IMWrite(overlayPath, frame); !ok {
				frame.Close()
				return nil, fmt.Errorf("write overlay %s", overlayPath)
			}
			if err := overlayOut.Write(frame); err != nil {
				frame.Close()
				return nil, fmt.Errorf("encode overlay frame %d: %w", idx, err)
			}
			if err := maskOut.Write(blackFrame); err != nil {
				frame.Close()
				return nil, fmt.Errorf("encode mask frame %d: %w", idx, err)
			}
			frame.Close()
			continue
		}

		if obj.W != meta.Width || obj.H != meta.Height {
			m.log.Warn("mask dimensions differ from video, cropping/padding",
				zap.Int("frame", idx),
				zap.Int("mask_width", obj.W),
				zap.Int("mask_height", obj.H),
				zap.Int("video_width", meta.Width),
				zap.Int("video_height", meta.Height))
			obj = obj.FitTo(meta.Width, meta.Height)
		}

		maskMat, err := maskToMat(obj)
		if err != nil {
			frame.Close()
			return nil, fmt.Errorf("convert mask for frame %d: %w", idx, err)
		}

		maskPath := filepath.Join(res.MaskDir, fmt.Sprintf(MaskPattern, idx))
		if ok := gocv.IMWrite(maskPath, maskMat); !ok {
			maskMat.Close()
			frame.Close()
			return nil, fmt.Errorf("write mask %s", maskPath)
		}

		// Blend the whole frame with green, then copy the blend back
		// only where the mask is set.
		gocv.AddWeighted(frame, 1-overlayAlpha, green, overlayAlpha, 0, &tinted)
		tinted.CopyToWithMask(&frame, maskMat)

		overlayPath := filepath.Join(res.OverlayDir, fmt.Sprintf(OverlayPattern, idx))
		if ok := gocv.IMWrite(overlayPath, frame); !ok {
			maskMat.Close()
			frame.Close()
			return nil, fmt.Errorf("write overlay %s", overlayPath)
		}

		if err := overlayOut.Write(frame); err != nil {
			maskMat.Close()
			frame.Close()
			return nil, fmt.Errorf("encode overlay frame %d: %w", idx, err)
		}

		gocv.CvtColor(maskMat, &maskBGR, gocv.ColorGrayToBGR)
		if err := maskOut.Write(maskBGR); err != nil {
			maskMat.Close()
			frame.Close()
			return nil, fmt.Errorf("encode mask frame %d: %w", idx, err)
		}

		maskMat.Close()
		frame.Close()
		res.MaskedFrames++

		if idx%100 == 0 {
			m.log.Debug("materializing frames", zap.Int("frame", idx), zap.Int("total", meta.FrameCount))
		}
	}

	m.log.Info("results materialized",
		zap.String("output_dir", m.outputDir),
		zap.Int("frames", meta.FrameCount),
		zap.Int("masked_frames", res.MaskedFrames))
	return res, nil
}

// maskToMat converts a binary mask to a single-channel 0/255 Mat.
func maskToMat(m *mask.Mask) (gocv.Mat, error) {
	data := make([]byte, len(m.Pix))
	for i, v := range m.Pix {
		if v {
			data[i] = 255
		}
	}
	return gocv.NewMatFromBytes(m.H, m.W, gocv.MatTypeCV8UC1, data)
}
