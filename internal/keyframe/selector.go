// Package keyframe chooses the frames that receive fresh annotation
// points, either at fixed intervals or by motion-difference heuristics.
package keyframe

import (
	"fmt"
	"image/color"
	"sort"

	"github.com/jmuozan/vidseg/internal/annotate"
	"github.com/jmuozan/vidseg/internal/frames"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// Motion selection constants
const (
	// DiffThreshold is the binary threshold for frame-difference
	// detection.
	DiffThreshold = 25
	// MinContourArea is the smallest changed region that yields a
	// positive point.
	MinContourArea = 100
	// MaxMotionPoints caps the positive points taken from changed
	// regions per keyframe.
	MaxMotionPoints = 5
)

// FixedIntervals returns the fixed-interval keyframe schedule
// {0, k, 2k, ...} with the last frame always included. interval values
// below 1 are treated as 1.
func FixedIntervals(frameCount, interval int) []int {
	if frameCount <= 0 {
		return nil
	}
	if interval < 1 {
		interval = 1
	}

	indices := []int{}
	for f := 0; f < frameCount; f += interval {
		indices = append(indices, f)
	}
	if last := frameCount - 1; indices[len(indices)-1] != last {
		indices = append(indices, last)
	}
	return indices
}

// PlanFromIndices builds a fixed-policy annotation plan: every scheduled
// frame gets the grid positives plus the corner negatives.
func PlanFromIndices(indices []int, width, height int) annotate.Plan {
	plan := make(annotate.Plan, len(indices))
	for _, idx := range indices {
		plan[idx] = append(annotate.GridPoints(width, height), annotate.CornerNegatives(width, height)...)
	}
	return plan
}

// Selector builds motion-based annotation plans by comparing sampled
// frames against the previously sampled frame.
type Selector struct {
	log *zap.Logger
}

// NewSelector creates a motion-based keyframe selector.
func NewSelector(log *zap.Logger) *Selector {
	return &Selector{log: log}
}

// AutoPlan samples numKeyframes frames evenly across the source and
// annotates each with the centroids of its largest changed regions as
// positive points. The first frame always gets the grid prompt, and every
// frame gets the four corner negatives. Falls back to the grid when no
// motion is detected.
func (s *Selector) AutoPlan(src frames.Source, numKeyframes int) (annotate.Plan, error) {
	meta := src.Meta()
	if meta.FrameCount == 0 {
		return nil, fmt.Errorf("source has no frames")
	}
	if numKeyframes < 1 {
		numKeyframes = 1
	}

	step := meta.FrameCount / (numKeyframes + 1)
	if step < 1 {
		step = 1
	}

	plan := make(annotate.Plan)

	prev, err := src.ReadFrame(0)
	if err != nil {
		return nil, fmt.Errorf("read first frame: %w", err)
	}
	plan[0] = append(annotate.GridPoints(meta.Width, meta.Height), annotate.CornerNegatives(meta.Width, meta.Height)...)

	for i := 1; i < numKeyframes; i++ {
		idx := i * step
		if idx >= meta.FrameCount {
			break
		}

		frame, err := src.ReadFrame(idx)
		if err != nil {
			prev.Close()
			return nil, fmt.Errorf("read frame %d: %w", idx, err)
		}

		points := motionPoints(prev, frame)
		if len(points) == 0 {
			points = annotate.GridPoints(meta.Width, meta.Height)
			s.log.Debug("no motion detected, using grid prompt", zap.Int("frame", idx))
		}
		points = append(points, annotate.CornerNegatives(meta.Width, meta.Height)...)
		plan[idx] = points

		prev.Close()
		prev = frame
	}
	prev.Close()

	s.log.Info("keyframe plan generated",
		zap.Int("keyframes", len(plan)),
		zap.Int("frame_count", meta.FrameCount))
	return plan, nil
}

// motionPoints returns positive points at the moment centroids of the
// largest regions that changed between two frames.
func motionPoints(prev, cur gocv.Mat) []annotate.Point {
	prevGray := gocv.NewMat()
	defer prevGray.Close()
	curGray := gocv.NewMat()
	defer curGray.Close()
	gocv.CvtColor(prev, &prevGray, gocv.ColorBGRToGray)
	gocv.CvtColor(cur, &curGray, gocv.ColorBGRToGray)

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(curGray, prevGray, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, DiffThreshold, 255, gocv.ThresholdBinary)

	contours := gocv.FindContours(thresh, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	type region struct {
		area float64
		idx  int
	}
	regions := make([]region, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		area := gocv.ContourArea(contours.At(i))
		if area > MinContourArea {
			regions = append(regions, region{area: area, idx: i})
		}
	}
	sort.Slice(regions, func(i, j int) bool { return regions[i].area > regions[j].area })

	// The point goes at the region's moment centroid rather than the
	// bounding-rect center, so irregular blobs prompt inside the mass.
	points := []annotate.Point{}
	for i := 0; i < len(regions) && i < MaxMotionPoints; i++ {
		blob := gocv.Zeros(thresh.Rows(), thresh.Cols(), gocv.MatTypeCV8UC1)
		gocv.DrawContours(&blob, contours, regions[i].idx, color.RGBA{R: 255, G: 255, B: 255, A: 255}, -1)
		m := gocv.Moments(blob, true)
		blob.Close()
		if m["m00"] == 0 {
			continue
		}
		points = append(points, annotate.Point{
			X:     int(m["m10"] / m["m00"]),
			Y:     int(m["m01"] / m["m00"]),
			Label: annotate.Positive,
		})
	}
	return points
}
