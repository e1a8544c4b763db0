// Package propagate drives the segmentation oracle across the keyframe
// segments of a video, degrading to a relocated oracle on resource
// exhaustion and to linear mask interpolation when that fails too.
package propagate

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmuozan/vidseg/internal/annotate"
	"github.com/jmuozan/vidseg/internal/mask"
	"github.com/jmuozan/vidseg/internal/oracle"
	"go.uber.org/zap"
)

// ErrNoKeyframes is returned when the annotation plan is empty.
var ErrNoKeyframes = errors.New("no keyframes in annotation plan")

// Method records how a segment's masks were obtained.
type Method string

const (
	// MethodPropagated means the primary oracle covered the segment.
	MethodPropagated Method = "propagated"
	// MethodRelocated means the degraded-device retry covered it.
	MethodRelocated Method = "relocated"
	// MethodInterpolated means the segment was filled by mask
	// interpolation.
	MethodInterpolated Method = "interpolated"
)

// Observer receives progress events while the engine runs.
type Observer interface {
	SegmentStarted(start, end int)
	SegmentFinished(start, end int, method Method)
	FrameProcessed(frameIdx int)
}

type nopObserver struct{}

func (nopObserver) SegmentStarted(int, int)          {}
func (nopObserver) SegmentFinished(int, int, Method) {}
func (nopObserver) FrameProcessed(int)               {}

// Config holds the engine's processing parameters.
type Config struct {
	// Passes is the number of refinement passes per segment. Later
	// passes may overwrite a frame's mask; last write wins.
	Passes int
	// ObjectID identifies the tracked object.
	ObjectID int
	// FrameCount is the video's total frame count.
	FrameCount int
	// FramesDir is the extracted frame directory the fallback oracle
	// is initialized with.
	FramesDir string
	// FallbackDevice is the execution context the relocated oracle is
	// built on after a resource-exhaustion failure.
	FallbackDevice oracle.Device
}

// Engine is the propagation state machine. It owns the mask set and the
// scene annotation record for the duration of a run; processing is
// single-threaded and synchronous.
type Engine struct {
	cfg     Config
	oc      oracle.Oracle
	factory oracle.Factory
	masks   *mask.Set
	record  *annotate.Record
	obs     Observer
	log     *zap.Logger
}

// New creates an engine around a primed-and-ready oracle. The factory
// builds the relocated instance used by the memory-exhaustion recovery
// path.
func New(oc oracle.Oracle, factory oracle.Factory, cfg Config, masks *mask.Set, log *zap.Logger) *Engine {
	if cfg.Passes < 1 {
		cfg.Passes = 1
	}
	if cfg.FallbackDevice.Kind == "" {
		cfg.FallbackDevice = oracle.CPUDevice()
	}
	return &Engine{
		cfg:     cfg,
		oc:      oc,
		factory: factory,
		masks:   masks,
		record:  annotate.NewRecord(),
		obs:     nopObserver{},
		log:     log,
	}
}

// SetObserver installs a progress observer. A nil observer disables
// events.
func (e *Engine) SetObserver(obs Observer) {
	if obs == nil {
		e.obs = nopObserver{}
		return
	}
	e.obs = obs
}

// Masks returns the engine's mask set.
func (e *Engine) Masks() *mask.Set {
	return e.masks
}

// Record returns the scene annotation record accumulated so far.
func (e *Engine) Record() *annotate.Record {
	return e.record
}

// Run processes every keyframe segment of the plan in order, then sweeps
// the whole frame range so no frame is left unmasked while a reference
// mask exists anywhere. Oracle failures other than resource exhaustion
// and point rejection abort the run.
func (e *Engine) Run(ctx context.Context, plan annotate.Plan) error {
	keyframes := plan.Frames()
	if len(keyframes) == 0 {
		return ErrNoKeyframes
	}

	for i, kf := range keyframes {
		segEnd := e.cfg.FrameCount
		if i+1 < len(keyframes) {
			segEnd = keyframes[i+1]
		}
		if kf >= segEnd {
			continue
		}

		e.obs.SegmentStarted(kf, segEnd)
		e.log.Info("processing segment",
			zap.Int("start", kf),
			zap.Int("end", segEnd))

		if err := e.prime(ctx, e.oc, kf, plan[kf]); err != nil {
			var rej *oracle.RejectedError
			if errors.As(err, &rej) {
				// Recoverable at segment granularity: keep the
				// previous segment's propagated state.
				e.log.Warn("annotation points rejected, continuing with prior state",
					zap.Int("frame", kf),
					zap.String("reason", rej.Reason))
			} else {
				return fmt.Errorf("prime frame %d: %w", kf, err)
			}
		}

		method := MethodPropagated
		err := e.propagateOn(ctx, e.oc, kf, segEnd)
		if errors.Is(err, oracle.ErrResourceExhausted) {
			method = e.recoverSegment(ctx, kf, segEnd)
		} else if err != nil {
			return fmt.Errorf("propagate segment [%d,%d): %w", kf, segEnd, err)
		}

		e.obs.SegmentFinished(kf, segEnd, method)
	}

	e.sweepGaps()
	return nil
}

// prime submits a keyframe's annotation points, records them for possible
// re-application, and stores the resulting seed mask.
func (e *Engine) prime(ctx context.Context, oc oracle.Oracle, frameIdx int, points []annotate.Point) error {
	if len(points) == 0 {
		return &oracle.RejectedError{Reason: "no annotation points"}
	}

	seed, err := oc.AddPoints(ctx, frameIdx, e.cfg.ObjectID, points)
	if err != nil {
		return err
	}

	// Record only accepted points: the OOM walk-back re-applies from
	// this record and must never resubmit points the oracle refused.
	e.record.Add(frameIdx, points)
	e.masks.Put(frameIdx, e.cfg.ObjectID, seed)
	return nil
}

// propagateOn runs the configured refinement passes of one segment on the
// given oracle, recording every in-range mask. Later passes overwrite
// earlier ones for the same frame.
func (e *Engine) propagateOn(ctx context.Context, oc oracle.Oracle, start, end int) error {
	for pass := 0; pass < e.cfg.Passes; pass++ {
		seq, err := oc.Propagate(ctx)
		if err != nil {
			return err
		}

		for {
			step, err := seq.Next(ctx)
			if err != nil {
				return err
			}
			if step == nil {
				break
			}

			if step.Frame >= start && step.Frame < end {
				for _, obj := range step.Objects {
					e.masks.Put(step.Frame, obj.ID, obj.Mask)
				}
				e.obs.FrameProcessed(step.Frame)
				if step.Frame%10 == 0 {
					e.log.Debug("propagated frame",
						zap.Int("frame", step.Frame),
						zap.Int("pass", pass+1),
						zap.Int("passes", e.cfg.Passes))
				}
			}

			// The sequence runs to the end of the video; stop
			// consuming once the segment is covered.
			if step.Frame >= end-1 {
				break
			}
		}
	}
	return nil
}

// recoverSegment handles the memory-exhausted transition: build a
// relocated oracle on the fallback device, re-prime it from the nearest
// prior annotation record, and resume. Any failure on that path drops the
// segment to interpolation.
func (e *Engine) recoverSegment(ctx context.Context, start, end int) Method {
	e.log.Warn("oracle resource exhaustion, relocating",
		zap.Int("start", start),
		zap.Int("end", end),
		zap.String("device", e.cfg.FallbackDevice.Kind))

	fb, err := e.factory(e.cfg.FallbackDevice)
	if err != nil {
		e.log.Warn("relocated oracle construction failed", zap.Error(err))
		return e.interpolateSegment(start, end)
	}
	defer fb.Close()

	if err := fb.Init(ctx, e.cfg.FramesDir); err != nil {
		e.log.Warn("relocated oracle init failed", zap.Error(err))
		return e.interpolateSegment(start, end)
	}

	if points, annFrame, found := e.record.NearestAtOrBefore(start); found {
		e.log.Info("re-applying annotation points",
			zap.Int("frame", start),
			zap.Int("from_frame", annFrame),
			zap.Int("points", len(points)))
		if _, err := fb.AddPoints(ctx, start, e.cfg.ObjectID, points); err != nil {
			e.log.Warn("re-priming relocated oracle failed", zap.Error(err))
			return e.interpolateSegment(start, end)
		}
	} else {
		e.log.Warn("no annotation record at or before segment start, resuming unprimed",
			zap.Int("start", start))
	}

	if err := e.propagateOn(ctx, fb, start, end); err != nil {
		e.log.Warn("relocated propagation failed", zap.Error(err))
		return e.interpolateSegment(start, end)
	}
	return MethodRelocated
}

// interpolateSegment marks [start, end) for the interpolation fallback.
// The actual filling happens in the completion sweep, after later
// segments have propagated, so reference masks on both sides of the gap
// are available.
func (e *Engine) interpolateSegment(start, end int) Method {
	e.log.Warn("falling back to mask interpolation",
		zap.Int("start", start),
		zap.Int("end", end))
	return MethodInterpolated
}

// sweepGaps fills any frames still unmasked after all segments, including
// segments deferred to interpolation, so every frame ends up with exactly
// one mask per object unless no reference exists anywhere in the video.
func (e *Engine) sweepGaps() {
	rep := mask.FillGaps(e.masks, e.cfg.ObjectID, e.cfg.FrameCount)
	if rep.Interpolated > 0 || rep.Copied > 0 {
		e.log.Info("completion sweep filled gaps",
			zap.Int("interpolated", rep.Interpolated),
			zap.Int("copied", rep.Copied))
	}
	e.logFillReport(rep)
}

func (e *Engine) logFillReport(rep mask.FillReport) {
	if len(rep.Unresolved) > 0 {
		e.log.Warn("no reference mask available, frames left unmasked",
			zap.Int("count", len(rep.Unresolved)),
			zap.Int("first", rep.Unresolved[0]),
			zap.Int("last", rep.Unresolved[len(rep.Unresolved)-1]))
	}
}
