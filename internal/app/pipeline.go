package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jmuozan/vidseg/internal/annotate"
	"github.com/jmuozan/vidseg/internal/frames"
	"github.com/jmuozan/vidseg/internal/keyframe"
	"github.com/jmuozan/vidseg/internal/mask"
	"github.com/jmuozan/vidseg/internal/propagate"
	"github.com/jmuozan/vidseg/internal/render"
	"github.com/jmuozan/vidseg/internal/store"
)

// RunOptions selects the input video and the keyframe policy for one
// processing run.
type RunOptions struct {
	VideoPath string
	// Keyframes are explicit frame indices. Empty means use a policy.
	Keyframes []int
	// Auto selects keyframes by motion difference instead of fixed
	// intervals.
	Auto bool
	// Observer receives engine progress events. May be nil.
	Observer propagate.Observer
}

// NewRun creates the run row and output directory for a video before
// any processing happens, so callers can hand out the run ID while the
// pipeline works.
func (a *App) NewRun(videoPath string) (*store.Run, error) {
	runID := uuid.NewString()
	outputDir := filepath.Join(a.cfg.OutputDir, runID)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	run := &store.Run{ID: runID, VideoPath: videoPath, OutputDir: outputDir}
	if err := a.st.Runs().Create(run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	return run, nil
}

// Process runs the whole pipeline for one video: extract frames, build
// the annotation plan, propagate masks, and materialize the results.
// The extracted frames are removed only after materialization.
func (a *App) Process(ctx context.Context, opts RunOptions) (*store.Run, *render.Result, error) {
	run, err := a.NewRun(opts.VideoPath)
	if err != nil {
		return nil, nil, err
	}
	res, err := a.ProcessRun(ctx, run, opts)
	return run, res, err
}

// ProcessRun executes the pipeline for an already-created run and
// updates its status as it goes.
func (a *App) ProcessRun(ctx context.Context, run *store.Run, opts RunOptions) (*render.Result, error) {
	res, err := a.process(ctx, run, opts)
	if err != nil {
		if serr := a.st.Runs().SetStatus(run.ID, store.RunStatusFailed); serr != nil {
			a.log.Error("failed to mark run failed", zap.Error(serr))
		}
		run.Status = store.RunStatusFailed
		return nil, err
	}

	if err := a.st.Runs().SetStatus(run.ID, store.RunStatusDone); err != nil {
		return res, fmt.Errorf("mark run done: %w", err)
	}
	run.Status = store.RunStatusDone
	return res, nil
}

func (a *App) process(ctx context.Context, run *store.Run, opts RunOptions) (*render.Result, error) {
	framesDir := a.cfg.FramesDir
	ownFrames := framesDir == ""
	if ownFrames {
		framesDir = filepath.Join(run.OutputDir, "frames")
	}

	a.log.Info("extracting frames",
		zap.String("video", opts.VideoPath),
		zap.String("dir", framesDir))
	src, err := frames.Extract(opts.VideoPath, framesDir, a.log)
	if err != nil {
		return nil, fmt.Errorf("extract frames: %w", err)
	}
	defer src.Close()

	meta := src.Meta()
	if err := a.st.Runs().SetMeta(run.ID, meta.FrameCount, meta.FPS, meta.Width, meta.Height); err != nil {
		return nil, fmt.Errorf("record video metadata: %w", err)
	}
	run.FrameCount = meta.FrameCount
	run.FPS = meta.FPS
	run.Width = meta.Width
	run.Height = meta.Height

	if err := a.st.Runs().SetStatus(run.ID, store.RunStatusProcessing); err != nil {
		return nil, fmt.Errorf("mark run processing: %w", err)
	}

	plan, err := a.buildPlan(src, opts)
	if err != nil {
		return nil, err
	}
	if err := a.savePlan(run.ID, plan); err != nil {
		return nil, fmt.Errorf("persist annotation plan: %w", err)
	}

	oc, factory := a.newOracle(meta.FrameCount)
	defer oc.Close()

	if err := oc.Init(ctx, src.Dir()); err != nil {
		return nil, fmt.Errorf("initialize oracle: %w", err)
	}

	engine := propagate.New(oc, factory, propagate.Config{
		Passes:         a.cfg.Passes,
		ObjectID:       a.cfg.ObjectID,
		FrameCount:     meta.FrameCount,
		FramesDir:      src.Dir(),
		FallbackDevice: a.fallbackDevice(),
	}, mask.NewSet(), a.log)
	engine.SetObserver(&segmentPersister{
		runID:    run.ID,
		segments: a.st.Segments(),
		next:     opts.Observer,
		log:      a.log,
	})

	if err := engine.Run(ctx, plan); err != nil {
		return nil, fmt.Errorf("propagate masks: %w", err)
	}

	res, err := render.New(run.OutputDir, a.cfg.ObjectID, a.log).Write(src, engine.Masks())
	if err != nil {
		return nil, fmt.Errorf("materialize results: %w", err)
	}

	// The stills are only safe to delete once every output exists.
	if ownFrames {
		if err := src.Cleanup(); err != nil {
			a.log.Warn("failed to remove extracted frames", zap.Error(err))
		}
	}

	return res, nil
}

// buildPlan turns the run options into an annotation plan.
func (a *App) buildPlan(src frames.Source, opts RunOptions) (annotate.Plan, error) {
	meta := src.Meta()

	if opts.Auto {
		plan, err := keyframe.NewSelector(a.log).AutoPlan(src, a.cfg.AutoKeyframes)
		if err != nil {
			return nil, fmt.Errorf("auto keyframe selection: %w", err)
		}
		return plan, nil
	}

	indices := opts.Keyframes
	if len(indices) == 0 {
		indices = keyframe.FixedIntervals(meta.FrameCount, a.cfg.KeyframeInterval)
	} else {
		indices = append([]int(nil), indices...)
		sort.Ints(indices)
	}
	return keyframe.PlanFromIndices(indices, meta.Width, meta.Height), nil
}

// savePlan persists the plan's points as the run's annotation record.
func (a *App) savePlan(runID string, plan annotate.Plan) error {
	for _, f := range plan.Frames() {
		if err := a.st.Annotations().Save(runID, f, plan[f]); err != nil {
			return err
		}
	}
	return nil
}

// segmentPersister records finished segments in the store and forwards
// events to an optional downstream observer.
type segmentPersister struct {
	runID    string
	segments *store.SegmentRepository
	next     propagate.Observer
	log      *zap.Logger
}

func (p *segmentPersister) SegmentStarted(start, end int) {
	if p.next != nil {
		p.next.SegmentStarted(start, end)
	}
}

func (p *segmentPersister) SegmentFinished(start, end int, method propagate.Method) {
	if err := p.segments.Add(p.runID, start, end, string(method)); err != nil {
		p.log.Error("failed to persist segment",
			zap.Int("start", start),
			zap.Int("end", end),
			zap.Error(err))
	}
	if p.next != nil {
		p.next.SegmentFinished(start, end, method)
	}
}

func (p *segmentPersister) FrameProcessed(frameIdx int) {
	if p.next != nil {
		p.next.FrameProcessed(frameIdx)
	}
}
