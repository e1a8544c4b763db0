package propagate

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jmuozan/vidseg/internal/annotate"
	"github.com/jmuozan/vidseg/internal/mask"
	"github.com/jmuozan/vidseg/internal/oracle"
	"go.uber.org/zap"
)

const objID = 1

func testPlan(frames ...int) annotate.Plan {
	plan := make(annotate.Plan)
	for _, f := range frames {
		plan[f] = append(annotate.GridPoints(64, 48), annotate.CornerNegatives(64, 48)...)
	}
	return plan
}

// segmentRecorder captures observer events for assertions.
type segmentRecorder struct {
	methods map[int]Method // keyed by segment start
	frames  int
}

func newSegmentRecorder() *segmentRecorder {
	return &segmentRecorder{methods: make(map[int]Method)}
}

func (r *segmentRecorder) SegmentStarted(start, end int) {}
func (r *segmentRecorder) SegmentFinished(start, end int, m Method) {
	r.methods[start] = m
}
func (r *segmentRecorder) FrameProcessed(int) { r.frames++ }

func newEngine(oc oracle.Oracle, factory oracle.Factory, frameCount int) (*Engine, *segmentRecorder) {
	e := New(oc, factory, Config{
		Passes:     2,
		ObjectID:   objID,
		FrameCount: frameCount,
		FramesDir:  "unused",
	}, mask.NewSet(), zap.NewNop())

	rec := newSegmentRecorder()
	e.SetObserver(rec)
	return e, rec
}

func assertFullyMasked(t *testing.T, s *mask.Set, frameCount int) {
	t.Helper()
	for f := 0; f < frameCount; f++ {
		if !s.Has(f, objID) {
			t.Errorf("frame %d left unmasked", f)
		}
	}
}

func TestRunHappyPath(t *testing.T) {
	mock := oracle.NewMock(30)
	e, rec := newEngine(mock, func(oracle.Device) (oracle.Oracle, error) {
		t.Fatal("fallback factory invoked without a failure")
		return nil, nil
	}, 30)

	if err := e.Run(context.Background(), testPlan(0, 10, 20, 29)); err != nil {
		t.Fatalf("Run error = %v", err)
	}

	assertFullyMasked(t, e.Masks(), 30)
	for _, start := range []int{0, 10, 20, 29} {
		if m := rec.methods[start]; m != MethodPropagated {
			t.Errorf("segment %d method = %q, want propagated", start, m)
		}
	}
	if mock.AddPointsCalls != 4 {
		t.Errorf("AddPoints calls = %d, want 4", mock.AddPointsCalls)
	}
}

func TestRunEmptyPlan(t *testing.T) {
	e, _ := newEngine(oracle.NewMock(30), nil, 30)
	err := e.Run(context.Background(), annotate.Plan{})
	if !errors.Is(err, ErrNoKeyframes) {
		t.Fatalf("Run error = %v, want ErrNoKeyframes", err)
	}
	if e.Masks().Len() != 0 {
		t.Error("masks written despite empty plan")
	}
}

// Segment [10,20) exhausts memory; the relocated oracle takes over and
// the remaining segments propagate normally.
func TestRunRecoversFromResourceExhaustion(t *testing.T) {
	primary := oracle.NewMock(30)
	primary.OOMStart, primary.OOMEnd = 10, 20

	var fallback *oracle.Mock
	factory := func(d oracle.Device) (oracle.Oracle, error) {
		if d.Kind != "cpu" {
			t.Errorf("fallback device = %q, want cpu", d.Kind)
		}
		fallback = oracle.NewMock(30)
		return fallback, nil
	}

	e, rec := newEngine(primary, factory, 30)
	if err := e.Run(context.Background(), testPlan(0, 10, 20, 29)); err != nil {
		t.Fatalf("Run error = %v", err)
	}

	assertFullyMasked(t, e.Masks(), 30)

	want := map[int]Method{
		0:  MethodPropagated,
		10: MethodRelocated,
		20: MethodPropagated,
		29: MethodPropagated,
	}
	for start, m := range want {
		if rec.methods[start] != m {
			t.Errorf("segment %d method = %q, want %q", start, rec.methods[start], m)
		}
	}

	if fallback == nil {
		t.Fatal("fallback oracle never constructed")
	}
	if fallback.InitCalls != 1 {
		t.Errorf("fallback Init calls = %d, want 1", fallback.InitCalls)
	}
	// The walk-back must re-prime the relocated oracle before resuming.
	if fallback.AddPointsCalls != 1 {
		t.Errorf("fallback AddPoints calls = %d, want 1", fallback.AddPointsCalls)
	}
	if !fallback.Closed {
		t.Error("fallback oracle not closed")
	}
}

// Both the primary and the relocated oracle fail; the segment is filled
// by interpolation from the neighboring segments and the run still
// succeeds.
func TestRunFallsBackToInterpolation(t *testing.T) {
	primary := oracle.NewMock(30)
	primary.OOMStart, primary.OOMEnd = 10, 20

	factory := func(oracle.Device) (oracle.Oracle, error) {
		fb := oracle.NewMock(30)
		fb.OOMStart, fb.OOMEnd = 10, 20
		return fb, nil
	}

	e, rec := newEngine(primary, factory, 30)
	if err := e.Run(context.Background(), testPlan(0, 10, 20, 29)); err != nil {
		t.Fatalf("Run error = %v", err)
	}

	assertFullyMasked(t, e.Masks(), 30)
	if rec.methods[10] != MethodInterpolated {
		t.Errorf("segment 10 method = %q, want interpolated", rec.methods[10])
	}
}

func TestRunFactoryFailureFallsBackToInterpolation(t *testing.T) {
	primary := oracle.NewMock(30)
	primary.OOMStart, primary.OOMEnd = 10, 20

	factory := func(oracle.Device) (oracle.Oracle, error) {
		return nil, fmt.Errorf("no fallback device available")
	}

	e, rec := newEngine(primary, factory, 30)
	if err := e.Run(context.Background(), testPlan(0, 10, 20, 29)); err != nil {
		t.Fatalf("Run error = %v", err)
	}

	assertFullyMasked(t, e.Masks(), 30)
	if rec.methods[10] != MethodInterpolated {
		t.Errorf("segment 10 method = %q, want interpolated", rec.methods[10])
	}
}

// A rejected keyframe prompt skips re-annotation for that keyframe; the
// previous segment's propagated state still covers the frames.
func TestRunContinuesOnRejectedPrompt(t *testing.T) {
	mock := oracle.NewMock(30)
	mock.RejectFrames = map[int]bool{10: true}

	e, rec := newEngine(mock, func(oracle.Device) (oracle.Oracle, error) {
		return oracle.NewMock(30), nil
	}, 30)

	if err := e.Run(context.Background(), testPlan(0, 10, 20, 29)); err != nil {
		t.Fatalf("Run error = %v", err)
	}

	assertFullyMasked(t, e.Masks(), 30)
	if rec.methods[10] != MethodPropagated {
		t.Errorf("segment 10 method = %q, want propagated", rec.methods[10])
	}
}

// Rejected points must never enter the annotation record: the
// memory-exhaustion walk-back re-applies from the record and would
// otherwise resubmit a prompt the oracle already refused.
func TestRunRejectedPromptNotRecorded(t *testing.T) {
	mock := oracle.NewMock(30)
	mock.RejectFrames = map[int]bool{10: true}

	e, _ := newEngine(mock, nil, 30)
	if err := e.Run(context.Background(), testPlan(0, 10, 20, 29)); err != nil {
		t.Fatalf("Run error = %v", err)
	}

	_, annFrame, found := e.Record().NearestAtOrBefore(10)
	if !found {
		t.Fatal("no annotation recorded at or before frame 10")
	}
	if annFrame != 0 {
		t.Errorf("walk-back source = frame %d, want 0: rejected points were recorded", annFrame)
	}
}

// Non-memory oracle failures are not handled by the engine; they abort
// the run.
func TestRunFailsLoudOnOtherErrors(t *testing.T) {
	failing := &brokenOracle{Mock: oracle.NewMock(30)}
	e, _ := newEngine(failing, nil, 30)

	err := e.Run(context.Background(), testPlan(0, 15))
	if err == nil {
		t.Fatal("Run swallowed a non-memory oracle failure")
	}
	if errors.Is(err, oracle.ErrResourceExhausted) {
		t.Error("failure misclassified as resource exhaustion")
	}
}

// brokenOracle turns every propagate call into a hard failure.
type brokenOracle struct {
	*oracle.Mock
}

func (o *brokenOracle) Propagate(ctx context.Context) (oracle.Sequence, error) {
	return nil, fmt.Errorf("inference state corrupted")
}

// Last-write-wins across refinement passes: a second pass overwrites the
// first pass's masks without duplicating frames.
func TestRunRefinementPassesOverwrite(t *testing.T) {
	mock := oracle.NewMock(12)
	e, _ := newEngine(mock, nil, 12)

	if err := e.Run(context.Background(), testPlan(0, 11)); err != nil {
		t.Fatalf("Run error = %v", err)
	}

	// Two passes per segment, both sweeping the same frames.
	if mock.PropagateCalls != 4 {
		t.Errorf("Propagate calls = %d, want 4 (2 passes x 2 segments)", mock.PropagateCalls)
	}
	assertFullyMasked(t, e.Masks(), 12)
}
