package oracle

import (
	"context"

	"github.com/jmuozan/vidseg/internal/annotate"
	"github.com/jmuozan/vidseg/internal/mask"
)

// Mock is a test implementation of the Oracle interface. It propagates a
// fixed mask forward from the last primed frame and lets tests inject
// resource exhaustion and prompt rejections.
type Mock struct {
	// FrameCount bounds the propagation sweep.
	FrameCount int
	// SeedMask is returned from AddPoints and carried through
	// propagation. Defaults to a small circle.
	SeedMask *mask.Mask

	// OOMStart and OOMEnd make propagation fail with
	// ErrResourceExhausted when the sweep reaches a frame in
	// [OOMStart, OOMEnd). Equal values disable the failure.
	OOMStart, OOMEnd int
	// RejectFrames lists frames whose prompts are rejected.
	RejectFrames map[int]bool
	// InitErr is returned from Init when set.
	InitErr error

	primedFrame int
	primedObj   int
	primed      bool

	// Call bookkeeping for assertions.
	InitCalls      int
	AddPointsCalls int
	PropagateCalls int
	Closed         bool
}

// NewMock creates a mock oracle covering frameCount frames.
func NewMock(frameCount int) *Mock {
	return &Mock{
		FrameCount: frameCount,
		SeedMask:   mask.Circle(64, 48, 32, 24, 10),
	}
}

// Init resets the mock's propagation state.
func (m *Mock) Init(ctx context.Context, framesDir string) error {
	m.InitCalls++
	m.primed = false
	return m.InitErr
}

// AddPoints seeds the mock at a frame, or rejects the prompt when the
// frame is listed in RejectFrames.
func (m *Mock) AddPoints(ctx context.Context, frameIdx, objectID int, points []annotate.Point) (*mask.Mask, error) {
	m.AddPointsCalls++
	if m.RejectFrames[frameIdx] {
		return nil, &RejectedError{Reason: "mock rejection"}
	}
	if len(points) == 0 {
		return nil, &RejectedError{Reason: "no points supplied"}
	}
	m.primedFrame = frameIdx
	m.primedObj = objectID
	m.primed = true
	return m.SeedMask.Clone(), nil
}

// Propagate sweeps from the primed frame to the end of the video,
// yielding the seed mask at every frame.
func (m *Mock) Propagate(ctx context.Context) (Sequence, error) {
	m.PropagateCalls++
	start := 0
	if m.primed {
		start = m.primedFrame
	}
	return &mockSequence{mock: m, next: start}, nil
}

// Close marks the mock closed.
func (m *Mock) Close() error {
	m.Closed = true
	return nil
}

type mockSequence struct {
	mock *Mock
	next int
}

func (s *mockSequence) Next(ctx context.Context) (*Step, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.next >= s.mock.FrameCount {
		return nil, nil
	}
	if s.mock.OOMEnd > s.mock.OOMStart && s.next >= s.mock.OOMStart && s.next < s.mock.OOMEnd {
		return nil, ErrResourceExhausted
	}

	step := &Step{
		Frame:   s.next,
		Objects: []ObjectMask{{ID: s.mock.primedObj, Mask: s.mock.SeedMask.Clone()}},
	}
	s.next++
	return step, nil
}
