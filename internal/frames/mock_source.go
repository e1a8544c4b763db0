package frames

import (
	"fmt"

	"gocv.io/x/gocv"
)

// MockSource serves pre-built frames from memory for testing.
type MockSource struct {
	frames []*gocv.Mat
	meta   Meta
	dir    string
}

// NewMockSource wraps a frame sequence. All frames must share dimensions.
func NewMockSource(frames []*gocv.Mat, fps float64) *MockSource {
	meta := Meta{FrameCount: len(frames), FPS: fps}
	if len(frames) > 0 {
		meta.Width = frames[0].Cols()
		meta.Height = frames[0].Rows()
	}
	return &MockSource{frames: frames, meta: meta}
}

// SetDir sets the directory reported to the oracle.
func (s *MockSource) SetDir(dir string) {
	s.dir = dir
}

func (s *MockSource) Meta() Meta {
	return s.meta
}

// ReadFrame clones the stored frame so callers can close it freely.
func (s *MockSource) ReadFrame(idx int) (gocv.Mat, error) {
	if idx < 0 || idx >= len(s.frames) {
		return gocv.Mat{}, fmt.Errorf("%w: %d of %d", ErrFrameOutOfRange, idx, len(s.frames))
	}
	return s.frames[idx].Clone(), nil
}

func (s *MockSource) Dir() string {
	return s.dir
}

func (s *MockSource) Cleanup() error {
	return nil
}

// Close releases the stored frames.
func (s *MockSource) Close() error {
	for _, f := range s.frames {
		f.Close()
	}
	s.frames = nil
	return nil
}
