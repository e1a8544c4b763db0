// Package frames extracts a video into an ordered sequence of still
// images on disk and provides random access to them.
package frames

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// FramePattern is the on-disk naming scheme for extracted stills.
const FramePattern = "frame_%06d.jpg"

// ErrFrameOutOfRange is returned when a frame index falls outside the
// extracted sequence.
var ErrFrameOutOfRange = errors.New("frame index out of range")

// Meta describes the extracted video.
type Meta struct {
	FrameCount int
	FPS        float64
	Width      int
	Height     int
}

// Source provides ordered access to a video's extracted frames.
type Source interface {
	Meta() Meta
	// ReadFrame loads one still. The caller owns the returned Mat and
	// must close it.
	ReadFrame(idx int) (gocv.Mat, error)
	// Dir is the directory holding the stills, handed to the oracle.
	Dir() string
	// Cleanup removes the extracted stills. Call only after every
	// consumer has read the frames it needs.
	Cleanup() error
	Close() error
}

// Store is the on-disk frame source backed by an extraction directory.
type Store struct {
	dir  string
	meta Meta
}

// Extract decodes the whole video into dir as sequentially numbered JPEG
// stills. An unreadable video is a fatal error.
func Extract(videoPath, dir string, log *zap.Logger) (*Store, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return nil, fmt.Errorf("video file not readable: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create frame directory: %w", err)
	}

	cap, err := gocv.VideoCaptureFile(videoPath)
	if err != nil {
		return nil, fmt.Errorf("open video %s: %w", videoPath, err)
	}
	defer cap.Close()

	meta := Meta{
		FPS:    cap.Get(gocv.VideoCaptureFPS),
		Width:  int(cap.Get(gocv.VideoCaptureFrameWidth)),
		Height: int(cap.Get(gocv.VideoCaptureFrameHeight)),
	}

	frame := gocv.NewMat()
	defer frame.Close()

	idx := 0
	for {
		if ok := cap.Read(&frame); !ok || frame.Empty() {
			break
		}
		path := filepath.Join(dir, fmt.Sprintf(FramePattern, idx))
		if ok := gocv.IMWrite(path, frame); !ok {
			return nil, fmt.Errorf("write frame %d to %s", idx, path)
		}
		if idx%100 == 0 {
			log.Info("extracting frames", zap.Int("frame", idx))
		}
		idx++
	}

	if idx == 0 {
		return nil, fmt.Errorf("no frames decoded from %s", videoPath)
	}
	meta.FrameCount = idx

	log.Info("frames extracted",
		zap.Int("count", idx),
		zap.Float64("fps", meta.FPS),
		zap.Int("width", meta.Width),
		zap.Int("height", meta.Height))

	return &Store{dir: dir, meta: meta}, nil
}

// Open reopens a previously extracted frame directory. The frame count is
// taken from the stills present; fps and dimensions from the first still
// and the provided fps.
func Open(dir string, fps float64) (*Store, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "frame_*.jpg"))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no frames found in %s", dir)
	}

	first := gocv.IMRead(filepath.Join(dir, fmt.Sprintf(FramePattern, 0)), gocv.IMReadColor)
	if first.Empty() {
		return nil, fmt.Errorf("first frame unreadable in %s", dir)
	}
	defer first.Close()

	return &Store{
		dir: dir,
		meta: Meta{
			FrameCount: len(matches),
			FPS:        fps,
			Width:      first.Cols(),
			Height:     first.Rows(),
		},
	}, nil
}

// Meta returns the extracted video's metadata.
func (s *Store) Meta() Meta {
	return s.meta
}

// ReadFrame loads the still at idx. The caller must close the Mat.
func (s *Store) ReadFrame(idx int) (gocv.Mat, error) {
	if idx < 0 || idx >= s.meta.FrameCount {
		return gocv.Mat{}, fmt.Errorf("%w: %d of %d", ErrFrameOutOfRange, idx, s.meta.FrameCount)
	}
	path := filepath.Join(s.dir, fmt.Sprintf(FramePattern, idx))
	mat := gocv.IMRead(path, gocv.IMReadColor)
	if mat.Empty() {
		return gocv.Mat{}, fmt.Errorf("frame %d unreadable at %s", idx, path)
	}
	return mat, nil
}

// Dir returns the extraction directory.
func (s *Store) Dir() string {
	return s.dir
}

// Cleanup removes the extraction directory and everything in it.
func (s *Store) Cleanup() error {
	return os.RemoveAll(s.dir)
}

// Close is a no-op for the disk-backed store; stills stay available until
// Cleanup.
func (s *Store) Close() error {
	return nil
}
