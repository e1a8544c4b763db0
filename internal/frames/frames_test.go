package frames

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

func TestMockSource(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	mats := make([]*gocv.Mat, 3)
	for i := range mats {
		m := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
		mats[i] = &m
	}

	src := NewMockSource(mats, 30)
	defer src.Close()

	meta := src.Meta()
	if meta.FrameCount != 3 || meta.Width != 64 || meta.Height != 48 {
		t.Fatalf("Meta() = %+v", meta)
	}

	frame, err := src.ReadFrame(1)
	if err != nil {
		t.Fatalf("ReadFrame(1) error = %v", err)
	}
	frame.Close()

	if _, err := src.ReadFrame(3); !errors.Is(err, ErrFrameOutOfRange) {
		t.Errorf("ReadFrame(3) error = %v, want ErrFrameOutOfRange", err)
	}
	if _, err := src.ReadFrame(-1); !errors.Is(err, ErrFrameOutOfRange) {
		t.Errorf("ReadFrame(-1) error = %v, want ErrFrameOutOfRange", err)
	}

	// An oracle handed this source would init from Dir().
	if src.Dir() != "" {
		t.Errorf("Dir() = %q before SetDir", src.Dir())
	}
	src.SetDir("/tmp/extracted")
	if src.Dir() != "/tmp/extracted" {
		t.Errorf("Dir() = %q, want /tmp/extracted", src.Dir())
	}
}

func TestOpenExtractedDirectory(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV image I/O")
	}

	dir := t.TempDir()
	frame := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()

	for i := 0; i < 4; i++ {
		path := filepath.Join(dir, fmt.Sprintf(FramePattern, i))
		if ok := gocv.IMWrite(path, frame); !ok {
			t.Fatalf("write still %d", i)
		}
	}

	src, err := Open(dir, 24)
	if err != nil {
		t.Fatalf("Open error = %v", err)
	}
	defer src.Close()

	meta := src.Meta()
	if meta.FrameCount != 4 {
		t.Errorf("FrameCount = %d, want 4", meta.FrameCount)
	}
	if meta.FPS != 24 {
		t.Errorf("FPS = %v, want 24", meta.FPS)
	}
	if meta.Width != 64 || meta.Height != 48 {
		t.Errorf("dimensions = %dx%d, want 64x48", meta.Width, meta.Height)
	}

	got, err := src.ReadFrame(2)
	if err != nil {
		t.Fatalf("ReadFrame(2) error = %v", err)
	}
	got.Close()
}

func TestExtractMissingVideo(t *testing.T) {
	_, err := Extract("does/not/exist.mp4", t.TempDir(), zap.NewNop())
	if err == nil {
		t.Fatal("Extract accepted a missing video")
	}
}

func TestOpenEmptyDirectory(t *testing.T) {
	if _, err := Open(t.TempDir(), 30); err == nil {
		t.Fatal("Open accepted an empty directory")
	}
}
