package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/jmuozan/vidseg/internal/app"
	"github.com/jmuozan/vidseg/internal/config"
	"github.com/jmuozan/vidseg/internal/server"
	"github.com/jmuozan/vidseg/internal/store"
)

// writeClip encodes a short synthetic video with a drifting white block.
func writeClip(t *testing.T, path string, frames, w, h int) {
	t.Helper()

	writer, err := gocv.VideoWriterFile(path, "mp4v", 12, w, h, true)
	if err != nil {
		t.Fatalf("failed to open video writer: %v", err)
	}
	defer writer.Close()

	for i := 0; i < frames; i++ {
		img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(60, 60, 60, 0), h, w, gocv.MatTypeCV8UC3)
		x := 6 + i
		for dy := 0; dy < 12; dy++ {
			for dx := 0; dx < 12; dx++ {
				if x+dx < w && 8+dy < h {
					img.SetUCharAt3(8+dy, x+dx, 0, 255)
					img.SetUCharAt3(8+dy, x+dx, 1, 255)
					img.SetUCharAt3(8+dy, x+dx, 2, 255)
				}
			}
		}
		if err := writer.Write(img); err != nil {
			img.Close()
			t.Fatalf("failed to write frame %d: %v", i, err)
		}
		img.Close()
	}
}

func TestE2E_CompleteWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	tmpDir := t.TempDir()

	s, err := store.New(filepath.Join(tmpDir, "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	cfg := &config.Config{
		OutputDir:        filepath.Join(tmpDir, "out"),
		KeyframeInterval: 10,
		AutoKeyframes:    3,
		Passes:           1,
		ObjectID:         1,
		Device:           "cuda",
		FallbackDevice:   "cpu",
	}
	application := app.New(cfg, s, zap.NewNop())

	srv := server.New(server.Config{Store: s, App: application})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := ts.Client()

	videoPath := filepath.Join(tmpDir, "clip.mp4")
	writeClip(t, videoPath, 30, 96, 64)

	var runID string

	t.Run("ProcessVideo", func(t *testing.T) {
		run, res, err := application.Process(context.Background(), app.RunOptions{
			VideoPath: videoPath,
		})
		if err != nil {
			t.Fatalf("Process() error = %v", err)
		}
		runID = run.ID

		if run.Status != store.RunStatusDone {
			t.Errorf("run status = %q, want done", run.Status)
		}
		if res.MaskedFrames == 0 {
			t.Error("expected masked frames")
		}
	})

	t.Run("ListRunsOverAPI", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/runs")
		if err != nil {
			t.Fatalf("GET /api/runs error = %v", err)
		}
		defer resp.Body.Close()

		var runs []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		}
		json.NewDecoder(resp.Body).Decode(&runs)
		if len(runs) != 1 || runs[0].ID != runID {
			t.Fatalf("unexpected runs: %+v", runs)
		}
		if runs[0].Status != "done" {
			t.Errorf("run status = %s, want done", runs[0].Status)
		}
	})

	t.Run("RunDetailHasSegments", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/runs/" + runID)
		if err != nil {
			t.Fatalf("GET run detail error = %v", err)
		}
		defer resp.Body.Close()

		var detail struct {
			FrameCount int `json:"frame_count"`
			Segments   []struct {
				Method string `json:"method"`
			} `json:"segments"`
		}
		json.NewDecoder(resp.Body).Decode(&detail)
		if detail.FrameCount != 30 {
			t.Errorf("frame_count = %d, want 30", detail.FrameCount)
		}
		// Interval 10 over 30 frames: keyframes 0, 10, 20, 29.
		if len(detail.Segments) != 4 {
			t.Errorf("len(segments) = %d, want 4", len(detail.Segments))
		}
		for _, seg := range detail.Segments {
			if seg.Method != "propagated" {
				t.Errorf("segment method = %s, want propagated", seg.Method)
			}
		}
	})

	t.Run("AnnotationsRecorded", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/runs/" + runID + "/annotations")
		if err != nil {
			t.Fatalf("GET annotations error = %v", err)
		}
		defer resp.Body.Close()

		var frames []struct {
			Frame  int              `json:"frame"`
			Points []map[string]int `json:"points"`
		}
		json.NewDecoder(resp.Body).Decode(&frames)
		if len(frames) != 4 {
			t.Fatalf("len(annotated frames) = %d, want 4", len(frames))
		}
		// Grid prompts plus corner negatives at every keyframe.
		for _, f := range frames {
			if len(f.Points) != 9 {
				t.Errorf("frame %d has %d points, want 9", f.Frame, len(f.Points))
			}
		}
	})

	t.Run("APIStillWorks", func(t *testing.T) {
		resp, _ := client.Get(ts.URL + "/api/health")
		if resp.StatusCode != http.StatusOK {
			t.Errorf("health check failed after pipeline run")
		}
		resp.Body.Close()
	})
}
