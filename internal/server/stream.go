package server

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/jmuozan/vidseg/internal/render"
	"github.com/jmuozan/vidseg/internal/store"
)

// StreamHandler replays a finished run's materialized stills as an
// MJPEG stream at the run's frame rate, served at
// /api/runs/{id}/stream. The kind query parameter selects overlays
// (default) or masks.
type StreamHandler struct {
	store *store.Store
	log   *zap.Logger
}

// NewStreamHandler creates a new StreamHandler backed by the store.
func NewStreamHandler(st *store.Store, log *zap.Logger) *StreamHandler {
	return &StreamHandler{store: st, log: log}
}

// ServeHTTP streams MJPEG frames to connected clients.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Path shape: /api/runs/{id}/stream
	path := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	runID := strings.TrimSuffix(path, "/stream")
	if runID == "" || runID == path {
		http.Error(w, "Missing run id", http.StatusBadRequest)
		return
	}

	run, err := h.store.Runs().GetByID(runID)
	if err != nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	if run.Status != store.RunStatusDone {
		http.Error(w, "Run has no materialized results yet", http.StatusConflict)
		return
	}

	kind := r.URL.Query().Get("kind")
	if kind == "" {
		kind = "overlay"
	}

	interval := time.Second / 10
	if run.FPS > 0 {
		interval = time.Duration(float64(time.Second) / run.FPS)
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for idx := 0; idx < run.FrameCount; idx++ {
		select {
		case <-r.Context().Done():
			return
		default:
		}

		buf, err := h.frameJPEG(run, kind, idx)
		if err != nil {
			// Masks are sparse when a frame had no reference; skip.
			continue
		}

		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(buf))
		w.Write(buf)
		fmt.Fprintf(w, "\r\n")

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}

		time.Sleep(interval)
	}
}

// frameJPEG loads one still as JPEG bytes. Overlay stills are already
// JPEG; mask stills are PNG and get re-encoded.
func (h *StreamHandler) frameJPEG(run *store.Run, kind string, idx int) ([]byte, error) {
	if kind == "mask" {
		path := filepath.Join(run.OutputDir, "masks", fmt.Sprintf(render.MaskPattern, idx))
		img := gocv.IMRead(path, gocv.IMReadGrayScale)
		if img.Empty() {
			return nil, fmt.Errorf("no mask for frame %d", idx)
		}
		defer img.Close()

		buf, err := gocv.IMEncode(".jpg", img)
		if err != nil {
			return nil, err
		}
		defer buf.Close()
		out := make([]byte, buf.Len())
		copy(out, buf.GetBytes())
		return out, nil
	}

	path := filepath.Join(run.OutputDir, "overlays", fmt.Sprintf(render.OverlayPattern, idx))
	return os.ReadFile(path)
}
