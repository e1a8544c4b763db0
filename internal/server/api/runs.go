// Package api provides the HTTP API handlers for segmentation runs.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jmuozan/vidseg/internal/app"
	"github.com/jmuozan/vidseg/internal/propagate"
	"github.com/jmuozan/vidseg/internal/store"
)

// RunsHandler handles HTTP requests for run resources.
type RunsHandler struct {
	store *store.Store
	app   *app.App
	obs   propagate.Observer
	log   *zap.Logger
}

// NewRunsHandler creates a new RunsHandler. The observer receives
// progress events from runs started over the API and may be nil.
func NewRunsHandler(s *store.Store, a *app.App, obs propagate.Observer, log *zap.Logger) *RunsHandler {
	return &RunsHandler{store: s, app: a, obs: obs, log: log}
}

// ServeHTTP routes collection and item requests.
// Expected paths: /api/runs or /api/runs/{id}
func (h *RunsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/runs")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	id := path
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Request and response types

type createRunRequest struct {
	VideoPath string `json:"video_path"`
	Keyframes []int  `json:"keyframes,omitempty"`
	Auto      bool   `json:"auto,omitempty"`
}

type runResponse struct {
	ID         string  `json:"id"`
	VideoPath  string  `json:"video_path"`
	OutputDir  string  `json:"output_dir"`
	Status     string  `json:"status"`
	FrameCount int     `json:"frame_count"`
	FPS        float64 `json:"fps"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
}

type segmentResponse struct {
	StartIdx int    `json:"start_idx"`
	EndIdx   int    `json:"end_idx"`
	Method   string `json:"method"`
}

type runDetailResponse struct {
	runResponse
	Segments []segmentResponse `json:"segments"`
}

func toRunResponse(run *store.Run) runResponse {
	return runResponse{
		ID:         run.ID,
		VideoPath:  run.VideoPath,
		OutputDir:  run.OutputDir,
		Status:     string(run.Status),
		FrameCount: run.FrameCount,
		FPS:        run.FPS,
		Width:      run.Width,
		Height:     run.Height,
		CreatedAt:  run.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  run.UpdatedAt.Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (h *RunsHandler) list(w http.ResponseWriter, r *http.Request) {
	runs, err := h.store.Runs().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	response := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		response = append(response, toRunResponse(run))
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *RunsHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	run, err := h.store.Runs().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get run")
		return
	}

	segments, err := h.store.Segments().ListForRun(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list segments")
		return
	}

	detail := runDetailResponse{
		runResponse: toRunResponse(run),
		Segments:    make([]segmentResponse, 0, len(segments)),
	}
	for _, seg := range segments {
		detail.Segments = append(detail.Segments, segmentResponse{
			StartIdx: seg.StartIdx,
			EndIdx:   seg.EndIdx,
			Method:   seg.Method,
		})
	}
	writeJSON(w, http.StatusOK, detail)
}

// create starts a run in the background and returns it immediately
// with status created.
func (h *RunsHandler) create(w http.ResponseWriter, r *http.Request) {
	if h.app == nil {
		writeError(w, http.StatusServiceUnavailable, "Processing not available")
		return
	}

	var req createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.VideoPath == "" {
		writeError(w, http.StatusBadRequest, "video_path is required")
		return
	}

	run, err := h.app.NewRun(req.VideoPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create run")
		return
	}

	go func() {
		_, err := h.app.ProcessRun(context.Background(), run, app.RunOptions{
			VideoPath: req.VideoPath,
			Keyframes: req.Keyframes,
			Auto:      req.Auto,
			Observer:  h.obs,
		})
		if err != nil {
			h.log.Error("run failed",
				zap.String("run_id", run.ID),
				zap.Error(err))
		}
	}()

	writeJSON(w, http.StatusAccepted, toRunResponse(run))
}
