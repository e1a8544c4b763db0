package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/jmuozan/vidseg/internal/store"
)

// AnnotationsHandler serves a run's annotation record.
type AnnotationsHandler struct {
	store *store.Store
}

// NewAnnotationsHandler creates a new AnnotationsHandler.
func NewAnnotationsHandler(s *store.Store) *AnnotationsHandler {
	return &AnnotationsHandler{store: s}
}

type annotationPoint struct {
	X     int `json:"x"`
	Y     int `json:"y"`
	Label int `json:"label"`
}

type annotationFrame struct {
	Frame  int               `json:"frame"`
	Points []annotationPoint `json:"points"`
}

// ServeHTTP handles GET /api/runs/{id}/annotations.
func (h *AnnotationsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Path shape: /api/runs/{id}/annotations
	path := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	id := strings.TrimSuffix(path, "/annotations")
	if id == "" || id == path {
		writeError(w, http.StatusBadRequest, "Missing run id")
		return
	}

	if _, err := h.store.Runs().GetByID(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get run")
		return
	}

	plan, err := h.store.Annotations().Plan(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load annotations")
		return
	}

	response := make([]annotationFrame, 0, len(plan))
	for _, f := range plan.Frames() {
		frame := annotationFrame{Frame: f, Points: make([]annotationPoint, 0, len(plan[f]))}
		for _, p := range plan[f] {
			frame.Points = append(frame.Points, annotationPoint{X: p.X, Y: p.Y, Label: int(p.Label)})
		}
		response = append(response, frame)
	}
	writeJSON(w, http.StatusOK, response)
}
