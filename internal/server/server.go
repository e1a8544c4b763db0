// Package server provides the HTTP interface for browsing and starting
// segmentation runs.
package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jmuozan/vidseg/internal/app"
	"github.com/jmuozan/vidseg/internal/propagate"
	"github.com/jmuozan/vidseg/internal/server/api"
	"github.com/jmuozan/vidseg/internal/store"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	App       *app.App
	Log       *zap.Logger
}

// Server is the HTTP server for the segmentation pipeline.
type Server struct {
	config Config
	mux    *http.ServeMux
	hub    *ProgressHub
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.Log == nil {
		config.Log = zap.NewNop()
	}
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		hub:    NewProgressHub(config.Log),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// Hub returns the progress hub so the pipeline can publish events.
func (s *Server) Hub() *ProgressHub {
	return s.hub
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Store != nil {
		var obs propagate.Observer = s.hub
		runsHandler := api.NewRunsHandler(s.config.Store, s.config.App, obs, s.config.Log)
		annotationsHandler := api.NewAnnotationsHandler(s.config.Store)

		streamHandler := NewStreamHandler(s.config.Store, s.config.Log)

		// Route /api/runs/{id}/annotations and /api/runs/{id}/stream to
		// their handlers, everything else under /api/runs to the runs
		// handler.
		runsRouter := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case strings.HasSuffix(r.URL.Path, "/annotations"):
				annotationsHandler.ServeHTTP(w, r)
			case strings.HasSuffix(r.URL.Path, "/stream"):
				streamHandler.ServeHTTP(w, r)
			default:
				runsHandler.ServeHTTP(w, r)
			}
		})

		s.mux.Handle("/api/runs", runsRouter)
		s.mux.Handle("/api/runs/", runsRouter)
	}

	s.mux.Handle("/api/progress", s.hub)

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status": "ok",
		"uptime": uptime.String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}
