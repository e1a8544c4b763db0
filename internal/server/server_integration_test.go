package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/jmuozan/vidseg/internal/annotate"
	"github.com/jmuozan/vidseg/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testPoints(n int) []annotate.Point {
	pts := make([]annotate.Point, n)
	for i := range pts {
		pts[i] = annotate.Point{X: i * 10, Y: i * 5, Label: annotate.Positive}
	}
	return pts
}

func TestAPI_RunWorkflow(t *testing.T) {
	s := newTestStore(t)

	// Seed a finished run with segments, as the pipeline would.
	run := &store.Run{
		ID:        "run-1",
		VideoPath: "/videos/clip.mp4",
		OutputDir: "/out/run-1",
	}
	if err := s.Runs().Create(run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}
	if err := s.Runs().SetMeta("run-1", 120, 30, 640, 480); err != nil {
		t.Fatalf("failed to set meta: %v", err)
	}
	if err := s.Runs().SetStatus("run-1", store.RunStatusDone); err != nil {
		t.Fatalf("failed to set status: %v", err)
	}
	if err := s.Segments().Add("run-1", 0, 90, "propagated"); err != nil {
		t.Fatalf("failed to add segment: %v", err)
	}
	if err := s.Segments().Add("run-1", 90, 120, "interpolated"); err != nil {
		t.Fatalf("failed to add segment: %v", err)
	}

	srv := New(Config{Store: s})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := ts.Client()

	// 1. List runs
	resp, err := client.Get(ts.URL + "/api/runs")
	if err != nil {
		t.Fatalf("GET /api/runs error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /api/runs status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var runs []struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	json.NewDecoder(resp.Body).Decode(&runs)
	resp.Body.Close()
	if len(runs) != 1 || runs[0].ID != "run-1" {
		t.Fatalf("unexpected run list: %+v", runs)
	}
	if runs[0].Status != "done" {
		t.Errorf("run status = %s, want done", runs[0].Status)
	}

	// 2. Get run detail with segments
	resp, err = client.Get(ts.URL + "/api/runs/run-1")
	if err != nil {
		t.Fatalf("GET /api/runs/run-1 error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /api/runs/run-1 status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var detail struct {
		ID         string `json:"id"`
		FrameCount int    `json:"frame_count"`
		Segments   []struct {
			StartIdx int    `json:"start_idx"`
			EndIdx   int    `json:"end_idx"`
			Method   string `json:"method"`
		} `json:"segments"`
	}
	json.NewDecoder(resp.Body).Decode(&detail)
	resp.Body.Close()
	if detail.FrameCount != 120 {
		t.Errorf("frame_count = %d, want 120", detail.FrameCount)
	}
	if len(detail.Segments) != 2 {
		t.Fatalf("len(segments) = %d, want 2", len(detail.Segments))
	}
	if detail.Segments[0].Method != "propagated" || detail.Segments[1].Method != "interpolated" {
		t.Errorf("unexpected segment methods: %+v", detail.Segments)
	}

	// 3. Unknown run
	resp, _ = client.Get(ts.URL + "/api/runs/missing")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET /api/runs/missing status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
	resp.Body.Close()
}

func TestAPI_Annotations(t *testing.T) {
	s := newTestStore(t)

	if err := s.Runs().Create(&store.Run{ID: "run-1", VideoPath: "/v.mp4", OutputDir: "/out"}); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}
	if err := s.Annotations().Save("run-1", 0, testPoints(3)); err != nil {
		t.Fatalf("failed to save annotations: %v", err)
	}
	if err := s.Annotations().Save("run-1", 42, testPoints(2)); err != nil {
		t.Fatalf("failed to save annotations: %v", err)
	}

	srv := New(Config{Store: s})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/api/runs/run-1/annotations")
	if err != nil {
		t.Fatalf("GET annotations error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET annotations status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var frames []struct {
		Frame  int `json:"frame"`
		Points []struct {
			X     int `json:"x"`
			Y     int `json:"y"`
			Label int `json:"label"`
		} `json:"points"`
	}
	json.NewDecoder(resp.Body).Decode(&frames)
	if len(frames) != 2 {
		t.Fatalf("len(frames) = %d, want 2", len(frames))
	}
	if frames[0].Frame != 0 || len(frames[0].Points) != 3 {
		t.Errorf("unexpected first frame: %+v", frames[0])
	}
	if frames[1].Frame != 42 || len(frames[1].Points) != 2 {
		t.Errorf("unexpected second frame: %+v", frames[1])
	}
}

func TestAPI_CreateRunWithoutProcessor(t *testing.T) {
	s := newTestStore(t)

	// No app configured: POST is rejected before touching the store.
	srv := New(Config{Store: s})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := ts.Client().Post(ts.URL+"/api/runs", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /api/runs error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("POST status = %d, want %d", resp.StatusCode, http.StatusServiceUnavailable)
	}
}

func TestAPI_StreamRequiresFinishedRun(t *testing.T) {
	s := newTestStore(t)

	if err := s.Runs().Create(&store.Run{ID: "run-1", VideoPath: "/v.mp4", OutputDir: "/out"}); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	srv := New(Config{Store: s})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	cases := []struct {
		url  string
		want int
	}{
		{"/api/runs/missing/stream", http.StatusNotFound},
		{"/api/runs/run-1/stream", http.StatusConflict},
		{"/api/runs/run-1/stream?kind=mask", http.StatusConflict},
	}
	for _, tc := range cases {
		resp, err := ts.Client().Get(ts.URL + tc.url)
		if err != nil {
			t.Fatalf("GET %s error = %v", tc.url, err)
		}
		if resp.StatusCode != tc.want {
			t.Errorf("GET %s status = %d, want %d", tc.url, resp.StatusCode, tc.want)
		}
		resp.Body.Close()
	}
}

func TestAPI_HealthCheck(t *testing.T) {
	srv := New(Config{})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var health struct {
		Status string `json:"status"`
		Uptime string `json:"uptime"`
	}
	json.NewDecoder(resp.Body).Decode(&health)

	if health.Status != "ok" {
		t.Errorf("status = %s, want ok", health.Status)
	}
	if health.Uptime == "" {
		t.Error("expected uptime in response")
	}
}
