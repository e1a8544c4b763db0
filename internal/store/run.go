package store

import (
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// RunStatus represents the lifecycle state of a segmentation run.
type RunStatus string

const (
	// RunStatusCreated means the run row exists but processing has not
	// started.
	RunStatusCreated RunStatus = "created"
	// RunStatusProcessing means the pipeline is working on the run.
	RunStatusProcessing RunStatus = "processing"
	// RunStatusDone means the run finished and its outputs exist.
	RunStatusDone RunStatus = "done"
	// RunStatusFailed means the run aborted.
	RunStatusFailed RunStatus = "failed"
)

// Run represents a segmentation run stored in the database.
type Run struct {
	ID         string
	VideoPath  string
	OutputDir  string
	Status     RunStatus
	FrameCount int
	FPS        float64
	Width      int
	Height     int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// RunRepository provides CRUD operations for runs.
type RunRepository struct {
	db *sql.DB
}

// Runs returns the run repository for this store.
func (s *Store) Runs() *RunRepository {
	return &RunRepository{db: s.db}
}

// Create inserts a new run into the database.
func (r *RunRepository) Create(run *Run) error {
	now := time.Now()
	run.CreatedAt = now
	run.UpdatedAt = now
	if run.Status == "" {
		run.Status = RunStatusCreated
	}

	_, err := r.db.Exec(
		`INSERT INTO runs (id, video_path, output_dir, status, frame_count, fps, width, height, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.VideoPath, run.OutputDir, string(run.Status),
		run.FrameCount, run.FPS, run.Width, run.Height, run.CreatedAt, run.UpdatedAt,
	)
	return err
}

// GetByID retrieves a run by its ID.
func (r *RunRepository) GetByID(id string) (*Run, error) {
	run := &Run{}
	var status string

	err := r.db.QueryRow(
		`SELECT id, video_path, output_dir, status, frame_count, fps, width, height, created_at, updated_at
		 FROM runs WHERE id = ?`,
		id,
	).Scan(&run.ID, &run.VideoPath, &run.OutputDir, &status,
		&run.FrameCount, &run.FPS, &run.Width, &run.Height, &run.CreatedAt, &run.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	run.Status = RunStatus(status)
	return run, nil
}

// List returns all runs ordered by creation time, newest first.
func (r *RunRepository) List() ([]*Run, error) {
	rows, err := r.db.Query(
		`SELECT id, video_path, output_dir, status, frame_count, fps, width, height, created_at, updated_at
		 FROM runs ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run := &Run{}
		var status string
		if err := rows.Scan(&run.ID, &run.VideoPath, &run.OutputDir, &status,
			&run.FrameCount, &run.FPS, &run.Width, &run.Height, &run.CreatedAt, &run.UpdatedAt); err != nil {
			return nil, err
		}
		run.Status = RunStatus(status)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// SetStatus updates a run's status.
func (r *RunRepository) SetStatus(id string, status RunStatus) error {
	res, err := r.db.Exec(
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now(), id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetMeta records the extracted video's metadata on a run.
func (r *RunRepository) SetMeta(id string, frameCount int, fps float64, width, height int) error {
	res, err := r.db.Exec(
		`UPDATE runs SET frame_count = ?, fps = ?, width = ?, height = ?, updated_at = ? WHERE id = ?`,
		frameCount, fps, width, height, time.Now(), id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
