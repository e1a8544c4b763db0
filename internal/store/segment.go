package store

import (
	"database/sql"
	"time"
)

// Segment records how one keyframe segment of a run obtained its masks.
type Segment struct {
	ID        int64
	RunID     string
	StartIdx  int
	EndIdx    int
	Method    string
	CreatedAt time.Time
}

// SegmentRepository persists per-segment provenance.
type SegmentRepository struct {
	db *sql.DB
}

// Segments returns the segment repository for this store.
func (s *Store) Segments() *SegmentRepository {
	return &SegmentRepository{db: s.db}
}

// Add records a finished segment.
func (r *SegmentRepository) Add(runID string, startIdx, endIdx int, method string) error {
	_, err := r.db.Exec(
		`INSERT INTO segments (run_id, start_idx, end_idx, method, created_at) VALUES (?, ?, ?, ?, ?)`,
		runID, startIdx, endIdx, method, time.Now(),
	)
	return err
}

// ListForRun returns a run's segments in frame order.
func (r *SegmentRepository) ListForRun(runID string) ([]*Segment, error) {
	rows, err := r.db.Query(
		`SELECT id, run_id, start_idx, end_idx, method, created_at
		 FROM segments WHERE run_id = ? ORDER BY start_idx`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var segments []*Segment
	for rows.Next() {
		seg := &Segment{}
		if err := rows.Scan(&seg.ID, &seg.RunID, &seg.StartIdx, &seg.EndIdx, &seg.Method, &seg.CreatedAt); err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}
