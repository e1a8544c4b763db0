package store

import (
	"database/sql"

	"github.com/jmuozan/vidseg/internal/annotate"
)

// AnnotationRepository persists the scene annotation record: the points
// submitted to the oracle per run and frame.
type AnnotationRepository struct {
	db *sql.DB
}

// Annotations returns the annotation repository for this store.
func (s *Store) Annotations() *AnnotationRepository {
	return &AnnotationRepository{db: s.db}
}

// Save stores the points submitted at a frame, replacing any earlier
// record for that frame.
func (r *AnnotationRepository) Save(runID string, frameIdx int, points []annotate.Point) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`DELETE FROM annotations WHERE run_id = ? AND frame_idx = ?`,
		runID, frameIdx,
	); err != nil {
		return err
	}

	for _, p := range points {
		if _, err := tx.Exec(
			`INSERT INTO annotations (run_id, frame_idx, x, y, label) VALUES (?, ?, ?, ?, ?)`,
			runID, frameIdx, p.X, p.Y, int(p.Label),
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetForFrame returns the points recorded at a frame.
func (r *AnnotationRepository) GetForFrame(runID string, frameIdx int) ([]annotate.Point, error) {
	rows, err := r.db.Query(
		`SELECT x, y, label FROM annotations WHERE run_id = ? AND frame_idx = ? ORDER BY id`,
		runID, frameIdx,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPoints(rows)
}

// Plan reconstructs the full annotation plan for a run.
func (r *AnnotationRepository) Plan(runID string) (annotate.Plan, error) {
	rows, err := r.db.Query(
		`SELECT frame_idx, x, y, label FROM annotations WHERE run_id = ? ORDER BY frame_idx, id`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	plan := make(annotate.Plan)
	for rows.Next() {
		var frameIdx, x, y, label int
		if err := rows.Scan(&frameIdx, &x, &y, &label); err != nil {
			return nil, err
		}
		plan[frameIdx] = append(plan[frameIdx], annotate.Point{X: x, Y: y, Label: annotate.Label(label)})
	}
	return plan, rows.Err()
}

func scanPoints(rows *sql.Rows) ([]annotate.Point, error) {
	var points []annotate.Point
	for rows.Next() {
		var x, y, label int
		if err := rows.Scan(&x, &y, &label); err != nil {
			return nil, err
		}
		points = append(points, annotate.Point{X: x, Y: y, Label: annotate.Label(label)})
	}
	return points, rows.Err()
}
