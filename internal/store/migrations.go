package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Runs table - one row per processed video
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			video_path TEXT NOT NULL,
			output_dir TEXT NOT NULL,
			status TEXT NOT NULL CHECK(status IN ('created', 'processing', 'done', 'failed')),
			frame_count INTEGER NOT NULL DEFAULT 0,
			fps REAL NOT NULL DEFAULT 0,
			width INTEGER NOT NULL DEFAULT 0,
			height INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Annotations table - the scene annotation record per run and frame
		`CREATE TABLE IF NOT EXISTS annotations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			frame_idx INTEGER NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			label INTEGER NOT NULL CHECK(label IN (0, 1))
		)`,

		// Segments table - how each keyframe segment got its masks
		`CREATE TABLE IF NOT EXISTS segments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			start_idx INTEGER NOT NULL,
			end_idx INTEGER NOT NULL,
			method TEXT NOT NULL CHECK(method IN ('propagated', 'relocated', 'interpolated')),
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_annotations_run_id ON annotations(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_annotations_frame ON annotations(run_id, frame_idx)`,
		`CREATE INDEX IF NOT EXISTS idx_segments_run_id ON segments(run_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
