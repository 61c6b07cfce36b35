package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Branches table - one row per restaurant location
		`CREATE TABLE IF NOT EXISTS branches (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			address TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Users table - dashboard accounts scoped to a branch
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL CHECK(role IN ('admin', 'staff')),
			branch_id TEXT REFERENCES branches(id) ON DELETE SET NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Cameras table - capture sources, device index or RTSP URL
		`CREATE TABLE IF NOT EXISTS cameras (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			source TEXT NOT NULL,
			branch_id TEXT REFERENCES branches(id) ON DELETE CASCADE,
			enabled INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Zones table - fractional rectangles drawn on a camera view
		`CREATE TABLE IF NOT EXISTS zones (
			id TEXT PRIMARY KEY,
			camera_id TEXT NOT NULL REFERENCES cameras(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			x1 REAL NOT NULL,
			y1 REAL NOT NULL,
			x2 REAL NOT NULL,
			y2 REAL NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Billing log - per-item observations, accumulated per window
		`CREATE TABLE IF NOT EXISTS billing_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			camera_id TEXT NOT NULL,
			zone TEXT NOT NULL,
			item TEXT NOT NULL,
			qty INTEGER NOT NULL,
			created_at DATETIME NOT NULL
		)`,

		// Events log - alerts, deduplicated per window
		`CREATE TABLE IF NOT EXISTS events_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			camera_id TEXT NOT NULL,
			zone TEXT NOT NULL,
			type TEXT NOT NULL,
			message TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,

		// Customer log - remembered visitors with their embeddings
		`CREATE TABLE IF NOT EXISTS customer_log (
			id TEXT PRIMARY KEY,
			embedding TEXT NOT NULL,
			visit_count INTEGER NOT NULL,
			sightings INTEGER NOT NULL,
			first_seen DATETIME NOT NULL,
			last_seen DATETIME NOT NULL
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_cameras_branch_id ON cameras(branch_id)`,
		`CREATE INDEX IF NOT EXISTS idx_zones_camera_id ON zones(camera_id)`,
		`CREATE INDEX IF NOT EXISTS idx_billing_log_lookup ON billing_log(camera_id, zone, item, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_events_log_lookup ON events_log(camera_id, zone, type, created_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
