package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/sotocloud/sotovision/internal/alert"
)

// DedupeWindow is how long a repeated alert for the same camera, zone
// and type is suppressed after being written.
const DedupeWindow = time.Minute

// EventRepository appends alerts with windowed deduplication.
type EventRepository struct {
	db     *sql.DB
	window time.Duration
}

// Events returns the event log repository for this store.
func (s *Store) Events() *EventRepository {
	return &EventRepository{db: s.db, window: DedupeWindow}
}

// Append writes an alert unless the same camera, zone and type was
// already logged within the dedupe window. It reports whether a row
// was written. The alert's own timestamp drives the window comparison.
func (r *EventRepository) Append(a alert.Alert) (bool, error) {
	var createdAt time.Time
	err := r.db.QueryRow(
		`SELECT created_at FROM events_log
		 WHERE camera_id = ? AND zone = ? AND type = ?
		 ORDER BY created_at DESC LIMIT 1`,
		a.CameraID, a.Zone, a.Type,
	).Scan(&createdAt)

	switch {
	case err == nil && a.Timestamp.Sub(createdAt) < r.window:
		return false, nil
	case err == nil || errors.Is(err, sql.ErrNoRows):
		_, err = r.db.Exec(
			`INSERT INTO events_log (camera_id, zone, type, message, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			a.CameraID, a.Zone, a.Type, a.Message, a.Timestamp,
		)
		return err == nil, err
	default:
		return false, err
	}
}

// AppendAll writes a batch of alerts, stopping at the first error.
// It returns how many rows were actually written.
func (r *EventRepository) AppendAll(alerts []alert.Alert) (int, error) {
	written := 0
	for _, a := range alerts {
		ok, err := r.Append(a)
		if err != nil {
			return written, err
		}
		if ok {
			written++
		}
	}
	return written, nil
}

// ListRecent retrieves the newest alerts for a camera, newest first.
func (r *EventRepository) ListRecent(cameraID string, limit int) ([]alert.Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(
		`SELECT camera_id, zone, type, message, created_at FROM events_log
		 WHERE camera_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		cameraID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []alert.Alert
	for rows.Next() {
		var a alert.Alert
		if err := rows.Scan(&a.CameraID, &a.Zone, &a.Type, &a.Message, &a.Timestamp); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}
