package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/sotocloud/sotovision/internal/billing"
)

// AccumulateWindow is how long a billing row keeps absorbing updates
// for the same camera, zone and item before a new row is written.
const AccumulateWindow = 2 * time.Minute

// BillingRepository appends billing records with windowed accumulation.
type BillingRepository struct {
	db     *sql.DB
	window time.Duration
}

// Billing returns the billing log repository for this store.
func (s *Store) Billing() *BillingRepository {
	return &BillingRepository{db: s.db, window: AccumulateWindow}
}

// Append writes a billing record. If a row for the same camera, zone
// and item exists within the accumulation window, its quantity and
// timestamp are updated in place instead of inserting a duplicate.
// The record's own timestamp drives the window comparison.
func (r *BillingRepository) Append(rec billing.Record) error {
	var id int64
	var createdAt time.Time
	err := r.db.QueryRow(
		`SELECT id, created_at FROM billing_log
		 WHERE camera_id = ? AND zone = ? AND item = ?
		 ORDER BY created_at DESC LIMIT 1`,
		rec.CameraID, rec.Zone, rec.Item,
	).Scan(&id, &createdAt)

	switch {
	case err == nil && rec.Timestamp.Sub(createdAt) < r.window:
		_, err = r.db.Exec(
			`UPDATE billing_log SET qty = ?, created_at = ? WHERE id = ?`,
			rec.Qty, rec.Timestamp, id,
		)
		return err
	case err == nil || errors.Is(err, sql.ErrNoRows):
		_, err = r.db.Exec(
			`INSERT INTO billing_log (camera_id, zone, item, qty, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			rec.CameraID, rec.Zone, rec.Item, rec.Qty, rec.Timestamp,
		)
		return err
	default:
		return err
	}
}

// AppendAll writes a batch of records, stopping at the first error.
func (r *BillingRepository) AppendAll(recs []billing.Record) error {
	for _, rec := range recs {
		if err := r.Append(rec); err != nil {
			return err
		}
	}
	return nil
}

// ListRecent retrieves the newest records for a camera, newest first.
func (r *BillingRepository) ListRecent(cameraID string, limit int) ([]billing.Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(
		`SELECT camera_id, zone, item, qty, created_at FROM billing_log
		 WHERE camera_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		cameraID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []billing.Record
	for rows.Next() {
		var rec billing.Record
		if err := rows.Scan(&rec.CameraID, &rec.Zone, &rec.Item, &rec.Qty, &rec.Timestamp); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
