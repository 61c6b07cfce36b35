package store

import (
	"database/sql"
	"errors"
	"time"
)

// Camera represents a capture source, either a local device index like
// "0" or an RTSP URL.
type Camera struct {
	ID        string
	Name      string
	Source    string
	BranchID  string
	Enabled   bool
	CreatedAt time.Time
}

// CameraRepository provides CRUD operations for cameras.
type CameraRepository struct {
	db *sql.DB
}

// Cameras returns the camera repository for this store.
func (s *Store) Cameras() *CameraRepository {
	return &CameraRepository{db: s.db}
}

// Create inserts a new camera into the database.
func (r *CameraRepository) Create(c *Camera) error {
	c.CreatedAt = time.Now()
	_, err := r.db.Exec(
		`INSERT INTO cameras (id, name, source, branch_id, enabled, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Source, nullable(c.BranchID), c.Enabled, c.CreatedAt,
	)
	return err
}

// GetByID retrieves a camera by its ID.
func (r *CameraRepository) GetByID(id string) (*Camera, error) {
	c := &Camera{}
	var branchID sql.NullString
	err := r.db.QueryRow(
		`SELECT id, name, source, branch_id, enabled, created_at FROM cameras WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Source, &branchID, &c.Enabled, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	c.BranchID = branchID.String
	return c, nil
}

// List retrieves all cameras ordered by name.
func (r *CameraRepository) List() ([]*Camera, error) {
	return r.list(`SELECT id, name, source, branch_id, enabled, created_at FROM cameras ORDER BY name`)
}

// ListByBranch retrieves the cameras of one branch ordered by name.
func (r *CameraRepository) ListByBranch(branchID string) ([]*Camera, error) {
	return r.list(
		`SELECT id, name, source, branch_id, enabled, created_at
		 FROM cameras WHERE branch_id = ? ORDER BY name`, branchID,
	)
}

// ListEnabled retrieves the cameras that should be analyzed.
func (r *CameraRepository) ListEnabled() ([]*Camera, error) {
	return r.list(
		`SELECT id, name, source, branch_id, enabled, created_at
		 FROM cameras WHERE enabled = 1 ORDER BY name`,
	)
}

func (r *CameraRepository) list(query string, args ...any) ([]*Camera, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cameras []*Camera
	for rows.Next() {
		c := &Camera{}
		var branchID sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &c.Source, &branchID, &c.Enabled, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.BranchID = branchID.String
		cameras = append(cameras, c)
	}
	return cameras, rows.Err()
}

// Update updates an existing camera.
func (r *CameraRepository) Update(c *Camera) error {
	result, err := r.db.Exec(
		`UPDATE cameras SET name = ?, source = ?, branch_id = ?, enabled = ? WHERE id = ?`,
		c.Name, c.Source, nullable(c.BranchID), c.Enabled, c.ID,
	)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

// Delete removes a camera by its ID.
func (r *CameraRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM cameras WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkAffected(result)
}
