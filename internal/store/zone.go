package store

import (
	"database/sql"
	"errors"

	"github.com/sotocloud/sotovision/internal/zone"
)

// ZoneRepository provides CRUD operations for zones.
type ZoneRepository struct {
	db *sql.DB
}

// Zones returns the zone repository for this store.
func (s *Store) Zones() *ZoneRepository {
	return &ZoneRepository{db: s.db}
}

// Create inserts a new zone. The zone must validate.
func (r *ZoneRepository) Create(z *zone.Zone) error {
	if err := z.Validate(); err != nil {
		return err
	}
	_, err := r.db.Exec(
		`INSERT INTO zones (id, camera_id, name, type, x1, y1, x2, y2)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		z.ID, z.CameraID, z.Name, string(z.Type),
		z.Coords[0], z.Coords[1], z.Coords[2], z.Coords[3],
	)
	return err
}

// GetByID retrieves a zone by its ID.
func (r *ZoneRepository) GetByID(id string) (*zone.Zone, error) {
	z := &zone.Zone{}
	var typ string
	err := r.db.QueryRow(
		`SELECT id, camera_id, name, type, x1, y1, x2, y2 FROM zones WHERE id = ?`, id,
	).Scan(&z.ID, &z.CameraID, &z.Name, &typ,
		&z.Coords[0], &z.Coords[1], &z.Coords[2], &z.Coords[3])
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	z.Type = zone.Type(typ)
	return z, nil
}

// ListByCamera retrieves the zones of one camera in creation order.
// The order matters: the first zone containing a detection claims it.
func (r *ZoneRepository) ListByCamera(cameraID string) ([]zone.Zone, error) {
	rows, err := r.db.Query(
		`SELECT id, camera_id, name, type, x1, y1, x2, y2
		 FROM zones WHERE camera_id = ? ORDER BY created_at, id`, cameraID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var zones []zone.Zone
	for rows.Next() {
		var z zone.Zone
		var typ string
		if err := rows.Scan(&z.ID, &z.CameraID, &z.Name, &typ,
			&z.Coords[0], &z.Coords[1], &z.Coords[2], &z.Coords[3]); err != nil {
			return nil, err
		}
		z.Type = zone.Type(typ)
		zones = append(zones, z)
	}
	return zones, rows.Err()
}

// Update updates an existing zone. The zone must validate.
func (r *ZoneRepository) Update(z *zone.Zone) error {
	if err := z.Validate(); err != nil {
		return err
	}
	result, err := r.db.Exec(
		`UPDATE zones SET name = ?, type = ?, x1 = ?, y1 = ?, x2 = ?, y2 = ? WHERE id = ?`,
		z.Name, string(z.Type), z.Coords[0], z.Coords[1], z.Coords[2], z.Coords[3], z.ID,
	)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

// Delete removes a zone by its ID.
func (r *ZoneRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM zones WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkAffected(result)
}
