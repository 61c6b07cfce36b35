package store

import (
	"database/sql"
	"errors"
	"time"
)

// Branch represents one restaurant location.
type Branch struct {
	ID        string
	Name      string
	Address   string
	CreatedAt time.Time
}

// BranchRepository provides CRUD operations for branches.
type BranchRepository struct {
	db *sql.DB
}

// Branches returns the branch repository for this store.
func (s *Store) Branches() *BranchRepository {
	return &BranchRepository{db: s.db}
}

// Create inserts a new branch into the database.
func (r *BranchRepository) Create(b *Branch) error {
	b.CreatedAt = time.Now()
	_, err := r.db.Exec(
		`INSERT INTO branches (id, name, address, created_at) VALUES (?, ?, ?, ?)`,
		b.ID, b.Name, b.Address, b.CreatedAt,
	)
	return err
}

// GetByID retrieves a branch by its ID.
func (r *BranchRepository) GetByID(id string) (*Branch, error) {
	b := &Branch{}
	err := r.db.QueryRow(
		`SELECT id, name, address, created_at FROM branches WHERE id = ?`, id,
	).Scan(&b.ID, &b.Name, &b.Address, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

// List retrieves all branches ordered by name.
func (r *BranchRepository) List() ([]*Branch, error) {
	rows, err := r.db.Query(`SELECT id, name, address, created_at FROM branches ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var branches []*Branch
	for rows.Next() {
		b := &Branch{}
		if err := rows.Scan(&b.ID, &b.Name, &b.Address, &b.CreatedAt); err != nil {
			return nil, err
		}
		branches = append(branches, b)
	}
	return branches, rows.Err()
}

// Update updates an existing branch.
func (r *BranchRepository) Update(b *Branch) error {
	result, err := r.db.Exec(
		`UPDATE branches SET name = ?, address = ? WHERE id = ?`,
		b.Name, b.Address, b.ID,
	)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

// Delete removes a branch by its ID.
func (r *BranchRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM branches WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

func checkAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
