package store

import (
	"database/sql"
	"errors"
	"time"
)

// User roles.
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// User represents a dashboard account. Staff accounts are scoped to a
// branch; admins see everything.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	Role         string
	BranchID     string
	CreatedAt    time.Time
}

// UserRepository provides CRUD operations for users.
type UserRepository struct {
	db *sql.DB
}

// Users returns the user repository for this store.
func (s *Store) Users() *UserRepository {
	return &UserRepository{db: s.db}
}

// Create inserts a new user into the database.
func (r *UserRepository) Create(u *User) error {
	u.CreatedAt = time.Now()
	_, err := r.db.Exec(
		`INSERT INTO users (id, username, password_hash, role, branch_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.PasswordHash, u.Role, nullable(u.BranchID), u.CreatedAt,
	)
	return err
}

// GetByUsername retrieves a user by username.
func (r *UserRepository) GetByUsername(username string) (*User, error) {
	u := &User{}
	var branchID sql.NullString
	err := r.db.QueryRow(
		`SELECT id, username, password_hash, role, branch_id, created_at
		 FROM users WHERE username = ?`, username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &branchID, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.BranchID = branchID.String
	return u, nil
}

// List retrieves all users ordered by username.
func (r *UserRepository) List() ([]*User, error) {
	rows, err := r.db.Query(
		`SELECT id, username, password_hash, role, branch_id, created_at
		 FROM users ORDER BY username`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u := &User{}
		var branchID sql.NullString
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &branchID, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.BranchID = branchID.String
		users = append(users, u)
	}
	return users, rows.Err()
}

// Delete removes a user by its ID.
func (r *UserRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
