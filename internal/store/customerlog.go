package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/sotocloud/sotovision/internal/identity"
)

// CustomerRepository persists the rolling customer set so visit counts
// survive restarts. It satisfies identity.CustomerLog.
type CustomerRepository struct {
	db *sql.DB
}

// Customers returns the customer log repository for this store.
func (s *Store) Customers() *CustomerRepository {
	return &CustomerRepository{db: s.db}
}

// SaveCustomer upserts a customer row.
func (r *CustomerRepository) SaveCustomer(c identity.Customer) error {
	emb, err := json.Marshal(c.Embedding)
	if err != nil {
		return fmt.Errorf("encode embedding: %w", err)
	}
	_, err = r.db.Exec(
		`INSERT INTO customer_log (id, embedding, visit_count, sightings, first_seen, last_seen)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			embedding = excluded.embedding,
			visit_count = excluded.visit_count,
			sightings = excluded.sightings,
			last_seen = excluded.last_seen`,
		c.ID, string(emb), c.VisitCount, c.Sightings, c.FirstSeen, c.LastSeen,
	)
	return err
}

// List retrieves all remembered customers, most recently seen first.
func (r *CustomerRepository) List() ([]identity.Customer, error) {
	rows, err := r.db.Query(
		`SELECT id, embedding, visit_count, sightings, first_seen, last_seen
		 FROM customer_log ORDER BY last_seen DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []identity.Customer
	for rows.Next() {
		var c identity.Customer
		var emb string
		if err := rows.Scan(&c.ID, &emb, &c.VisitCount, &c.Sightings, &c.FirstSeen, &c.LastSeen); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(emb), &c.Embedding); err != nil {
			return nil, fmt.Errorf("decode embedding for %s: %w", c.ID, err)
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}
