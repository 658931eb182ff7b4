// Package mirror is the companion's local cache of hub data. Each entry is
// the last known snapshot of one collection for one patient, replaced
// wholesale on every successful remote read.
package mirror

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Collections mirrored by the companion.
const (
	CollectionSafeZones = "safeZones"
	CollectionAlerts    = "alerts"
	CollectionPersons   = "persons"
)

const schema = `
CREATE TABLE IF NOT EXISTS mirror (
	collection TEXT NOT NULL,
	patient_id INTEGER NOT NULL,
	payload TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (collection, patient_id)
)`

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("init mirror schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Replace stores v as the new snapshot for a collection, overwriting any
// previous one. Stale data is preferable to no data, so snapshots are only
// ever replaced, never expired.
func (s *Store) Replace(collection string, patientID int64, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO mirror (collection, patient_id, payload, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(collection, patient_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		collection, patientID, string(payload), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Get unmarshals the stored snapshot into out. Returns false when no
// snapshot exists for the collection and patient.
func (s *Store) Get(collection string, patientID int64, out any) (bool, error) {
	var payload string
	err := s.db.QueryRow(
		`SELECT payload FROM mirror WHERE collection = ? AND patient_id = ?`,
		collection, patientID,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get snapshot: %w", err)
	}

	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return false, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return true, nil
}

// UpdatedAt returns when the snapshot was last replaced, or the zero time
// when none exists.
func (s *Store) UpdatedAt(collection string, patientID int64) (time.Time, error) {
	var at time.Time
	err := s.db.QueryRow(
		`SELECT updated_at FROM mirror WHERE collection = ? AND patient_id = ?`,
		collection, patientID,
	).Scan(&at)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("get snapshot time: %w", err)
	}
	return at, nil
}

// Delete removes a snapshot.
func (s *Store) Delete(collection string, patientID int64) error {
	_, err := s.db.Exec(`DELETE FROM mirror WHERE collection = ? AND patient_id = ?`, collection, patientID)
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}
