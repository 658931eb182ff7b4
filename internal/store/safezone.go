package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/cairnhealth/cairn/internal/model"
)

type SafeZoneStore struct {
	db *sql.DB
}

func NewSafeZoneStore(db *sql.DB) *SafeZoneStore {
	return &SafeZoneStore{db: db}
}

const zoneColumns = `id, patient_id, name, address, latitude, longitude, radius_m, is_active, created_at, updated_at`

func (s *SafeZoneStore) Create(patientID int64, name, address string, center model.Coordinate, radius float64) (*model.SafeZone, error) {
	if radius <= 0 {
		radius = model.DefaultZoneRadius
	}
	result, err := s.db.Exec(
		`INSERT INTO safe_zones (patient_id, name, address, latitude, longitude, radius_m)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		patientID, name, address, center.Lat, center.Lon, radius,
	)
	if err != nil {
		return nil, fmt.Errorf("create safe zone: %w", err)
	}
	id, _ := result.LastInsertId()
	return s.GetByID(id)
}

func (s *SafeZoneStore) GetByID(id int64) (*model.SafeZone, error) {
	row := s.db.QueryRow(`SELECT `+zoneColumns+` FROM safe_zones WHERE id = ?`, id)
	var z model.SafeZone
	var active int
	err := row.Scan(&z.ID, &z.PatientID, &z.Name, &z.Address, &z.Center.Lat, &z.Center.Lon,
		&z.Radius, &active, &z.CreatedAt, &z.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get safe zone: %w", err)
	}
	z.IsActive = active != 0
	return &z, nil
}

func (s *SafeZoneStore) ListByPatient(patientID int64) ([]model.SafeZone, error) {
	rows, err := s.db.Query(
		`SELECT `+zoneColumns+` FROM safe_zones WHERE patient_id = ? ORDER BY id`, patientID)
	if err != nil {
		return nil, fmt.Errorf("list safe zones: %w", err)
	}
	defer rows.Close()
	return scanZones(rows)
}

// ListActiveByPatient returns a patient's active zones in creation order.
// The evaluator relies on this ordering for its first-match containment rule.
func (s *SafeZoneStore) ListActiveByPatient(patientID int64) ([]model.SafeZone, error) {
	rows, err := s.db.Query(
		`SELECT `+zoneColumns+` FROM safe_zones WHERE patient_id = ? AND is_active = 1 ORDER BY id`,
		patientID)
	if err != nil {
		return nil, fmt.Errorf("list active safe zones: %w", err)
	}
	defer rows.Close()
	return scanZones(rows)
}

// ZoneUpdate carries optional field updates; nil fields are left unchanged.
type ZoneUpdate struct {
	Name     *string
	Address  *string
	Center   *model.Coordinate
	Radius   *float64
	IsActive *bool
}

func (s *SafeZoneStore) Update(id int64, upd ZoneUpdate) (*model.SafeZone, error) {
	zone, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if zone == nil {
		return nil, nil
	}

	if upd.Name != nil {
		zone.Name = *upd.Name
	}
	if upd.Address != nil {
		zone.Address = *upd.Address
	}
	if upd.Center != nil {
		zone.Center = *upd.Center
	}
	if upd.Radius != nil {
		zone.Radius = *upd.Radius
	}
	if upd.IsActive != nil {
		zone.IsActive = *upd.IsActive
	}

	active := 0
	if zone.IsActive {
		active = 1
	}
	_, err = s.db.Exec(
		`UPDATE safe_zones SET name = ?, address = ?, latitude = ?, longitude = ?, radius_m = ?,
		 is_active = ?, updated_at = ? WHERE id = ?`,
		zone.Name, zone.Address, zone.Center.Lat, zone.Center.Lon, zone.Radius, active,
		time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update safe zone: %w", err)
	}
	return s.GetByID(id)
}

// Delete removes a zone. Returns false if no zone had that id.
func (s *SafeZoneStore) Delete(id int64) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM safe_zones WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete safe zone: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

func scanZones(rows *sql.Rows) ([]model.SafeZone, error) {
	var zones []model.SafeZone
	for rows.Next() {
		var z model.SafeZone
		var active int
		if err := rows.Scan(&z.ID, &z.PatientID, &z.Name, &z.Address, &z.Center.Lat, &z.Center.Lon,
			&z.Radius, &active, &z.CreatedAt, &z.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan safe zone: %w", err)
		}
		z.IsActive = active != 0
		zones = append(zones, z)
	}
	return zones, rows.Err()
}
