package store

import (
	"database/sql"
	"fmt"

	"github.com/cairnhealth/cairn/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

const userColumns = `id, uid, type, email, first_name, last_name, phone, created_at, updated_at`

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (s *UserStore) GetByUID(uid string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE uid = ?`, uid)
	return scanUser(row)
}

func (s *UserStore) Create(uid, userType, email, firstName, lastName, phone string) (*model.User, error) {
	result, err := s.db.Exec(
		`INSERT INTO users (uid, type, email, first_name, last_name, phone) VALUES (?, ?, ?, ?, ?, ?)`,
		uid, userType, email, firstName, lastName, phone,
	)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	id, _ := result.LastInsertId()
	return s.GetByID(id)
}

// AddCaregiver links a caregiver into a patient's care circle.
func (s *UserStore) AddCaregiver(patientID, caregiverID int64) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO care_circle (patient_id, caregiver_id) VALUES (?, ?)`,
		patientID, caregiverID,
	)
	if err != nil {
		return fmt.Errorf("add caregiver: %w", err)
	}
	return nil
}

// Lookup resolves a patient's directory record: their own push identity
// plus the push identities of every caregiver in their care circle.
// Returns nil if the patient does not exist.
func (s *UserStore) Lookup(patientID int64) (*model.DirectoryRecord, error) {
	patient, err := s.GetByID(patientID)
	if err != nil {
		return nil, err
	}
	if patient == nil {
		return nil, nil
	}

	rows, err := s.db.Query(
		`SELECT u.uid FROM care_circle cc JOIN users u ON u.id = cc.caregiver_id
		 WHERE cc.patient_id = ? ORDER BY u.id`,
		patientID,
	)
	if err != nil {
		return nil, fmt.Errorf("lookup care circle: %w", err)
	}
	defer rows.Close()

	var circle []string
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("scan caregiver uid: %w", err)
		}
		circle = append(circle, uid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lookup care circle: %w", err)
	}

	return &model.DirectoryRecord{
		ID:            patient.ID,
		PushIdentity:  patient.UID,
		PatientName:   patient.FullName(),
		CareCircleIDs: circle,
	}, nil
}

func scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.UID, &u.Type, &u.Email, &u.FirstName, &u.LastName, &u.Phone, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}
