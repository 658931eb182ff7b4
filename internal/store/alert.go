package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cairnhealth/cairn/internal/model"
)

// ErrInvalidTransition is returned when an alert status change violates the
// active → acknowledged → resolved lifecycle.
var ErrInvalidTransition = errors.New("invalid alert status transition")

type AlertStore struct {
	db *sql.DB
}

func NewAlertStore(db *sql.DB) *AlertStore {
	return &AlertStore{db: db}
}

const alertColumns = `id, patient_id, type, title, description, priority, status, metadata,
	resolution_notes, resolved_at, created_at, updated_at`

func (s *AlertStore) Create(patientID int64, alertType, title, description, priority string, metadata json.RawMessage) (*model.Alert, error) {
	if priority == "" {
		priority = model.PriorityMedium
	}
	if len(metadata) == 0 {
		metadata = json.RawMessage(`{}`)
	}
	result, err := s.db.Exec(
		`INSERT INTO alerts (patient_id, type, title, description, priority, metadata)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		patientID, alertType, title, description, priority, string(metadata),
	)
	if err != nil {
		return nil, fmt.Errorf("create alert: %w", err)
	}
	id, _ := result.LastInsertId()
	return s.GetByID(id)
}

func (s *AlertStore) GetByID(id int64) (*model.Alert, error) {
	row := s.db.QueryRow(`SELECT `+alertColumns+` FROM alerts WHERE id = ?`, id)
	var a model.Alert
	var metadata string
	err := row.Scan(&a.ID, &a.PatientID, &a.Type, &a.Title, &a.Description, &a.Priority,
		&a.Status, &metadata, &a.ResolutionNotes, &a.ResolvedAt, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}
	a.Metadata = json.RawMessage(metadata)
	return &a, nil
}

// AlertFilter narrows ListByPatient results. Zero values mean no filter;
// Page is 1-based and Limit defaults to 20.
type AlertFilter struct {
	Status string
	Type   string
	Page   int
	Limit  int
}

// ListByPatient returns a page of alerts newest-first plus the total count
// matching the filter.
func (s *AlertStore) ListByPatient(patientID int64, f AlertFilter) ([]model.Alert, int, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Page <= 0 {
		f.Page = 1
	}

	where := `WHERE patient_id = ?`
	args := []any{patientID}
	if f.Status != "" {
		where += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.Type != "" {
		where += ` AND type = ?`
		args = append(args, f.Type)
	}

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM alerts `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count alerts: %w", err)
	}

	args = append(args, f.Limit, (f.Page-1)*f.Limit)
	rows, err := s.db.Query(
		`SELECT `+alertColumns+` FROM alerts `+where+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []model.Alert
	for rows.Next() {
		var a model.Alert
		var metadata string
		if err := rows.Scan(&a.ID, &a.PatientID, &a.Type, &a.Title, &a.Description, &a.Priority,
			&a.Status, &metadata, &a.ResolutionNotes, &a.ResolvedAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan alert: %w", err)
		}
		a.Metadata = json.RawMessage(metadata)
		alerts = append(alerts, a)
	}
	return alerts, total, rows.Err()
}

// UpdateStatus applies a status transition. Resolving records the timestamp
// and optional notes. Returns ErrInvalidTransition for disallowed moves and
// (nil, nil) when the alert does not exist.
func (s *AlertStore) UpdateStatus(id int64, status, resolutionNotes string) (*model.Alert, error) {
	alert, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if alert == nil {
		return nil, nil
	}
	if !model.ValidTransition(alert.Status, status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, alert.Status, status)
	}

	now := time.Now().UTC()
	if status == model.StatusResolved {
		_, err = s.db.Exec(
			`UPDATE alerts SET status = ?, resolution_notes = ?, resolved_at = ?, updated_at = ? WHERE id = ?`,
			status, resolutionNotes, now, now, id)
	} else {
		_, err = s.db.Exec(
			`UPDATE alerts SET status = ?, updated_at = ? WHERE id = ?`, status, now, id)
	}
	if err != nil {
		return nil, fmt.Errorf("update alert status: %w", err)
	}
	return s.GetByID(id)
}
