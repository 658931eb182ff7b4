package model

import "time"

// User types
const (
	UserTypePatient   = "patient"
	UserTypeCaregiver = "caregiver"
)

type User struct {
	ID        int64     `json:"id"`
	UID       string    `json:"uid"`
	Type      string    `json:"type"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullName returns the user's display name.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// DirectoryRecord is the directory view of a patient: their push identity
// plus the push identities of everyone in their care circle.
type DirectoryRecord struct {
	ID            int64    `json:"id"`
	PushIdentity  string   `json:"push_identity"`
	PatientName   string   `json:"patient_name"`
	CareCircleIDs []string `json:"care_circle_ids"`
}
