package model

import (
	"encoding/json"
	"time"
)

// Alert types
const (
	AlertTypeLocation   = "location"
	AlertTypeMedication = "medication"
	AlertTypeSystem     = "system"
	AlertTypeOther      = "other"
)

// Alert priorities
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Alert statuses. Resolved is terminal.
const (
	StatusActive       = "active"
	StatusAcknowledged = "acknowledged"
	StatusResolved     = "resolved"
)

type Alert struct {
	ID              int64           `json:"id"`
	PatientID       int64           `json:"patient_id"`
	Type            string          `json:"type"`
	Title           string          `json:"title"`
	Description     string          `json:"description,omitempty"`
	Priority        string          `json:"priority"`
	Status          string          `json:"status"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
	ResolutionNotes string          `json:"resolution_notes,omitempty"`
	ResolvedAt      *time.Time      `json:"resolved_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// ValidAlertType reports whether t is a known alert type.
func ValidAlertType(t string) bool {
	switch t {
	case AlertTypeLocation, AlertTypeMedication, AlertTypeSystem, AlertTypeOther:
		return true
	}
	return false
}

// ValidPriority reports whether p is a known priority.
func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// ValidAlertStatus reports whether s is a known status.
func ValidAlertStatus(s string) bool {
	switch s {
	case StatusActive, StatusAcknowledged, StatusResolved:
		return true
	}
	return false
}

// ValidTransition reports whether an alert may move from one status to
// another. Resolved accepts no further transitions.
func ValidTransition(from, to string) bool {
	switch from {
	case StatusActive:
		return to == StatusAcknowledged || to == StatusResolved
	case StatusAcknowledged:
		return to == StatusResolved
	}
	return false
}
