package websocket

import (
	"encoding/json"
	"time"

	"github.com/cairnhealth/cairn/internal/model"
)

// Kind identifies a wire message type. Receivers must treat unrecognized
// kinds as a no-op, never an error.
type Kind string

const (
	KindPing               Kind = "ping"
	KindPong               Kind = "pong"
	KindAlert              Kind = "alert"
	KindPatientAlert       Kind = "patientAlert"
	KindAlertStatusChange  Kind = "alertStatusChange"
	KindMedicationReminder Kind = "medicationReminder"

	// KindNone is the no-op variant unrecognized inbound types decode to.
	KindNone Kind = ""
)

// Message is a JSON wire message: a type tag plus the fields that type
// uses. There is no schema version field.
type Message struct {
	Type        Kind   `json:"type"`
	AlertID     int64  `json:"alertId,omitempty"`
	AlertType   string `json:"alertType,omitempty"`
	PatientName string `json:"patientName,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty"`
	Status      string `json:"status,omitempty"`
	Timestamp   int64  `json:"timestamp,omitempty"`
}

// NewAlertMessage is the payload sent to the patient when an alert is created.
func NewAlertMessage(a *model.Alert) Message {
	return Message{
		Type:        KindAlert,
		AlertID:     a.ID,
		AlertType:   a.Type,
		Title:       a.Title,
		Description: a.Description,
		Priority:    a.Priority,
		Timestamp:   a.CreatedAt.UnixMilli(),
	}
}

// NewPatientAlertMessage is the payload sent to each caregiver when an alert
// is created for their patient.
func NewPatientAlertMessage(patientName string, a *model.Alert) Message {
	m := NewAlertMessage(a)
	m.Type = KindPatientAlert
	m.PatientName = patientName
	return m
}

// NewStatusChangeMessage is the payload fanned out when an alert's status changes.
func NewStatusChangeMessage(patientName string, a *model.Alert) Message {
	return Message{
		Type:        KindAlertStatusChange,
		AlertID:     a.ID,
		PatientName: patientName,
		Status:      a.Status,
		Timestamp:   a.UpdatedAt.UnixMilli(),
	}
}

func newPongMessage(now time.Time) Message {
	return Message{Type: KindPong, Timestamp: now.UnixMilli()}
}

// decodeInbound parses a client message. Malformed JSON and unrecognized
// types both map to KindNone; the raw type tag is returned for logging.
func decodeInbound(data []byte) (Message, string) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{Type: KindNone}, ""
	}
	raw := string(m.Type)
	switch m.Type {
	case KindPing:
		return m, raw
	default:
		return Message{Type: KindNone}, raw
	}
}
