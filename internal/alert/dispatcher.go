package alert

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/cairnhealth/cairn/internal/model"
	"github.com/cairnhealth/cairn/internal/push"
	"github.com/cairnhealth/cairn/internal/store"
	ws "github.com/cairnhealth/cairn/internal/websocket"
)

// ErrInvalidAlert is returned for unknown alert types or priorities.
var ErrInvalidAlert = errors.New("invalid alert")

// Notifier is the live notification channel: best-effort delivery keyed by
// push identity. A false return means no registered connection; that is
// never an error.
type Notifier interface {
	SendToUser(userID string, msg ws.Message) bool
}

// PushSender delivers a web push to a stored subscription.
type PushSender interface {
	Send(sub *model.PushSubscription, payload push.Payload) error
}

// CreateParams are the fields for a new alert. Priority defaults to medium.
type CreateParams struct {
	PatientID   int64
	Type        string
	Title       string
	Description string
	Priority    string
	Metadata    json.RawMessage
}

// Dispatcher persists alerts and fans out notifications to the patient and
// every caregiver in their care circle. Persistence failures fail the call;
// per-recipient delivery failures never do.
type Dispatcher struct {
	alerts   *store.AlertStore
	users    *store.UserStore
	pushSubs *store.PushStore
	notifier Notifier
	pusher   PushSender // nil when web push is not configured
	logger   *slog.Logger
}

func NewDispatcher(alerts *store.AlertStore, users *store.UserStore, pushSubs *store.PushStore, notifier Notifier, pusher PushSender, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		alerts:   alerts,
		users:    users,
		pushSubs: pushSubs,
		notifier: notifier,
		pusher:   pusher,
		logger:   logger,
	}
}

// Dispatch persists a new alert with status=active and notifies the patient
// and their care circle. The alert is returned once persisted, whether or
// not any recipient was reachable.
func (d *Dispatcher) Dispatch(p CreateParams) (*model.Alert, error) {
	if !model.ValidAlertType(p.Type) {
		return nil, fmt.Errorf("%w: type %q", ErrInvalidAlert, p.Type)
	}
	if p.Priority == "" {
		p.Priority = model.PriorityMedium
	}
	if !model.ValidPriority(p.Priority) {
		return nil, fmt.Errorf("%w: priority %q", ErrInvalidAlert, p.Priority)
	}

	a, err := d.alerts.Create(p.PatientID, p.Type, p.Title, p.Description, p.Priority, p.Metadata)
	if err != nil {
		return nil, err
	}

	d.fanOut(a, func(patientName string) (ws.Message, ws.Message) {
		return ws.NewAlertMessage(a), ws.NewPatientAlertMessage(patientName, a)
	})
	return a, nil
}

// zoneExitMetadata mirrors the wire shape: GeoJSON coordinate order.
type zoneExitMetadata struct {
	Coordinates [2]float64 `json:"coordinates"` // [lon, lat]
	NearestZone struct {
		ID       int64  `json:"id"`
		Name     string `json:"name"`
		Distance int64  `json:"distance"`
	} `json:"nearestZone"`
}

// DispatchZoneExit files the high-priority location alert raised when a
// patient is outside every active safe zone.
func (d *Dispatcher) DispatchZoneExit(patientID int64, location model.Coordinate, nearest model.SafeZone, distance float64) error {
	rounded := int64(math.Round(distance))

	var meta zoneExitMetadata
	meta.Coordinates = [2]float64{location.Lon, location.Lat}
	meta.NearestZone.ID = nearest.ID
	meta.NearestZone.Name = nearest.Name
	meta.NearestZone.Distance = rounded
	metadata, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal zone exit metadata: %w", err)
	}

	_, err = d.Dispatch(CreateParams{
		PatientID: patientID,
		Type:      model.AlertTypeLocation,
		Title:     "Safe Zone Exit Alert",
		Description: fmt.Sprintf(
			"Patient has left all safe zones. Nearest zone is %q (%d meters away)",
			nearest.Name, rounded),
		Priority: model.PriorityHigh,
		Metadata: metadata,
	})
	return err
}

// DispatchMedicationReminder files a medication alert and notifies the patient.
func (d *Dispatcher) DispatchMedicationReminder(patientID int64, name, dosage, instructions string) (*model.Alert, error) {
	metadata, err := json.Marshal(map[string]string{
		"name":         name,
		"dosage":       dosage,
		"instructions": instructions,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal medication metadata: %w", err)
	}

	return d.Dispatch(CreateParams{
		PatientID:   patientID,
		Type:        model.AlertTypeMedication,
		Title:       "Medication Reminder",
		Description: fmt.Sprintf("Time to take %s (%s)", name, dosage),
		Priority:    model.PriorityMedium,
		Metadata:    metadata,
	})
}

// UpdateStatus applies a status transition and re-fans-out a status-change
// notification to the same recipient set. Returns (nil, nil) when the alert
// does not exist and store.ErrInvalidTransition for disallowed moves.
func (d *Dispatcher) UpdateStatus(id int64, status, resolutionNotes string) (*model.Alert, error) {
	a, err := d.alerts.UpdateStatus(id, status, resolutionNotes)
	if err != nil || a == nil {
		return a, err
	}

	d.fanOut(a, func(patientName string) (ws.Message, ws.Message) {
		msg := ws.NewStatusChangeMessage(patientName, a)
		return msg, msg
	})
	return a, nil
}

// fanOut resolves the patient's directory record and delivers one message to
// the patient and one to each caregiver. Recipients without a live
// connection are skipped silently; web push failures are logged and
// swallowed. A missing directory record skips notification entirely.
func (d *Dispatcher) fanOut(a *model.Alert, build func(patientName string) (patientMsg, caregiverMsg ws.Message)) {
	record, err := d.users.Lookup(a.PatientID)
	if err != nil {
		d.logger.Error("directory lookup", "patient_id", a.PatientID, "error", err)
		return
	}
	if record == nil {
		d.logger.Warn("alert for unknown patient", "patient_id", a.PatientID, "alert_id", a.ID)
		return
	}

	patientMsg, caregiverMsg := build(record.PatientName)
	d.notifier.SendToUser(record.PushIdentity, patientMsg)

	for _, caregiverUID := range record.CareCircleIDs {
		d.notifier.SendToUser(caregiverUID, caregiverMsg)
		d.webPush(caregiverUID, a, record.PatientName)
	}
}

// webPush delivers the alert to the caregiver's stored push subscriptions.
func (d *Dispatcher) webPush(caregiverUID string, a *model.Alert, patientName string) {
	if d.pusher == nil {
		return
	}

	subs, err := d.pushSubs.ListByUser(caregiverUID)
	if err != nil {
		d.logger.Error("list push subscriptions", "user_uid", caregiverUID, "error", err)
		return
	}

	payload := push.Payload{
		Title:    a.Title,
		Body:     fmt.Sprintf("%s: %s", patientName, a.Description),
		Priority: a.Priority,
		Tag:      fmt.Sprintf("alert-%d", a.ID),
	}
	for i := range subs {
		sub := &subs[i]
		if err := d.pusher.Send(sub, payload); err != nil {
			if errors.Is(err, push.ErrExpired) {
				if err := d.pushSubs.DeleteByEndpoint(sub.Endpoint); err != nil {
					d.logger.Error("delete expired subscription", "error", err)
				}
				continue
			}
			d.logger.Warn("web push failed", "user_uid", caregiverUID, "error", err)
		}
	}
}
