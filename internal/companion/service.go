package companion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/cairnhealth/cairn/internal/geofence"
	"github.com/cairnhealth/cairn/internal/mirror"
	"github.com/cairnhealth/cairn/internal/model"
	"github.com/cairnhealth/cairn/internal/oplog"
)

// Operation payload shapes recorded in the oplog. Create payloads reuse the
// wire request types directly.
type zoneUpdateOp struct {
	ID int64 `json:"id"`
	ZoneRequest
}

type zoneDeleteOp struct {
	ID int64 `json:"id"`
}

type alertStatusOp struct {
	ID              int64  `json:"id"`
	Status          string `json:"status"`
	ResolutionNotes string `json:"resolution_notes,omitempty"`
}

// SyncTrigger asks the replay loop to run a pass soon. Called after every
// successful enqueue so queued operations do not wait for the next poll.
// May be nil.
type SyncTrigger func()

// SafeZoneService reads and mutates safe zones remote-first. When the hub is
// unreachable, reads come from the mirror and mutations are applied to the
// mirror optimistically and queued for replay.
type SafeZoneService struct {
	remote      *Client
	mirror      *mirror.Store
	oplog       *oplog.Store
	requestSync SyncTrigger
	logger      *slog.Logger
}

func NewSafeZoneService(remote *Client, m *mirror.Store, ops *oplog.Store, requestSync SyncTrigger, logger *slog.Logger) *SafeZoneService {
	return &SafeZoneService{remote: remote, mirror: m, oplog: ops, requestSync: requestSync, logger: logger}
}

func (s *SafeZoneService) enqueue(entityType, operation string, payload any) error {
	if _, err := s.oplog.Enqueue(entityType, operation, payload); err != nil {
		return err
	}
	if s.requestSync != nil {
		s.requestSync()
	}
	return nil
}

// List returns the patient's zones, refreshing the mirror on success.
func (s *SafeZoneService) List(ctx context.Context, patientID int64) ([]model.SafeZone, error) {
	zones, err := s.remote.ListSafeZones(ctx, patientID)
	if err == nil {
		if zones == nil {
			zones = []model.SafeZone{}
		}
		if mErr := s.mirror.Replace(mirror.CollectionSafeZones, patientID, zones); mErr != nil {
			s.logger.Warn("refresh zone mirror", "error", mErr)
		}
		return zones, nil
	}
	if !errors.Is(err, ErrUnavailable) {
		return nil, err
	}

	var cached []model.SafeZone
	found, cacheErr := s.mirror.Get(mirror.CollectionSafeZones, patientID, &cached)
	if cacheErr != nil {
		return nil, cacheErr
	}
	if !found {
		return nil, err
	}
	s.logger.Debug("serving zones from mirror", "patient_id", patientID)
	return cached, nil
}

// Create makes a zone on the hub, or provisionally in the mirror when the
// hub is unreachable. Provisional zones carry a temporary negative id until
// replay recreates them hub-side.
func (s *SafeZoneService) Create(ctx context.Context, req ZoneRequest) (*model.SafeZone, error) {
	zone, err := s.remote.CreateSafeZone(ctx, req)
	if err == nil {
		s.refreshZones(ctx, req.PatientID)
		return zone, nil
	}
	if !errors.Is(err, ErrUnavailable) {
		return nil, err
	}

	if qErr := s.enqueue(model.EntitySafeZone, model.OpCreate, req); qErr != nil {
		return nil, qErr
	}

	provisional := model.SafeZone{
		ID:        -time.Now().UnixMilli(),
		PatientID: req.PatientID,
		Name:      req.Name,
		Address:   req.Address,
		Radius:    req.Radius,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if len(req.Coordinates) == 2 {
		provisional.Center = model.Coordinate{Lon: req.Coordinates[0], Lat: req.Coordinates[1]}
	}
	if provisional.Radius <= 0 {
		provisional.Radius = model.DefaultZoneRadius
	}
	if req.IsActive != nil {
		provisional.IsActive = *req.IsActive
	}

	s.mutateCachedZones(req.PatientID, func(zones []model.SafeZone) []model.SafeZone {
		return append(zones, provisional)
	})
	return &provisional, nil
}

// Update edits a zone on the hub, or in the mirror with a queued replay.
func (s *SafeZoneService) Update(ctx context.Context, patientID, id int64, req ZoneRequest) (*model.SafeZone, error) {
	zone, err := s.remote.UpdateSafeZone(ctx, id, req)
	if err == nil {
		s.refreshZones(ctx, patientID)
		return zone, nil
	}
	if !errors.Is(err, ErrUnavailable) {
		return nil, err
	}

	if qErr := s.enqueue(model.EntitySafeZone, model.OpUpdate, zoneUpdateOp{ID: id, ZoneRequest: req}); qErr != nil {
		return nil, qErr
	}

	var updated *model.SafeZone
	s.mutateCachedZones(patientID, func(zones []model.SafeZone) []model.SafeZone {
		for i := range zones {
			if zones[i].ID != id {
				continue
			}
			z := &zones[i]
			if req.Name != "" {
				z.Name = req.Name
			}
			if req.Address != "" {
				z.Address = req.Address
			}
			if len(req.Coordinates) == 2 {
				z.Center = model.Coordinate{Lon: req.Coordinates[0], Lat: req.Coordinates[1]}
			}
			if req.Radius > 0 {
				z.Radius = req.Radius
			}
			if req.IsActive != nil {
				z.IsActive = *req.IsActive
			}
			z.UpdatedAt = time.Now().UTC()
			updated = z
			break
		}
		return zones
	})
	if updated == nil {
		return nil, fmt.Errorf("safe zone %d not in mirror", id)
	}
	return updated, nil
}

// Delete removes a zone on the hub, or from the mirror with a queued replay.
func (s *SafeZoneService) Delete(ctx context.Context, patientID, id int64) error {
	err := s.remote.DeleteSafeZone(ctx, id)
	if err == nil {
		s.refreshZones(ctx, patientID)
		return nil
	}
	if !errors.Is(err, ErrUnavailable) {
		return err
	}

	if qErr := s.enqueue(model.EntitySafeZone, model.OpDelete, zoneDeleteOp{ID: id}); qErr != nil {
		return qErr
	}

	s.mutateCachedZones(patientID, func(zones []model.SafeZone) []model.SafeZone {
		kept := zones[:0]
		for _, z := range zones {
			if z.ID != id {
				kept = append(kept, z)
			}
		}
		return kept
	})
	return nil
}

func (s *SafeZoneService) refreshZones(ctx context.Context, patientID int64) {
	if patientID == 0 {
		return
	}
	zones, err := s.remote.ListSafeZones(ctx, patientID)
	if err != nil {
		s.logger.Debug("zone mirror refresh skipped", "error", err)
		return
	}
	if err := s.mirror.Replace(mirror.CollectionSafeZones, patientID, zones); err != nil {
		s.logger.Warn("refresh zone mirror", "error", err)
	}
}

func (s *SafeZoneService) mutateCachedZones(patientID int64, fn func([]model.SafeZone) []model.SafeZone) {
	var zones []model.SafeZone
	if _, err := s.mirror.Get(mirror.CollectionSafeZones, patientID, &zones); err != nil {
		s.logger.Warn("read zone mirror", "error", err)
		return
	}
	if err := s.mirror.Replace(mirror.CollectionSafeZones, patientID, fn(zones)); err != nil {
		s.logger.Warn("write zone mirror", "error", err)
	}
}

// mirrorZoneSource adapts the mirror to the geofence evaluator for offline
// location checks.
type mirrorZoneSource struct {
	mirror *mirror.Store
}

func (m mirrorZoneSource) ListActiveByPatient(patientID int64) ([]model.SafeZone, error) {
	var zones []model.SafeZone
	if _, err := m.mirror.Get(mirror.CollectionSafeZones, patientID, &zones); err != nil {
		return nil, err
	}
	active := zones[:0]
	for _, z := range zones {
		if z.IsActive {
			active = append(active, z)
		}
	}
	return active, nil
}

// enqueueAlertSink records the zone-exit alert for replay instead of
// dispatching it, since the hub is unreachable.
type enqueueAlertSink struct {
	oplog       *oplog.Store
	requestSync SyncTrigger
}

func (e enqueueAlertSink) DispatchZoneExit(patientID int64, location model.Coordinate, nearest model.SafeZone, distance float64) error {
	rounded := int64(math.Round(distance))
	metadata, err := json.Marshal(map[string]any{
		"coordinates": []float64{location.Lon, location.Lat},
		"nearestZone": map[string]any{
			"id":       nearest.ID,
			"name":     nearest.Name,
			"distance": rounded,
		},
	})
	if err != nil {
		return err
	}

	_, err = e.oplog.Enqueue(model.EntityAlert, model.OpCreate, AlertRequest{
		PatientID: patientID,
		Type:      model.AlertTypeLocation,
		Title:     "Safe Zone Exit Alert",
		Description: fmt.Sprintf(
			"Patient has left all safe zones. Nearest zone is %q (%d meters away)",
			nearest.Name, rounded),
		Priority: model.PriorityHigh,
		Metadata: metadata,
	})
	if err != nil {
		return err
	}
	if e.requestSync != nil {
		e.requestSync()
	}
	return nil
}

// CheckLocation reports a position to the hub. When the hub is unreachable
// the check runs locally against mirrored zones, and a zone exit is recorded
// in the oplog for replay.
func (s *SafeZoneService) CheckLocation(ctx context.Context, patientID int64, location model.Coordinate) (*geofence.Evaluation, error) {
	eval, err := s.remote.CheckLocation(ctx, patientID, location)
	if err == nil {
		return eval, nil
	}
	if !errors.Is(err, ErrUnavailable) {
		return nil, err
	}

	s.logger.Debug("hub unreachable, evaluating location locally", "patient_id", patientID)
	local := geofence.NewEvaluator(mirrorZoneSource{s.mirror}, enqueueAlertSink{s.oplog, s.requestSync}, s.logger)
	return local.CheckLocation(patientID, location)
}

// AlertService reads and mutates alerts remote-first with mirror fallback.
type AlertService struct {
	remote      *Client
	mirror      *mirror.Store
	oplog       *oplog.Store
	requestSync SyncTrigger
	logger      *slog.Logger
}

func NewAlertService(remote *Client, m *mirror.Store, ops *oplog.Store, requestSync SyncTrigger, logger *slog.Logger) *AlertService {
	return &AlertService{remote: remote, mirror: m, oplog: ops, requestSync: requestSync, logger: logger}
}

func (s *AlertService) enqueue(entityType, operation string, payload any) error {
	if _, err := s.oplog.Enqueue(entityType, operation, payload); err != nil {
		return err
	}
	if s.requestSync != nil {
		s.requestSync()
	}
	return nil
}

// List returns the patient's alert history, refreshing the mirror on success.
func (s *AlertService) List(ctx context.Context, patientID int64) ([]model.Alert, error) {
	page, err := s.remote.ListAlerts(ctx, patientID)
	if err == nil {
		alerts := page.Alerts
		if alerts == nil {
			alerts = []model.Alert{}
		}
		if mErr := s.mirror.Replace(mirror.CollectionAlerts, patientID, alerts); mErr != nil {
			s.logger.Warn("refresh alert mirror", "error", mErr)
		}
		return alerts, nil
	}
	if !errors.Is(err, ErrUnavailable) {
		return nil, err
	}

	var cached []model.Alert
	found, cacheErr := s.mirror.Get(mirror.CollectionAlerts, patientID, &cached)
	if cacheErr != nil {
		return nil, cacheErr
	}
	if !found {
		return nil, err
	}
	s.logger.Debug("serving alerts from mirror", "patient_id", patientID)
	return cached, nil
}

// UpdateStatus applies an alert status change, queueing it when offline.
func (s *AlertService) UpdateStatus(ctx context.Context, patientID, id int64, status, notes string) (*model.Alert, error) {
	a, err := s.remote.UpdateAlertStatus(ctx, id, status, notes)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, ErrUnavailable) {
		return nil, err
	}

	if !model.ValidAlertStatus(status) {
		return nil, fmt.Errorf("invalid status %q", status)
	}
	if qErr := s.enqueue(model.EntityAlert, model.OpUpdate, alertStatusOp{
		ID: id, Status: status, ResolutionNotes: notes,
	}); qErr != nil {
		return nil, qErr
	}

	// Optimistic mirror update so the UI reflects the change offline.
	var updated *model.Alert
	var alerts []model.Alert
	if _, err := s.mirror.Get(mirror.CollectionAlerts, patientID, &alerts); err == nil {
		for i := range alerts {
			if alerts[i].ID == id {
				alerts[i].Status = status
				alerts[i].UpdatedAt = time.Now().UTC()
				updated = &alerts[i]
				break
			}
		}
		if err := s.mirror.Replace(mirror.CollectionAlerts, patientID, alerts); err != nil {
			s.logger.Warn("write alert mirror", "error", err)
		}
	}
	if updated == nil {
		return nil, fmt.Errorf("alert %d not in mirror", id)
	}
	return updated, nil
}

// PersonService resolves the patient's directory record remote-first.
type PersonService struct {
	remote      *Client
	mirror      *mirror.Store
	oplog       *oplog.Store
	requestSync SyncTrigger
	logger      *slog.Logger
}

func NewPersonService(remote *Client, m *mirror.Store, ops *oplog.Store, requestSync SyncTrigger, logger *slog.Logger) *PersonService {
	return &PersonService{remote: remote, mirror: m, oplog: ops, requestSync: requestSync, logger: logger}
}

// Directory returns the patient's care circle, refreshing the mirror on
// success.
func (s *PersonService) Directory(ctx context.Context, patientID int64) (*model.DirectoryRecord, error) {
	rec, err := s.remote.GetDirectory(ctx, patientID)
	if err == nil {
		if mErr := s.mirror.Replace(mirror.CollectionPersons, patientID, rec); mErr != nil {
			s.logger.Warn("refresh person mirror", "error", mErr)
		}
		return rec, nil
	}
	if !errors.Is(err, ErrUnavailable) {
		return nil, err
	}

	var cached model.DirectoryRecord
	found, cacheErr := s.mirror.Get(mirror.CollectionPersons, patientID, &cached)
	if cacheErr != nil {
		return nil, cacheErr
	}
	if !found {
		return nil, err
	}
	return &cached, nil
}

// Create registers a person on the hub, queueing the creation when offline.
func (s *PersonService) Create(ctx context.Context, req PersonRequest) (*model.User, error) {
	u, err := s.remote.CreatePerson(ctx, req)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrUnavailable) {
		return nil, err
	}

	if _, qErr := s.oplog.Enqueue(model.EntityPerson, model.OpCreate, req); qErr != nil {
		return nil, qErr
	}
	if s.requestSync != nil {
		s.requestSync()
	}
	return &model.User{
		ID:        -time.Now().UnixMilli(),
		UID:       req.UID,
		Type:      req.Type,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		CreatedAt: time.Now().UTC(),
	}, nil
}
