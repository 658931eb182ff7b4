package geofence

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/cairnhealth/cairn/internal/model"
)

// ErrInvalidCoordinate is returned for non-finite or out-of-range coordinates.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// ZoneSource loads the active safe zones for a patient.
type ZoneSource interface {
	ListActiveByPatient(patientID int64) ([]model.SafeZone, error)
}

// AlertSink receives the zone-exit alert request when a patient is outside
// all active zones.
type AlertSink interface {
	DispatchZoneExit(patientID int64, location model.Coordinate, nearest model.SafeZone, distance float64) error
}

// NearestZone describes the closest zone when the patient is outside all of them.
type NearestZone struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Distance float64 `json:"distance"` // meters, rounded
}

// Evaluation is the outcome of a location check.
type Evaluation struct {
	InSafeZone bool         `json:"in_safe_zone"`
	Zone       *NearestZone `json:"zone,omitempty"`         // containing zone when inside
	Nearest    *NearestZone `json:"nearest_zone,omitempty"` // closest zone when outside
}

// Evaluator decides safe-zone membership for reported patient locations and
// requests a zone-exit alert when the patient is outside every active zone.
type Evaluator struct {
	zones  ZoneSource
	alerts AlertSink
	logger *slog.Logger
}

func NewEvaluator(zones ZoneSource, alerts AlertSink, logger *slog.Logger) *Evaluator {
	return &Evaluator{zones: zones, alerts: alerts, logger: logger}
}

// CheckLocation evaluates a reported coordinate against the patient's active
// zones. The first zone containing the point wins, in creation order; there
// is no priority among overlapping zones. With zero active zones the result
// is not-in-zone with no nearest zone and no alert.
func (e *Evaluator) CheckLocation(patientID int64, location model.Coordinate) (*Evaluation, error) {
	if !ValidCoordinate(location) {
		return nil, fmt.Errorf("%w: lat=%v lon=%v", ErrInvalidCoordinate, location.Lat, location.Lon)
	}

	zones, err := e.zones.ListActiveByPatient(patientID)
	if err != nil {
		return nil, fmt.Errorf("load active zones: %w", err)
	}
	if len(zones) == 0 {
		return &Evaluation{InSafeZone: false}, nil
	}

	var nearest *model.SafeZone
	nearestDistance := math.Inf(1)
	for i := range zones {
		zone := &zones[i]
		distance := Distance(location, zone.Center)
		if distance <= zone.Radius {
			return &Evaluation{
				InSafeZone: true,
				Zone:       &NearestZone{ID: zone.ID, Name: zone.Name, Distance: math.Round(distance)},
			}, nil
		}
		if distance < nearestDistance {
			nearestDistance = distance
			nearest = zone
		}
	}

	if e.alerts != nil {
		if err := e.alerts.DispatchZoneExit(patientID, location, *nearest, nearestDistance); err != nil {
			e.logger.Error("dispatch zone exit alert", "patient_id", patientID, "error", err)
			return nil, fmt.Errorf("dispatch zone exit alert: %w", err)
		}
	}

	return &Evaluation{
		InSafeZone: false,
		Nearest:    &NearestZone{ID: nearest.ID, Name: nearest.Name, Distance: math.Round(nearestDistance)},
	}, nil
}
