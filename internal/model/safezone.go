package model

import "time"

// DefaultZoneRadius is applied when a zone is created without a radius, in meters.
const DefaultZoneRadius = 100

// Coordinate is a WGS84 point. The wire format uses GeoJSON order
// ([longitude, latitude]); this struct is the named-field internal form.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// SafeZone is a caregiver-defined circular geofence a patient is expected
// to remain within.
type SafeZone struct {
	ID        int64      `json:"id"`
	PatientID int64      `json:"patient_id"`
	Name      string     `json:"name"`
	Address   string     `json:"address,omitempty"`
	Center    Coordinate `json:"center"`
	Radius    float64    `json:"radius"` // meters
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
