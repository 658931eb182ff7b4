package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cairnhealth/cairn/internal/geocode"
	"github.com/cairnhealth/cairn/internal/geofence"
	"github.com/cairnhealth/cairn/internal/model"
	"github.com/cairnhealth/cairn/internal/store"
)

type SafeZoneHandler struct {
	zones    *store.SafeZoneStore
	geocoder *geocode.Service
	logger   *slog.Logger
}

func NewSafeZoneHandler(zones *store.SafeZoneStore, geocoder *geocode.Service, logger *slog.Logger) *SafeZoneHandler {
	return &SafeZoneHandler{zones: zones, geocoder: geocoder, logger: logger}
}

type zoneRequest struct {
	PatientID   int64     `json:"patient_id"`
	Name        string    `json:"name"`
	Address     string    `json:"address"`
	Coordinates []float64 `json:"coordinates,omitempty"` // [lon, lat]
	Radius      float64   `json:"radius"`
	IsActive    *bool     `json:"is_active,omitempty"`
}

// Create handles POST /api/safe-zones. The center comes from explicit
// coordinates when given, otherwise by geocoding the address.
func (h *SafeZoneHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req zoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Name == "" || req.PatientID == 0 {
		writeError(w, http.StatusBadRequest, "name and patient_id are required")
		return
	}

	center, ok := h.resolveCenter(w, r, &req)
	if !ok {
		return
	}

	zone, err := h.zones.Create(req.PatientID, req.Name, req.Address, center, req.Radius)
	if err != nil {
		h.logger.Error("create safe zone", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create safe zone")
		return
	}
	writeJSON(w, http.StatusCreated, zone)
}

// resolveCenter picks coordinates from the request or geocodes the address.
// It writes the error response itself and returns ok=false on failure.
func (h *SafeZoneHandler) resolveCenter(w http.ResponseWriter, r *http.Request, req *zoneRequest) (model.Coordinate, bool) {
	if len(req.Coordinates) == 2 {
		center := model.Coordinate{Lon: req.Coordinates[0], Lat: req.Coordinates[1]}
		if !geofence.ValidCoordinate(center) {
			writeError(w, http.StatusBadRequest, "invalid coordinates")
			return model.Coordinate{}, false
		}
		return center, true
	}

	if req.Address == "" {
		writeError(w, http.StatusBadRequest, "coordinates or address required")
		return model.Coordinate{}, false
	}

	result, err := h.geocoder.Resolve(r.Context(), req.Address)
	if err != nil {
		switch {
		case errors.Is(err, geocode.ErrNotConfigured):
			writeError(w, http.StatusBadRequest, "geocoding unavailable, provide coordinates")
		case errors.Is(err, geocode.ErrNoMatch):
			writeError(w, http.StatusUnprocessableEntity, "address could not be resolved")
		default:
			h.logger.Error("geocode address", "error", err)
			writeError(w, http.StatusBadGateway, "geocoding failed")
		}
		return model.Coordinate{}, false
	}
	if result.FormattedAddress != "" {
		req.Address = result.FormattedAddress
	}
	return result.Coordinate, true
}

// List handles GET /api/patients/{id}/safe-zones
func (h *SafeZoneHandler) List(w http.ResponseWriter, r *http.Request) {
	patientID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	zones, err := h.zones.ListByPatient(patientID)
	if err != nil {
		h.logger.Error("list safe zones", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list safe zones")
		return
	}
	if zones == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, zones)
}

// Get handles GET /api/safe-zones/{id}
func (h *SafeZoneHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	zone, err := h.zones.GetByID(id)
	if err != nil {
		h.logger.Error("get safe zone", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get safe zone")
		return
	}
	if zone == nil {
		writeError(w, http.StatusNotFound, "safe zone not found")
		return
	}
	writeJSON(w, http.StatusOK, zone)
}

// Update handles PUT /api/safe-zones/{id}. Changing the address without
// coordinates re-geocodes it.
func (h *SafeZoneHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req struct {
		Name        *string   `json:"name"`
		Address     *string   `json:"address"`
		Coordinates []float64 `json:"coordinates,omitempty"` // [lon, lat]
		Radius      *float64  `json:"radius"`
		IsActive    *bool     `json:"is_active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	upd := store.ZoneUpdate{
		Name:     req.Name,
		Address:  req.Address,
		Radius:   req.Radius,
		IsActive: req.IsActive,
	}

	switch {
	case len(req.Coordinates) == 2:
		center := model.Coordinate{Lon: req.Coordinates[0], Lat: req.Coordinates[1]}
		if !geofence.ValidCoordinate(center) {
			writeError(w, http.StatusBadRequest, "invalid coordinates")
			return
		}
		upd.Center = &center
	case req.Address != nil && *req.Address != "":
		result, err := h.geocoder.Resolve(r.Context(), *req.Address)
		if err != nil {
			if errors.Is(err, geocode.ErrNoMatch) {
				writeError(w, http.StatusUnprocessableEntity, "address could not be resolved")
				return
			}
			if !errors.Is(err, geocode.ErrNotConfigured) {
				h.logger.Error("geocode address", "error", err)
				writeError(w, http.StatusBadGateway, "geocoding failed")
				return
			}
			// Not configured: keep the old center, store the new address.
		} else {
			upd.Center = &result.Coordinate
			if result.FormattedAddress != "" {
				formatted := result.FormattedAddress
				upd.Address = &formatted
			}
		}
	}

	zone, err := h.zones.Update(id, upd)
	if err != nil {
		h.logger.Error("update safe zone", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update safe zone")
		return
	}
	if zone == nil {
		writeError(w, http.StatusNotFound, "safe zone not found")
		return
	}
	writeJSON(w, http.StatusOK, zone)
}

// Delete handles DELETE /api/safe-zones/{id}
func (h *SafeZoneHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	deleted, err := h.zones.Delete(id)
	if err != nil {
		h.logger.Error("delete safe zone", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete safe zone")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "safe zone not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
