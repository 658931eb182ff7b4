package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cairnhealth/cairn/internal/auth"
	"github.com/cairnhealth/cairn/internal/geofence"
	"github.com/cairnhealth/cairn/internal/model"
)

type LocationHandler struct {
	evaluator *geofence.Evaluator
	logger    *slog.Logger
}

func NewLocationHandler(evaluator *geofence.Evaluator, logger *slog.Logger) *LocationHandler {
	return &LocationHandler{evaluator: evaluator, logger: logger}
}

type checkLocationRequest struct {
	PatientID   int64     `json:"patient_id,omitempty"`
	Coordinates []float64 `json:"coordinates"` // [lon, lat]
}

// CheckLocation handles POST /api/agent/check-location. Patient devices
// report their own position; the patient id defaults to the caller when the
// caller is a patient.
func (h *LocationHandler) CheckLocation(w http.ResponseWriter, r *http.Request) {
	var req checkLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.Coordinates) != 2 {
		writeError(w, http.StatusBadRequest, "coordinates must be [longitude, latitude]")
		return
	}

	patientID := req.PatientID
	if patientID == 0 {
		ac, ok := auth.FromContext(r.Context())
		if !ok || ac.UserType != model.UserTypePatient {
			writeError(w, http.StatusBadRequest, "patient_id required")
			return
		}
		patientID = ac.UserID
	}

	location := model.Coordinate{Lon: req.Coordinates[0], Lat: req.Coordinates[1]}
	eval, err := h.evaluator.CheckLocation(patientID, location)
	if err != nil {
		if errors.Is(err, geofence.ErrInvalidCoordinate) {
			writeError(w, http.StatusBadRequest, "invalid coordinates")
			return
		}
		h.logger.Error("check location", "patient_id", patientID, "error", err)
		writeError(w, http.StatusInternalServerError, "location check failed")
		return
	}
	writeJSON(w, http.StatusOK, eval)
}
