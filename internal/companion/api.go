package companion

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cairnhealth/cairn/internal/model"
	"github.com/cairnhealth/cairn/internal/oplog"
)

// API is the localhost surface the on-device UI talks to. It never talks to
// the hub directly; every call goes through the offline-capable services.
type API struct {
	patientID int64
	zones     *SafeZoneService
	alerts    *AlertService
	persons   *PersonService
	oplog     *oplog.Store
	monitor   *Monitor
	logger    *slog.Logger
}

func NewAPI(patientID int64, zones *SafeZoneService, alerts *AlertService, persons *PersonService, ops *oplog.Store, monitor *Monitor, logger *slog.Logger) *API {
	return &API{
		patientID: patientID,
		zones:     zones,
		alerts:    alerts,
		persons:   persons,
		oplog:     ops,
		monitor:   monitor,
		logger:    logger,
	}
}

func (a *API) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /status", a.status)
	mux.HandleFunc("GET /zones", a.listZones)
	mux.HandleFunc("POST /zones", a.createZone)
	mux.HandleFunc("PUT /zones/{id}", a.updateZone)
	mux.HandleFunc("DELETE /zones/{id}", a.deleteZone)
	mux.HandleFunc("GET /alerts", a.listAlerts)
	mux.HandleFunc("PATCH /alerts/{id}/status", a.updateAlertStatus)
	mux.HandleFunc("POST /location", a.reportLocation)
	mux.HandleFunc("GET /directory", a.directory)

	return mux
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (a *API) writeError(w http.ResponseWriter, status int, msg string) {
	a.writeJSON(w, status, map[string]string{"error": msg})
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

// status reports connectivity and queue depth for the UI's offline banner.
func (a *API) status(w http.ResponseWriter, r *http.Request) {
	ops, err := a.oplog.ListUnsynced()
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, "failed to read queue")
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{
		"online":  a.monitor.Online(),
		"pending": len(ops),
	})
}

func (a *API) listZones(w http.ResponseWriter, r *http.Request) {
	zones, err := a.zones.List(r.Context(), a.patientID)
	if err != nil {
		a.logger.Error("list zones", "error", err)
		a.writeError(w, http.StatusBadGateway, "zones unavailable")
		return
	}
	a.writeJSON(w, http.StatusOK, zones)
}

func (a *API) createZone(w http.ResponseWriter, r *http.Request) {
	var req ZoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.PatientID == 0 {
		req.PatientID = a.patientID
	}

	zone, err := a.zones.Create(r.Context(), req)
	if err != nil {
		a.logger.Error("create zone", "error", err)
		a.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	a.writeJSON(w, http.StatusCreated, zone)
}

func (a *API) updateZone(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req ZoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	zone, err := a.zones.Update(r.Context(), a.patientID, id, req)
	if err != nil {
		a.logger.Error("update zone", "error", err)
		a.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	a.writeJSON(w, http.StatusOK, zone)
}

func (a *API) deleteZone(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := a.zones.Delete(r.Context(), a.patientID, id); err != nil {
		a.logger.Error("delete zone", "error", err)
		a.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) listAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := a.alerts.List(r.Context(), a.patientID)
	if err != nil {
		a.logger.Error("list alerts", "error", err)
		a.writeError(w, http.StatusBadGateway, "alerts unavailable")
		return
	}
	a.writeJSON(w, http.StatusOK, alerts)
}

func (a *API) updateAlertStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req struct {
		Status          string `json:"status"`
		ResolutionNotes string `json:"resolution_notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	alert, err := a.alerts.UpdateStatus(r.Context(), a.patientID, id, req.Status, req.ResolutionNotes)
	if err != nil {
		a.logger.Error("update alert status", "error", err)
		a.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	a.writeJSON(w, http.StatusOK, alert)
}

// reportLocation forwards a GPS fix for safe-zone evaluation.
func (a *API) reportLocation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Coordinates []float64 `json:"coordinates"` // [lon, lat]
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.Coordinates) != 2 {
		a.writeError(w, http.StatusBadRequest, "coordinates must be [longitude, latitude]")
		return
	}

	location := model.Coordinate{Lon: req.Coordinates[0], Lat: req.Coordinates[1]}
	eval, err := a.zones.CheckLocation(r.Context(), a.patientID, location)
	if err != nil {
		a.logger.Error("check location", "error", err)
		a.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	a.writeJSON(w, http.StatusOK, eval)
}

func (a *API) directory(w http.ResponseWriter, r *http.Request) {
	rec, err := a.persons.Directory(r.Context(), a.patientID)
	if err != nil {
		a.logger.Error("directory", "error", err)
		a.writeError(w, http.StatusBadGateway, "directory unavailable")
		return
	}
	a.writeJSON(w, http.StatusOK, rec)
}
