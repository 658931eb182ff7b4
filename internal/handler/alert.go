package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cairnhealth/cairn/internal/alert"
	"github.com/cairnhealth/cairn/internal/model"
	"github.com/cairnhealth/cairn/internal/store"
)

type AlertHandler struct {
	alerts     *store.AlertStore
	dispatcher *alert.Dispatcher
	logger     *slog.Logger
}

func NewAlertHandler(alerts *store.AlertStore, dispatcher *alert.Dispatcher, logger *slog.Logger) *AlertHandler {
	return &AlertHandler{alerts: alerts, dispatcher: dispatcher, logger: logger}
}

type createAlertRequest struct {
	PatientID   int64           `json:"patient_id"`
	Type        string          `json:"type"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Priority    string          `json:"priority"`
	Metadata    json.RawMessage `json:"metadata"`
}

// Create handles POST /api/alerts
func (h *AlertHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.PatientID == 0 || req.Title == "" {
		writeError(w, http.StatusBadRequest, "patient_id and title are required")
		return
	}

	a, err := h.dispatcher.Dispatch(alert.CreateParams{
		PatientID:   req.PatientID,
		Type:        req.Type,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Metadata:    req.Metadata,
	})
	if err != nil {
		if errors.Is(err, alert.ErrInvalidAlert) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("create alert", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create alert")
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

type medicationReminderRequest struct {
	PatientID    int64  `json:"patient_id"`
	Name         string `json:"name"`
	Dosage       string `json:"dosage"`
	Instructions string `json:"instructions"`
}

// MedicationReminder handles POST /api/agent/medication-reminder. Scheduler
// agents call this when a dose comes due; it files a medication alert and
// notifies the care circle like any other alert.
func (h *AlertHandler) MedicationReminder(w http.ResponseWriter, r *http.Request) {
	var req medicationReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.PatientID == 0 || req.Name == "" {
		writeError(w, http.StatusBadRequest, "patient_id and name are required")
		return
	}

	a, err := h.dispatcher.DispatchMedicationReminder(req.PatientID, req.Name, req.Dosage, req.Instructions)
	if err != nil {
		h.logger.Error("medication reminder", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create reminder")
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// Get handles GET /api/alerts/{id}
func (h *AlertHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	a, err := h.alerts.GetByID(id)
	if err != nil {
		h.logger.Error("get alert", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get alert")
		return
	}
	if a == nil {
		writeError(w, http.StatusNotFound, "alert not found")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type alertPage struct {
	Alerts     []model.Alert `json:"alerts"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	TotalPages int           `json:"total_pages"`
}

// List handles GET /api/patients/{id}/alerts with optional status, type,
// page, and limit query parameters.
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	patientID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	filter := store.AlertFilter{
		Status: r.URL.Query().Get("status"),
		Type:   r.URL.Query().Get("type"),
	}
	if filter.Status != "" && !model.ValidAlertStatus(filter.Status) {
		writeError(w, http.StatusBadRequest, "invalid status filter")
		return
	}
	if filter.Type != "" && !model.ValidAlertType(filter.Type) {
		writeError(w, http.StatusBadRequest, "invalid type filter")
		return
	}
	filter.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	filter.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))

	alerts, total, err := h.alerts.ListByPatient(patientID, filter)
	if err != nil {
		h.logger.Error("list alerts", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}
	if alerts == nil {
		alerts = []model.Alert{}
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	writeJSON(w, http.StatusOK, alertPage{
		Alerts:     alerts,
		Total:      total,
		Page:       page,
		TotalPages: (total + limit - 1) / limit,
	})
}

type updateStatusRequest struct {
	Status          string `json:"status"`
	ResolutionNotes string `json:"resolution_notes"`
}

// UpdateStatus handles PATCH /api/alerts/{id}/status
func (h *AlertHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if !model.ValidAlertStatus(req.Status) {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	a, err := h.dispatcher.UpdateStatus(id, req.Status, req.ResolutionNotes)
	if err != nil {
		if errors.Is(err, store.ErrInvalidTransition) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("update alert status", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update alert")
		return
	}
	if a == nil {
		writeError(w, http.StatusNotFound, "alert not found")
		return
	}
	writeJSON(w, http.StatusOK, a)
}
