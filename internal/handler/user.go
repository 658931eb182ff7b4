package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/cairnhealth/cairn/internal/model"
	"github.com/cairnhealth/cairn/internal/store"
)

type UserHandler struct {
	users  *store.UserStore
	logger *slog.Logger
}

func NewUserHandler(users *store.UserStore, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

type createUserRequest struct {
	UID       string `json:"uid"`
	Type      string `json:"type"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

// Create handles POST /api/users
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.UID == "" || req.FirstName == "" {
		writeError(w, http.StatusBadRequest, "uid and first_name are required")
		return
	}
	if req.Type != model.UserTypePatient && req.Type != model.UserTypeCaregiver {
		writeError(w, http.StatusBadRequest, "type must be patient or caregiver")
		return
	}

	user, err := h.users.Create(req.UID, req.Type, req.Email, req.FirstName, req.LastName, req.Phone)
	if err != nil {
		h.logger.Error("create user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// Get handles GET /api/users/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	user, err := h.users.GetByID(id)
	if err != nil {
		h.logger.Error("get user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type addCaregiverRequest struct {
	CaregiverID int64 `json:"caregiver_id"`
}

// AddCaregiver handles POST /api/patients/{id}/caregivers
func (h *UserHandler) AddCaregiver(w http.ResponseWriter, r *http.Request) {
	patientID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req addCaregiverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	patient, err := h.users.GetByID(patientID)
	if err != nil {
		h.logger.Error("get patient", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to look up patient")
		return
	}
	if patient == nil || patient.Type != model.UserTypePatient {
		writeError(w, http.StatusNotFound, "patient not found")
		return
	}

	caregiver, err := h.users.GetByID(req.CaregiverID)
	if err != nil {
		h.logger.Error("get caregiver", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to look up caregiver")
		return
	}
	if caregiver == nil || caregiver.Type != model.UserTypeCaregiver {
		writeError(w, http.StatusNotFound, "caregiver not found")
		return
	}

	if err := h.users.AddCaregiver(patientID, req.CaregiverID); err != nil {
		h.logger.Error("add caregiver", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to add caregiver")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Directory handles GET /api/patients/{id}/directory
func (h *UserHandler) Directory(w http.ResponseWriter, r *http.Request) {
	patientID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	record, err := h.users.Lookup(patientID)
	if err != nil {
		h.logger.Error("directory lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to look up directory")
		return
	}
	if record == nil {
		writeError(w, http.StatusNotFound, "patient not found")
		return
	}
	writeJSON(w, http.StatusOK, record)
}
