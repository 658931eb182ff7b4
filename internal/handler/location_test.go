package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cairnhealth/cairn/internal/alert"
	"github.com/cairnhealth/cairn/internal/auth"
	"github.com/cairnhealth/cairn/internal/database"
	"github.com/cairnhealth/cairn/internal/geofence"
	"github.com/cairnhealth/cairn/internal/model"
	"github.com/cairnhealth/cairn/internal/store"
	ws "github.com/cairnhealth/cairn/internal/websocket"
)

type noopNotifier struct{}

func (noopNotifier) SendToUser(string, ws.Message) bool { return false }

func setupLocationHandler(t *testing.T) (*LocationHandler, *store.AlertStore, int64) {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := store.NewUserStore(db)
	zones := store.NewSafeZoneStore(db)
	alerts := store.NewAlertStore(db)

	patient, err := users.Create("uid-rose", model.UserTypePatient, "", "Rose", "Martin", "")
	if err != nil {
		t.Fatalf("create patient: %v", err)
	}
	if _, err := zones.Create(patient.ID, "Home", "", model.Coordinate{Lat: 34.0522, Lon: -118.2437}, 100); err != nil {
		t.Fatalf("create zone: %v", err)
	}

	dispatcher := alert.NewDispatcher(alerts, users, store.NewPushStore(db), noopNotifier{}, nil, logger)
	evaluator := geofence.NewEvaluator(zones, dispatcher, logger)
	return NewLocationHandler(evaluator, logger), alerts, patient.ID
}

func checkLocationRequestFor(body string, patientID int64) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/api/agent/check-location", strings.NewReader(body))
	ctx := auth.WithAuth(r.Context(), auth.AuthContext{
		UserID:   patientID,
		UID:      "uid-rose",
		UserType: model.UserTypePatient,
	})
	return r.WithContext(ctx)
}

func TestCheckLocationInsideZone(t *testing.T) {
	h, alerts, patientID := setupLocationHandler(t)

	rec := httptest.NewRecorder()
	h.CheckLocation(rec, checkLocationRequestFor(`{"coordinates":[-118.2437,34.0522]}`, patientID))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}
	var eval geofence.Evaluation
	if err := json.Unmarshal(rec.Body.Bytes(), &eval); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !eval.InSafeZone || eval.Zone == nil || eval.Zone.Name != "Home" {
		t.Fatalf("eval = %+v", eval)
	}

	_, total, _ := alerts.ListByPatient(patientID, store.AlertFilter{})
	if total != 0 {
		t.Errorf("%d alerts created for in-zone check", total)
	}
}

func TestCheckLocationOutsideZoneCreatesAlert(t *testing.T) {
	h, alerts, patientID := setupLocationHandler(t)

	rec := httptest.NewRecorder()
	h.CheckLocation(rec, checkLocationRequestFor(`{"coordinates":[-118.2437,34.06]}`, patientID))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}
	var eval geofence.Evaluation
	json.Unmarshal(rec.Body.Bytes(), &eval)
	if eval.InSafeZone || eval.Nearest == nil || eval.Nearest.Name != "Home" {
		t.Fatalf("eval = %+v", eval)
	}

	list, total, _ := alerts.ListByPatient(patientID, store.AlertFilter{})
	if total != 1 {
		t.Fatalf("%d alerts, want 1", total)
	}
	if list[0].Type != model.AlertTypeLocation || list[0].Priority != model.PriorityHigh {
		t.Errorf("alert = %+v", list[0])
	}
}

func TestCheckLocationBadRequests(t *testing.T) {
	h, _, patientID := setupLocationHandler(t)

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"missing coordinates", `{}`},
		{"one coordinate", `{"coordinates":[-118.24]}`},
		{"out of range", `{"coordinates":[-118.24,95.0]}`},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		h.CheckLocation(rec, checkLocationRequestFor(tc.body, patientID))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tc.name, rec.Code)
		}
	}
}

func TestCheckLocationUnauthenticatedWithoutPatientID(t *testing.T) {
	h, _, _ := setupLocationHandler(t)

	r := httptest.NewRequest(http.MethodPost, "/api/agent/check-location", strings.NewReader(`{"coordinates":[-118.24,34.05]}`))
	rec := httptest.NewRecorder()
	h.CheckLocation(rec, r)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 when no patient can be resolved", rec.Code)
	}
}
