package companion

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cairnhealth/cairn/internal/model"
)

func TestApplierReplaysZoneCreate(t *testing.T) {
	var gotPath, gotMethod string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(model.SafeZone{ID: 11, Name: "Park"})
	}))
	defer server.Close()

	payload, _ := json.Marshal(ZoneRequest{PatientID: 7, Name: "Park", Coordinates: []float64{-118.25, 34.06}})
	op := model.PendingOperation{
		ID:         "op-1",
		EntityType: model.EntitySafeZone,
		Operation:  model.OpCreate,
		Payload:    payload,
	}

	applier := NewApplier(NewClient(server.URL, "token"))
	if err := applier.Apply(context.Background(), op); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if gotMethod != http.MethodPost || gotPath != "/api/safe-zones" {
		t.Errorf("request = %s %s", gotMethod, gotPath)
	}
	var req ZoneRequest
	if err := json.Unmarshal(gotBody, &req); err != nil {
		t.Fatalf("decode replayed body: %v", err)
	}
	if req.Name != "Park" || req.PatientID != 7 {
		t.Errorf("replayed request = %+v", req)
	}
}

func TestApplierReplaysAlertStatusUpdate(t *testing.T) {
	var gotPath, gotMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		json.NewEncoder(w).Encode(model.Alert{ID: 9, Status: model.StatusResolved})
	}))
	defer server.Close()

	payload, _ := json.Marshal(alertStatusOp{ID: 9, Status: model.StatusResolved, ResolutionNotes: "found her"})
	op := model.PendingOperation{
		ID:         "op-2",
		EntityType: model.EntityAlert,
		Operation:  model.OpUpdate,
		Payload:    payload,
	}

	applier := NewApplier(NewClient(server.URL, "token"))
	if err := applier.Apply(context.Background(), op); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if gotMethod != http.MethodPatch || gotPath != "/api/alerts/9/status" {
		t.Errorf("request = %s %s", gotMethod, gotPath)
	}
}

func TestApplierRejectsUnknownEntity(t *testing.T) {
	applier := NewApplier(NewClient(unreachableURL, ""))
	op := model.PendingOperation{EntityType: "medication", Operation: model.OpCreate, Payload: []byte(`{}`)}
	if err := applier.Apply(context.Background(), op); err == nil {
		t.Fatal("expected error for unknown entity type")
	}
}

func TestApplierSurfacesHubUnavailable(t *testing.T) {
	payload, _ := json.Marshal(ZoneRequest{Name: "Park"})
	op := model.PendingOperation{
		EntityType: model.EntitySafeZone,
		Operation:  model.OpCreate,
		Payload:    payload,
	}

	applier := NewApplier(NewClient(unreachableURL, ""))
	if err := applier.Apply(context.Background(), op); err == nil {
		t.Fatal("expected error when hub is unreachable")
	}
}
