package companion

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cairnhealth/cairn/internal/database"
	"github.com/cairnhealth/cairn/internal/mirror"
	"github.com/cairnhealth/cairn/internal/model"
	"github.com/cairnhealth/cairn/internal/oplog"
)

// unreachableURL fails fast with a connection error.
const unreachableURL = "http://127.0.0.1:1"

type testEnv struct {
	mirror *mirror.Store
	oplog  *oplog.Store
	logger *slog.Logger
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.OpenLocal(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	m, err := mirror.NewStore(db)
	if err != nil {
		t.Fatalf("create mirror: %v", err)
	}
	ops, err := oplog.NewStore(db)
	if err != nil {
		t.Fatalf("create oplog: %v", err)
	}
	return &testEnv{
		mirror: m,
		oplog:  ops,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func (e *testEnv) zoneService(baseURL string) *SafeZoneService {
	return NewSafeZoneService(NewClient(baseURL, "token"), e.mirror, e.oplog, nil, e.logger)
}

func TestListRefreshesMirrorThenServesOffline(t *testing.T) {
	env := setupEnv(t)

	zones := []model.SafeZone{{ID: 1, PatientID: 7, Name: "Home", Radius: 100, IsActive: true}}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/patients/7/safe-zones" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer token" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		json.NewEncoder(w).Encode(zones)
	}))

	svc := env.zoneService(server.URL)
	got, err := svc.List(context.Background(), 7)
	if err != nil {
		t.Fatalf("list online: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Home" {
		t.Fatalf("got = %+v", got)
	}
	server.Close()

	// Hub gone: the mirror serves the last snapshot.
	offline := env.zoneService(unreachableURL)
	got, err = offline.List(context.Background(), 7)
	if err != nil {
		t.Fatalf("list offline: %v", err)
	}
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("offline got = %+v", got)
	}
}

func TestListOfflineWithEmptyMirror(t *testing.T) {
	env := setupEnv(t)

	svc := env.zoneService(unreachableURL)
	if _, err := svc.List(context.Background(), 7); err == nil {
		t.Fatal("expected error with no hub and no mirror snapshot")
	}
}

func TestCreateOfflineQueuesAndCachesProvisionally(t *testing.T) {
	env := setupEnv(t)
	env.mirror.Replace(mirror.CollectionSafeZones, 7, []model.SafeZone{})

	svc := env.zoneService(unreachableURL)
	zone, err := svc.Create(context.Background(), ZoneRequest{
		PatientID:   7,
		Name:        "Park",
		Coordinates: []float64{-118.25, 34.06},
		Radius:      250,
	})
	if err != nil {
		t.Fatalf("create offline: %v", err)
	}
	if zone.ID >= 0 {
		t.Errorf("provisional id = %d, want negative", zone.ID)
	}
	if zone.Center.Lat != 34.06 || zone.Center.Lon != -118.25 {
		t.Errorf("center = %+v, want [lon, lat] decoded", zone.Center)
	}

	ops, err := env.oplog.ListUnsynced()
	if err != nil {
		t.Fatalf("list ops: %v", err)
	}
	if len(ops) != 1 || ops[0].EntityType != model.EntitySafeZone || ops[0].Operation != model.OpCreate {
		t.Fatalf("ops = %+v", ops)
	}

	var cached []model.SafeZone
	if _, err := env.mirror.Get(mirror.CollectionSafeZones, 7, &cached); err != nil {
		t.Fatalf("get mirror: %v", err)
	}
	if len(cached) != 1 || cached[0].Name != "Park" {
		t.Fatalf("cached = %+v", cached)
	}
}

func TestDeleteOfflineRemovesFromMirror(t *testing.T) {
	env := setupEnv(t)
	env.mirror.Replace(mirror.CollectionSafeZones, 7, []model.SafeZone{{ID: 4, Name: "Home"}, {ID: 5, Name: "Park"}})

	svc := env.zoneService(unreachableURL)
	if err := svc.Delete(context.Background(), 7, 4); err != nil {
		t.Fatalf("delete offline: %v", err)
	}

	var cached []model.SafeZone
	env.mirror.Get(mirror.CollectionSafeZones, 7, &cached)
	if len(cached) != 1 || cached[0].ID != 5 {
		t.Fatalf("cached = %+v", cached)
	}

	ops, _ := env.oplog.ListUnsynced()
	if len(ops) != 1 || ops[0].Operation != model.OpDelete {
		t.Fatalf("ops = %+v", ops)
	}
}

func TestCheckLocationOfflineZoneExit(t *testing.T) {
	env := setupEnv(t)
	env.mirror.Replace(mirror.CollectionSafeZones, 7, []model.SafeZone{
		{ID: 3, PatientID: 7, Name: "Home", Center: model.Coordinate{Lat: 34.0522, Lon: -118.2437}, Radius: 100, IsActive: true},
	})

	svc := env.zoneService(unreachableURL)
	eval, err := svc.CheckLocation(context.Background(), 7, model.Coordinate{Lat: 34.06, Lon: -118.2437})
	if err != nil {
		t.Fatalf("check location offline: %v", err)
	}
	if eval.InSafeZone {
		t.Fatal("point ~860m from center evaluated as inside a 100m zone")
	}
	if eval.Nearest == nil || eval.Nearest.Name != "Home" {
		t.Fatalf("nearest = %+v", eval.Nearest)
	}

	ops, err := env.oplog.ListUnsynced()
	if err != nil {
		t.Fatalf("list ops: %v", err)
	}
	if len(ops) != 1 || ops[0].EntityType != model.EntityAlert {
		t.Fatalf("ops = %+v, want queued zone-exit alert", ops)
	}

	var req AlertRequest
	if err := json.Unmarshal(ops[0].Payload, &req); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if req.Type != model.AlertTypeLocation || req.Priority != model.PriorityHigh {
		t.Errorf("queued alert = %+v", req)
	}
	if req.Title != "Safe Zone Exit Alert" {
		t.Errorf("title = %q", req.Title)
	}
}

func TestCheckLocationOfflineInsideZone(t *testing.T) {
	env := setupEnv(t)
	env.mirror.Replace(mirror.CollectionSafeZones, 7, []model.SafeZone{
		{ID: 3, PatientID: 7, Name: "Home", Center: model.Coordinate{Lat: 34.0522, Lon: -118.2437}, Radius: 100, IsActive: true},
	})

	svc := env.zoneService(unreachableURL)
	eval, err := svc.CheckLocation(context.Background(), 7, model.Coordinate{Lat: 34.0522, Lon: -118.2437})
	if err != nil {
		t.Fatalf("check location: %v", err)
	}
	if !eval.InSafeZone {
		t.Fatal("zone center evaluated as outside")
	}

	ops, _ := env.oplog.ListUnsynced()
	if len(ops) != 0 {
		t.Fatalf("ops = %+v, want none when inside a zone", ops)
	}
}

func TestEnqueueRequestsSyncPass(t *testing.T) {
	env := setupEnv(t)
	env.mirror.Replace(mirror.CollectionSafeZones, 7, []model.SafeZone{
		{ID: 3, PatientID: 7, Name: "Home", Center: model.Coordinate{Lat: 34.0522, Lon: -118.2437}, Radius: 100, IsActive: true},
	})

	var syncRequests int
	trigger := func() { syncRequests++ }
	svc := NewSafeZoneService(NewClient(unreachableURL, "token"), env.mirror, env.oplog, trigger, env.logger)

	// Every queued mutation should nudge the replay loop immediately.
	if _, err := svc.Create(context.Background(), ZoneRequest{PatientID: 7, Name: "Park"}); err != nil {
		t.Fatalf("create offline: %v", err)
	}
	if syncRequests != 1 {
		t.Fatalf("sync requests after create = %d, want 1", syncRequests)
	}

	if err := svc.Delete(context.Background(), 7, 3); err != nil {
		t.Fatalf("delete offline: %v", err)
	}
	if syncRequests != 2 {
		t.Fatalf("sync requests after delete = %d, want 2", syncRequests)
	}

	// Offline zone-exit detection queues an alert and requests a pass too.
	if _, err := svc.CheckLocation(context.Background(), 7, model.Coordinate{Lat: 34.06, Lon: -118.2437}); err != nil {
		t.Fatalf("check location offline: %v", err)
	}
	if syncRequests != 3 {
		t.Fatalf("sync requests after zone exit = %d, want 3", syncRequests)
	}
}

func TestRemoteErrorsAreNotMasked(t *testing.T) {
	env := setupEnv(t)
	env.mirror.Replace(mirror.CollectionSafeZones, 7, []model.SafeZone{{ID: 1}})

	// A definitive 4xx from the hub must surface, not fall back to cache.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{"error": "caregiver access required"})
	}))
	defer server.Close()

	svc := env.zoneService(server.URL)
	if err := svc.Delete(context.Background(), 7, 1); err == nil {
		t.Fatal("expected hub rejection to surface")
	}

	ops, _ := env.oplog.ListUnsynced()
	if len(ops) != 0 {
		t.Fatalf("ops = %+v, rejection must not be queued", ops)
	}
}
