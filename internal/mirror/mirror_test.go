package mirror

import (
	"testing"

	"github.com/cairnhealth/cairn/internal/database"
	"github.com/cairnhealth/cairn/internal/model"
)

func setupStore(t *testing.T) *Store {
	t.Helper()

	db, err := database.OpenLocal(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := NewStore(db)
	if err != nil {
		t.Fatalf("create mirror store: %v", err)
	}
	return store
}

func TestReplaceAndGet(t *testing.T) {
	store := setupStore(t)

	zones := []model.SafeZone{
		{ID: 1, Name: "Home", Center: model.Coordinate{Lat: 34.05, Lon: -118.24}, Radius: 100},
		{ID: 2, Name: "Park", Center: model.Coordinate{Lat: 34.06, Lon: -118.25}, Radius: 250},
	}
	if err := store.Replace(CollectionSafeZones, 7, zones); err != nil {
		t.Fatalf("replace: %v", err)
	}

	var got []model.SafeZone
	found, err := store.Get(CollectionSafeZones, 7, &got)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !found {
		t.Fatal("snapshot not found")
	}
	if len(got) != 2 || got[0].Name != "Home" || got[1].Radius != 250 {
		t.Fatalf("got = %+v", got)
	}
}

func TestReplaceOverwritesWholesale(t *testing.T) {
	store := setupStore(t)

	if err := store.Replace(CollectionSafeZones, 7, []model.SafeZone{{ID: 1}, {ID: 2}}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if err := store.Replace(CollectionSafeZones, 7, []model.SafeZone{{ID: 3}}); err != nil {
		t.Fatalf("replace: %v", err)
	}

	var got []model.SafeZone
	if _, err := store.Get(CollectionSafeZones, 7, &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 1 || got[0].ID != 3 {
		t.Fatalf("got = %+v, want only the replacement", got)
	}
}

func TestSnapshotsAreScopedByCollectionAndPatient(t *testing.T) {
	store := setupStore(t)

	store.Replace(CollectionSafeZones, 7, []model.SafeZone{{ID: 1}})
	store.Replace(CollectionSafeZones, 8, []model.SafeZone{{ID: 2}})
	store.Replace(CollectionAlerts, 7, []model.Alert{{ID: 9}})

	var zones []model.SafeZone
	if _, err := store.Get(CollectionSafeZones, 8, &zones); err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(zones) != 1 || zones[0].ID != 2 {
		t.Fatalf("zones = %+v", zones)
	}

	var alerts []model.Alert
	if _, err := store.Get(CollectionAlerts, 7, &alerts); err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(alerts) != 1 || alerts[0].ID != 9 {
		t.Fatalf("alerts = %+v", alerts)
	}
}

func TestGetMissingSnapshot(t *testing.T) {
	store := setupStore(t)

	var zones []model.SafeZone
	found, err := store.Get(CollectionSafeZones, 99, &zones)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if found {
		t.Fatal("found a snapshot that was never written")
	}

	at, err := store.UpdatedAt(CollectionSafeZones, 99)
	if err != nil {
		t.Fatalf("updated at: %v", err)
	}
	if !at.IsZero() {
		t.Errorf("updated at = %v, want zero time", at)
	}
}

func TestDelete(t *testing.T) {
	store := setupStore(t)

	store.Replace(CollectionPersons, 7, model.DirectoryRecord{ID: 7})
	if err := store.Delete(CollectionPersons, 7); err != nil {
		t.Fatalf("delete: %v", err)
	}

	var rec model.DirectoryRecord
	found, err := store.Get(CollectionPersons, 7, &rec)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if found {
		t.Fatal("snapshot still present after delete")
	}
}
