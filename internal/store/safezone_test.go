package store

import (
	"testing"

	"github.com/cairnhealth/cairn/internal/model"
)

func TestSafeZoneCreateAppliesDefaultRadius(t *testing.T) {
	zones := NewSafeZoneStore(setupDB(t))

	zone, err := zones.Create(1, "Home", "", model.Coordinate{Lat: 34.05, Lon: -118.24}, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if zone.Radius != model.DefaultZoneRadius {
		t.Errorf("radius = %v, want default %v", zone.Radius, model.DefaultZoneRadius)
	}
	if !zone.IsActive {
		t.Error("new zone not active")
	}
}

func TestSafeZoneListActiveOrdering(t *testing.T) {
	zones := NewSafeZoneStore(setupDB(t))

	first, _ := zones.Create(1, "Home", "", model.Coordinate{Lat: 34.05, Lon: -118.24}, 100)
	second, _ := zones.Create(1, "Park", "", model.Coordinate{Lat: 34.06, Lon: -118.25}, 200)
	third, _ := zones.Create(1, "Clinic", "", model.Coordinate{Lat: 34.07, Lon: -118.26}, 150)

	inactive := false
	if _, err := zones.Update(second.ID, ZoneUpdate{IsActive: &inactive}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	active, err := zones.ListActiveByPatient(1)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("got %d active zones, want 2", len(active))
	}
	if active[0].ID != first.ID || active[1].ID != third.ID {
		t.Errorf("order = [%d, %d], want creation order [%d, %d]",
			active[0].ID, active[1].ID, first.ID, third.ID)
	}

	all, err := zones.ListByPatient(1)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("got %d zones, want 3 including inactive", len(all))
	}
}

func TestSafeZonePartialUpdate(t *testing.T) {
	zones := NewSafeZoneStore(setupDB(t))

	zone, _ := zones.Create(1, "Home", "12 Oak St", model.Coordinate{Lat: 34.05, Lon: -118.24}, 100)

	newRadius := 250.0
	updated, err := zones.Update(zone.ID, ZoneUpdate{Radius: &newRadius})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Radius != 250 {
		t.Errorf("radius = %v, want 250", updated.Radius)
	}
	if updated.Name != "Home" || updated.Address != "12 Oak St" {
		t.Errorf("untouched fields changed: %+v", updated)
	}
	if updated.Center != zone.Center {
		t.Errorf("center changed: %+v", updated.Center)
	}
}

func TestSafeZoneUpdateMissing(t *testing.T) {
	zones := NewSafeZoneStore(setupDB(t))

	name := "x"
	zone, err := zones.Update(999, ZoneUpdate{Name: &name})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if zone != nil {
		t.Fatalf("zone = %+v, want nil for missing id", zone)
	}
}

func TestSafeZoneDelete(t *testing.T) {
	zones := NewSafeZoneStore(setupDB(t))

	zone, _ := zones.Create(1, "Home", "", model.Coordinate{Lat: 34.05, Lon: -118.24}, 100)

	deleted, err := zones.Delete(zone.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !deleted {
		t.Fatal("delete reported no rows")
	}

	deleted, err = zones.Delete(zone.ID)
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if deleted {
		t.Fatal("second delete reported a row")
	}

	got, err := zones.GetByID(zone.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("zone still present: %+v", got)
	}
}
