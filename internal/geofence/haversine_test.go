package geofence

import (
	"math"
	"testing"

	"github.com/cairnhealth/cairn/internal/model"
)

func TestDistanceZero(t *testing.T) {
	p := model.Coordinate{Lat: 34.0522, Lon: -118.2437}
	if d := Distance(p, p); d != 0 {
		t.Errorf("distance to self = %v, want 0", d)
	}
}

func TestDistanceSymmetric(t *testing.T) {
	a := model.Coordinate{Lat: 34.0522, Lon: -118.2437}
	b := model.Coordinate{Lat: 40.7128, Lon: -74.0060}

	d1 := Distance(a, b)
	d2 := Distance(b, a)
	if math.Abs(d1-d2) > 1e-6 {
		t.Errorf("distance not symmetric: %v != %v", d1, d2)
	}
}

func TestDistanceKnownValue(t *testing.T) {
	// One arc-minute of latitude is one nautical mile (~1852 m).
	a := model.Coordinate{Lat: 0, Lon: 0}
	b := model.Coordinate{Lat: 1.0 / 60.0, Lon: 0}

	d := Distance(a, b)
	if math.Abs(d-1852) > 5 {
		t.Errorf("distance = %v, want ~1852", d)
	}
}

func TestContainsBoundaryInclusive(t *testing.T) {
	center := model.Coordinate{Lat: 34.0522, Lon: -118.2437}
	p := model.Coordinate{Lat: 34.06, Lon: -118.2437}
	zone := model.SafeZone{Center: center, Radius: Distance(p, center)}

	if !Contains(p, zone) {
		t.Error("point exactly radius meters from center should be inside")
	}

	zone.Radius -= 0.001
	if Contains(p, zone) {
		t.Error("point just beyond radius should be outside")
	}
}

func TestContainsMatchesDistance(t *testing.T) {
	zone := model.SafeZone{
		Center: model.Coordinate{Lat: 34.0522, Lon: -118.2437},
		Radius: 100,
	}
	points := []model.Coordinate{
		{Lat: 34.0522, Lon: -118.2437},
		{Lat: 34.0531, Lon: -118.2437},
		{Lat: 34.06, Lon: -118.2437},
		{Lat: -33.8688, Lon: 151.2093},
	}
	for _, p := range points {
		want := Distance(p, zone.Center) <= zone.Radius
		if got := Contains(p, zone); got != want {
			t.Errorf("Contains(%v) = %v, want %v", p, got, want)
		}
	}
}

func TestValidCoordinate(t *testing.T) {
	valid := []model.Coordinate{
		{Lat: 0, Lon: 0},
		{Lat: 90, Lon: 180},
		{Lat: -90, Lon: -180},
		{Lat: 34.0522, Lon: -118.2437},
	}
	for _, c := range valid {
		if !ValidCoordinate(c) {
			t.Errorf("ValidCoordinate(%v) = false, want true", c)
		}
	}

	invalid := []model.Coordinate{
		{Lat: 90.0001, Lon: 0},
		{Lat: -91, Lon: 0},
		{Lat: 0, Lon: 180.5},
		{Lat: 0, Lon: -181},
		{Lat: math.NaN(), Lon: 0},
		{Lat: 0, Lon: math.Inf(1)},
	}
	for _, c := range invalid {
		if ValidCoordinate(c) {
			t.Errorf("ValidCoordinate(%v) = true, want false", c)
		}
	}
}
