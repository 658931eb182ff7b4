package geofence

import (
	"math"

	"github.com/cairnhealth/cairn/internal/model"
)

// earthRadius is the mean Earth radius in meters.
const earthRadius = 6371000

// Distance returns the great-circle distance between two coordinates in
// meters, using the Haversine formula.
func Distance(a, b model.Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadius * c
}

// Contains reports whether the point lies within the zone. The boundary is
// inclusive: a point exactly radius meters from the center is inside.
func Contains(p model.Coordinate, zone model.SafeZone) bool {
	return Distance(p, zone.Center) <= zone.Radius
}

// ValidCoordinate reports whether the coordinate is finite and within
// lat ∈ [-90, 90], lon ∈ [-180, 180].
func ValidCoordinate(c model.Coordinate) bool {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || math.IsNaN(c.Lon) || math.IsInf(c.Lon, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}
