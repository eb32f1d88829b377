package spatial

import (
	"math"

	"github.com/golang/geo/s2"
)

// Constants
const (
	EarthRadiusMeters = 6371000.0 // Earth's mean radius in meters
	EarthRadiusKm     = 6371.0    // Earth's mean radius in kilometers
)

// LatLng is a coordinate in decimal degrees
type LatLng struct {
	Lat float64
	Lon float64
}

// Rect is a latitude/longitude bounding rectangle in degrees
type Rect struct {
	MinLat float64
	MinLon float64
	MaxLat float64
	MaxLon float64
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// DistanceMeters calculates the great-circle distance between two points in meters
// using the Haversine formula.
//
// The cosine product is formed before it is scaled so that swapping the two
// points yields the identical float result.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	cosProduct := math.Cos(toRad(lat1)) * math.Cos(toRad(lat2))

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	a := sinLat*sinLat + cosProduct*(sinLon*sinLon)
	if a > 1 {
		a = 1
	}

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

// PathLength sums the haversine distance between consecutive points
func PathLength(points []LatLng) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += DistanceMeters(points[i-1].Lat, points[i-1].Lon, points[i].Lat, points[i].Lon)
	}
	return total
}

// Bounds returns the bounding rectangle of a path using S2 rect expansion.
// For paths crossing the antimeridian MinLon is greater than MaxLon.
func Bounds(points []LatLng) Rect {
	if len(points) == 0 {
		return Rect{}
	}

	rect := s2.EmptyRect()
	for _, p := range points {
		rect = rect.AddPoint(s2.LatLngFromDegrees(p.Lat, p.Lon))
	}

	return Rect{
		MinLat: rect.Lo().Lat.Degrees(),
		MinLon: rect.Lo().Lng.Degrees(),
		MaxLat: rect.Hi().Lat.Degrees(),
		MaxLon: rect.Hi().Lng.Degrees(),
	}
}

// Midpoint calculates the midpoint between two points
func Midpoint(a, b LatLng) LatLng {
	p1 := s2.LatLngFromDegrees(a.Lat, a.Lon)
	p2 := s2.LatLngFromDegrees(b.Lat, b.Lon)

	// Use S2 interpolation
	mid := s2.Interpolate(0.5, s2.PointFromLatLng(p1), s2.PointFromLatLng(p2))
	midLatLng := s2.LatLngFromPoint(mid)

	return LatLng{Lat: midLatLng.Lat.Degrees(), Lon: midLatLng.Lng.Degrees()}
}
