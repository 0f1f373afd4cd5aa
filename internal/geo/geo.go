// Package geo holds the great-circle helpers used by nearby search.
package geo

import (
	"math"

	"midtown_book/internal/domain"
)

const (
	EarthRadiusKm = 6371.0
	// KmPerDegreeLat is the small-radius approximation used for the bounding box.
	KmPerDegreeLat = 111.32
)

func radians(deg float64) float64 { return deg * math.Pi / 180 }

// Distance is the haversine distance between a and b in kilometres.
func Distance(a, b domain.Coords) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(a.Lat))*math.Cos(radians(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	// rounding can push h a hair above 1 for antipodal points
	h = math.Min(1, h)
	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

// BoundingBox returns a rectangle that contains every point within radiusKm of
// center. It is a pre-filter only; callers must still check Distance.
// Boxes that would cross a pole or the antimeridian widen to the full range.
func BoundingBox(center domain.Coords, radiusKm float64) domain.Box {
	dLat := radiusKm / KmPerDegreeLat
	box := domain.Box{
		MinLat: math.Max(-90, center.Lat-dLat),
		MaxLat: math.Min(90, center.Lat+dLat),
		MinLng: -180,
		MaxLng: 180,
	}
	cos := math.Cos(radians(center.Lat))
	if cos < 1e-9 || box.MinLat == -90 || box.MaxLat == 90 {
		return box
	}
	dLng := radiusKm / (KmPerDegreeLat * cos)
	if center.Lng-dLng < -180 || center.Lng+dLng > 180 {
		return box
	}
	box.MinLng = center.Lng - dLng
	box.MaxLng = center.Lng + dLng
	return box
}
