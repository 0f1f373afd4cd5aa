package geo_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"midtown_book/internal/domain"
	"midtown_book/internal/geo"
)

var lakeland = domain.Coords{Lat: 28.0395, Lng: -81.9498}

func TestDistance_ZeroAndSymmetric(t *testing.T) {
	points := []domain.Coords{
		lakeland,
		{Lat: 27.9506, Lng: -82.4572}, // Tampa
		{Lat: 51.5072, Lng: -0.1276},
		{Lat: -33.8688, Lng: 151.2093},
		{Lat: 0, Lng: 179.9},
		{Lat: 0, Lng: -179.9},
	}
	for _, a := range points {
		assert.Zero(t, geo.Distance(a, a))
		for _, b := range points {
			assert.InDelta(t, geo.Distance(a, b), geo.Distance(b, a), 1e-9)
		}
	}
}

func TestDistance_KnownPair(t *testing.T) {
	tampa := domain.Coords{Lat: 27.9506, Lng: -82.4572}
	// about 51 km by great circle
	assert.InDelta(t, 51.0, geo.Distance(lakeland, tampa), 1.5)

	// across the antimeridian is short, not half the planet
	assert.Less(t, geo.Distance(domain.Coords{Lat: 0, Lng: 179.9}, domain.Coords{Lat: 0, Lng: -179.9}), 25.0)
}

func TestBoundingBox_ContainsRadius(t *testing.T) {
	box := geo.BoundingBox(lakeland, 5)
	assert.True(t, box.Contains(lakeland))

	// points on the circle, every 15 degrees, stay inside the box
	for deg := 0.0; deg < 360; deg += 15 {
		rad := deg * math.Pi / 180
		p := domain.Coords{
			Lat: lakeland.Lat + (4.99/geo.KmPerDegreeLat)*math.Cos(rad),
			Lng: lakeland.Lng + (4.99/(geo.KmPerDegreeLat*math.Cos(lakeland.Lat*math.Pi/180)))*math.Sin(rad),
		}
		assert.True(t, box.Contains(p), "bearing %v", deg)
	}
}

func TestBoundingBox_CornerIsOutsideRadius(t *testing.T) {
	// the corner of the box is inside the pre-filter but farther than the radius
	box := geo.BoundingBox(lakeland, 5)
	corner := domain.Coords{Lat: box.MaxLat, Lng: box.MaxLng}
	assert.True(t, box.Contains(corner))
	assert.Greater(t, geo.Distance(lakeland, corner), 5.0)
}

func TestBoundingBox_WidensNearPolesAndAntimeridian(t *testing.T) {
	polar := geo.BoundingBox(domain.Coords{Lat: 89.99, Lng: 10}, 10)
	assert.Equal(t, -180.0, polar.MinLng)
	assert.Equal(t, 180.0, polar.MaxLng)
	assert.Equal(t, 90.0, polar.MaxLat)

	dateline := geo.BoundingBox(domain.Coords{Lat: 0, Lng: 179.99}, 10)
	assert.Equal(t, -180.0, dateline.MinLng)
	assert.Equal(t, 180.0, dateline.MaxLng)
}
