package spatial

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceMetersKnownValue(t *testing.T) {
	// One degree of longitude on the equator.
	d := DistanceMeters(0, 0, 0, 1)
	assert.InEpsilon(t, 111195.0, d, 0.01)
}

func TestDistanceMetersSymmetric(t *testing.T) {
	pairs := [][4]float64{
		{0, 0, 0, 1},
		{52.5200, 13.4050, 48.8566, 2.3522},
		{-6.2, 106.816, -6.9175, 107.6191},
		{89.9, -179.9, -89.9, 179.9},
		{37.7749, -122.4194, 37.77491, -122.41941},
		{0, 0, 0, 180},
	}

	for _, p := range pairs {
		ab := DistanceMeters(p[0], p[1], p[2], p[3])
		ba := DistanceMeters(p[2], p[3], p[0], p[1])
		assert.Equal(t, ab, ba, "pair %v", p)
		assert.GreaterOrEqual(t, ab, 0.0)
	}
}

func TestDistanceMetersIdentity(t *testing.T) {
	for _, p := range []LatLng{{0, 0}, {45.5, -73.6}, {-33.9, 151.2}, {90, 0}, {-90, 180}} {
		assert.Equal(t, 0.0, DistanceMeters(p.Lat, p.Lon, p.Lat, p.Lon))
	}
}

func TestDistanceMetersAntipodal(t *testing.T) {
	d := DistanceMeters(0, 0, 0, 180)
	assert.False(t, math.IsNaN(d))
	assert.InEpsilon(t, math.Pi*EarthRadiusMeters, d, 1e-9)
}

func TestDistanceMetersGrowsSmoothly(t *testing.T) {
	prev := 0.0
	for i := 1; i <= 100; i++ {
		d := DistanceMeters(10, 10, 10, 10+float64(i)*0.0001)
		require.Greater(t, d, prev)
		prev = d
	}
}

func TestPathLength(t *testing.T) {
	path := []LatLng{{0, 0}, {0, 1}, {0, 2}}
	assert.InEpsilon(t, 2*DistanceMeters(0, 0, 0, 1), PathLength(path), 1e-12)
	assert.Equal(t, 0.0, PathLength(path[:1]))
	assert.Equal(t, 0.0, PathLength(nil))
}

func TestBounds(t *testing.T) {
	rect := Bounds([]LatLng{{1, 2}, {-1, 5}, {3, -4}})
	assert.InDelta(t, -1, rect.MinLat, 1e-9)
	assert.InDelta(t, 3, rect.MaxLat, 1e-9)
	assert.InDelta(t, -4, rect.MinLon, 1e-9)
	assert.InDelta(t, 5, rect.MaxLon, 1e-9)

	assert.Equal(t, Rect{}, Bounds(nil))
}

func TestMidpoint(t *testing.T) {
	mid := Midpoint(LatLng{0, 0}, LatLng{0, 10})
	assert.InDelta(t, 0, mid.Lat, 1e-9)
	assert.InDelta(t, 5, mid.Lon, 1e-9)
}
