package polyline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	dallas  = Coordinate{Lat: 32.7767, Lon: -96.797}
	waco    = Coordinate{Lat: 31.5493, Lon: -97.1467}
	austin  = Coordinate{Lat: 30.2672, Lon: -97.7431}
	houston = Coordinate{Lat: 29.7604, Lon: -95.3698}
)

// googleExample is the reference polyline from the format documentation.
const googleExample = "_p~iF~ps|U_ulLnnqC_mqNvxq`@"

func assertCoordsNear(t *testing.T, want, got []Coordinate, delta float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i].Lat, got[i].Lat, delta, "lat %d", i)
		assert.InDelta(t, want[i].Lon, got[i].Lon, delta, "lon %d", i)
	}
}

func TestDecode(t *testing.T) {
	want := []Coordinate{
		{Lat: 38.5, Lon: -120.2},
		{Lat: 40.7, Lon: -120.95},
		{Lat: 43.252, Lon: -126.453},
	}
	assertCoordsNear(t, want, Decode(googleExample), 1e-9)

	// Each point is a delta from the previous one, so prefixes decode alone.
	assertCoordsNear(t, want[:1], Decode("_p~iF~ps|U"), 1e-9)

	assert.Nil(t, Decode(""))
}

func TestEncode(t *testing.T) {
	assert.Equal(t, googleExample, Encode([]Coordinate{
		{Lat: 38.5, Lon: -120.2},
		{Lat: 40.7, Lon: -120.95},
		{Lat: 43.252, Lon: -126.453},
	}))
	assert.Empty(t, Encode(nil))
	assert.Empty(t, Encode([]Coordinate{}))
}

func TestEncodeDecode_KeepsFiveDecimals(t *testing.T) {
	route := []Coordinate{
		{Lat: 32.77671, Lon: -96.79699},
		{Lat: 32.78012, Lon: -96.80044},
		waco,
		austin,
		{Lat: -33.86882, Lon: 151.20929},
	}
	assertCoordsNear(t, route, Decode(Encode(route)), 0.5e-5)
}

func TestDistance(t *testing.T) {
	tests := []struct {
		name  string
		a, b  Coordinate
		want  float64
		delta float64
	}{
		{"same point", dallas, dallas, 0, 0},
		{"Dallas to Houston", dallas, houston, 362_000, 5_000},
		{"New York to Los Angeles", Coordinate{Lat: 40.7128, Lon: -74.006}, Coordinate{Lat: 34.0522, Lon: -118.2437}, 3_936_000, 10_000},
		{"one degree of latitude", Coordinate{}, Coordinate{Lat: 1}, 111_195, 10},
		{"antipodes", Coordinate{}, Coordinate{Lon: 180}, math.Pi * EarthRadiusMeters, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.a, tt.b)
			assert.InDelta(t, tt.want, got, tt.delta)
			assert.InDelta(t, got, Distance(tt.b, tt.a), 1e-6, "distance must be symmetric")
		})
	}
}

func TestLength(t *testing.T) {
	assert.Zero(t, Length(nil))
	assert.Zero(t, Length([]Coordinate{dallas}))

	viaWaco := Length([]Coordinate{dallas, waco, austin})
	assert.InDelta(t, 290_000, viaWaco, 10_000)
	assert.GreaterOrEqual(t, viaWaco, Distance(dallas, austin), "a detour is never shorter")
}

func BenchmarkDecode(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = Decode(googleExample)
	}
}
