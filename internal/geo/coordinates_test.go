package geo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCoordinates(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		want  Coordinate
		found bool
	}{
		{"plain pair", "32.7767, -96.7970", Coordinate{Lat: 32.7767, Lng: -96.797}, true},
		{"no space", "40,-74", Coordinate{Lat: 40, Lng: -74}, true},
		{"embedded in label", "Location at 39.1234, -84.5678", Coordinate{Lat: 39.1234, Lng: -84.5678}, true},
		{"latitude out of range", "95.0, 10.0", Coordinate{}, false},
		{"longitude out of range", "45.0, 190.0", Coordinate{}, false},
		{"address", "Dallas, TX", Coordinate{}, false},
		{"empty", "", Coordinate{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseCoordinates(tt.text)
			assert.Equal(t, tt.found, ok)
			assert.InDelta(t, tt.want.Lat, got.Lat, 1e-9)
			assert.InDelta(t, tt.want.Lng, got.Lng, 1e-9)
		})
	}
}

func TestCoordinate_String(t *testing.T) {
	assert.Equal(t, "32.7767, -96.7970", Coordinate{Lat: 32.77671, Lng: -96.79699}.String())
}

func TestSnapResult_DisplayName(t *testing.T) {
	snapped := SnapResult{Coordinate: Coordinate{Lat: 1, Lng: 2}, Name: "Main St", Snapped: true}
	assert.Equal(t, "Main St", snapped.DisplayName())

	fallback := SnapResult{Coordinate: Coordinate{Lat: 1, Lng: 2}, Err: errors.New("boom")}
	assert.Equal(t, "1.0000, 2.0000", fallback.DisplayName())
}
