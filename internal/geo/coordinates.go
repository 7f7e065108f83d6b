package geo

import (
	"regexp"
	"strconv"
)

// coordinatePattern matches the first "lat, lng" pair anywhere in the text,
// so labels such as "Location at 39.1234, -84.5678" are accepted too.
var coordinatePattern = regexp.MustCompile(`(-?\d+(?:\.\d+)?)\s*,\s*(-?\d+(?:\.\d+)?)`)

// ParseCoordinates extracts a coordinate pair from text. It reports false when
// no pair is present or the pair is outside WGS84 bounds.
func ParseCoordinates(text string) (Coordinate, bool) {
	m := coordinatePattern.FindStringSubmatch(text)
	if m == nil {
		return Coordinate{}, false
	}
	lat, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Coordinate{}, false
	}
	lng, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return Coordinate{}, false
	}
	c := Coordinate{Lat: lat, Lng: lng}
	if !c.Valid() {
		return Coordinate{}, false
	}
	return c, true
}

// SnapResult is the outcome of snapping a raw coordinate to the nearest
// addressable point. When Snapped is false, Coordinate is the input point,
// Name is empty and Err holds the reason.
type SnapResult struct {
	Coordinate Coordinate
	Name       string
	Snapped    bool
	Err        error
}

// DisplayName returns the snapped label or the coordinate text.
func (r SnapResult) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Coordinate.String()
}
