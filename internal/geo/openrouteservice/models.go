package openrouteservice

import "github.com/haulplan/haulplan/internal/geo"

// featureCollection is the GeoJSON body of /geocode/search and /geocode/reverse.
type featureCollection struct {
	Features []feature `json:"features"`
}

type feature struct {
	Geometry struct {
		// [lon, lat]
		Coordinates []float64 `json:"coordinates"`
	} `json:"geometry"`
	Properties struct {
		Name  string `json:"name"`
		Label string `json:"label"`
	} `json:"properties"`
}

// first converts the top feature. Reverse lookups prefer the full label,
// searches prefer the short name.
func (fc *featureCollection) first(preferLabel bool) (*geo.Place, bool) {
	if len(fc.Features) == 0 {
		return nil, false
	}
	f := fc.Features[0]
	if len(f.Geometry.Coordinates) < 2 {
		return nil, false
	}

	name, label := f.Properties.Name, f.Properties.Label
	display := name
	if preferLabel || display == "" {
		display = label
	}
	if display == "" {
		display = name
	}

	return &geo.Place{
		Coordinate: geo.Coordinate{Lat: f.Geometry.Coordinates[1], Lng: f.Geometry.Coordinates[0]},
		Label:      display,
	}, true
}

// errorResponse covers both ORS error shapes: {"error":"..."} from the
// gateway and {"error":{"code":..,"message":..}} from the engine.
type errorResponse struct {
	Error any `json:"error"`
}

func (e errorResponse) message() string {
	switch v := e.Error.(type) {
	case string:
		return v
	case map[string]any:
		if msg, ok := v["message"].(string); ok {
			return msg
		}
	}
	return ""
}
