package openrouteservice

import (
	"math"
	"time"

	"github.com/haulplan/haulplan/internal/geo"
	"github.com/haulplan/haulplan/internal/routing"
	"github.com/haulplan/haulplan/pkg/polyline"
)

// orsRequest is the POST body of /v2/directions/{profile}.
type orsRequest struct {
	Coordinates  [][]float64 `json:"coordinates"`
	Instructions bool        `json:"instructions"`
	Geometry     bool        `json:"geometry"`
	Units        string      `json:"units"`
}

type orsResponse struct {
	Routes []orsRoute `json:"routes"`
	BBox   []float64  `json:"bbox,omitempty"`
}

type orsRoute struct {
	Summary   routeSummary   `json:"summary"`
	BBox      []float64      `json:"bbox,omitempty"`
	Geometry  string         `json:"geometry"`
	WayPoints []int          `json:"way_points,omitempty"`
	Warnings  []routeWarning `json:"warnings,omitempty"`
}

type routeSummary struct {
	Distance float64 `json:"distance"` // meters
	Duration float64 `json:"duration"` // seconds
}

type routeWarning struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// orsErrorResponse holds either ORS error shape: {"error":"..."} from the
// gateway or {"error":{"code":..,"message":..}} from the routing engine.
type orsErrorResponse struct {
	Error any `json:"error"`
}

// detail returns the engine code (0 for gateway replies) and message.
func (e orsErrorResponse) detail() (code int, message string) {
	switch v := e.Error.(type) {
	case string:
		return 0, v
	case map[string]any:
		if c, ok := v["code"].(float64); ok {
			code = int(c)
		}
		message, _ = v["message"].(string)
	}
	return code, message
}

// Engine error codes meaning the route itself cannot be built.
const (
	codeDistanceLimit = 2004
	codeRouteNotFound = 2009
	codePointNotFound = 2010
)

func unroutable(code int) bool {
	return code == codeDistanceLimit || code == codeRouteNotFound || code == codePointNotFound
}

// toDomain decodes each route's encoded polyline into coordinates.
func (r *orsResponse) toDomain(fetched time.Time) *routing.DirectionsResponse {
	out := &routing.DirectionsResponse{
		Routes:    make([]routing.Route, 0, len(r.Routes)),
		Provider:  ProviderName,
		FetchedAt: fetched,
	}
	for _, route := range r.Routes {
		points := polyline.Decode(route.Geometry)
		coords := make([]geo.Coordinate, 0, len(points))
		for _, p := range points {
			coords = append(coords, geo.Coordinate{Lat: p.Lat, Lng: p.Lon})
		}
		out.Routes = append(out.Routes, routing.Route{
			GeometryPolyline: route.Geometry,
			Geometry:         coords,
			DistanceMeters:   route.Summary.Distance,
			Duration:         time.Duration(math.Round(route.Summary.Duration)) * time.Second,
		})
	}
	return out
}
