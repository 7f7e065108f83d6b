// Package trip assembles a complete HOS trip plan: it resolves the three
// locations, routes both legs, runs the hours-of-service engine and returns
// the day logs together with the route geometry.
package trip

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/haulplan/haulplan/internal/geo"
	"github.com/haulplan/haulplan/internal/hos"
	"github.com/haulplan/haulplan/internal/routing"
	"github.com/haulplan/haulplan/internal/telemetry"
	"github.com/haulplan/haulplan/pkg/polyline"
)

const tracerName = "github.com/haulplan/haulplan/internal/trip"

const (
	// DefaultMaxLegMeters keeps legs safely under the routing provider's
	// ~6000 km request limit.
	DefaultMaxLegMeters = 5_800_000.0

	// DefaultDayStart is the local clock time a trip starts when the
	// request does not name one.
	DefaultDayStart = 6 * time.Hour

	// MetersPerMile converts route distances.
	MetersPerMile = 1609.34
)

// Router fetches a drivable leg between two points.
type Router interface {
	Route(ctx context.Context, from, to geo.Coordinate) (*routing.Leg, error)
}

// Metrics receives one outcome per Calculate call.
type Metrics interface {
	RecordTrip(ctx context.Context, o telemetry.TripOutcome)
}

// Request is the input to Calculate.
type Request struct {
	Start     string
	Pickup    string
	Dropoff   string
	CycleUsed float64 // hours already used in the weekly cycle

	// StartTime overrides the default start (today at DayStart).
	StartTime *time.Time
}

// Summary is the headline of a planned trip.
type Summary struct {
	TotalDays          int
	TotalDrivingHours  float64
	TotalDistanceMiles float64
	FuelingStops       int
}

// Result is a fully planned trip.
type Result struct {
	Geometry           []geo.Coordinate
	Logs               []hos.DayLog
	TotalDistanceMiles float64
	TotalDriving       time.Duration
	Start              geo.Location
	Pickup             geo.Location
	Dropoff            geo.Location
	Legs               []routing.Leg
	Summary            Summary
	Stats              hos.Stats
	StartTime          time.Time
}

// Config holds configuration for the trip service.
type Config struct {
	Resolver geo.Resolver
	Router   Router
	Engine   *hos.Engine

	// Metrics receives per-trip measurements (optional).
	Metrics Metrics

	Logger zerolog.Logger

	// MaxLegMeters bounds the straight-line length of each leg (default: 5 800 km).
	MaxLegMeters float64

	// Location is the time zone of the default start time (default: UTC).
	Location *time.Location

	// DayStart is the default start clock time (default: 06:00).
	DayStart time.Duration

	// Now returns the current time (default: time.Now).
	Now func() time.Time
}

// Service plans trips. It is safe for concurrent use.
type Service struct {
	resolver     geo.Resolver
	router       Router
	engine       *hos.Engine
	metrics      Metrics
	logger       zerolog.Logger
	maxLegMeters float64
	location     *time.Location
	dayStart     time.Duration
	now          func() time.Time
}

// NewService creates a trip service.
func NewService(cfg Config) *Service {
	if cfg.MaxLegMeters <= 0 {
		cfg.MaxLegMeters = DefaultMaxLegMeters
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.DayStart <= 0 {
		cfg.DayStart = DefaultDayStart
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		resolver:     cfg.Resolver,
		router:       cfg.Router,
		engine:       cfg.Engine,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger.With().Str("component", "trip_service").Logger(),
		maxLegMeters: cfg.MaxLegMeters,
		location:     cfg.Location,
		dayStart:     cfg.DayStart,
		now:          cfg.Now,
	}
}

// Rules returns the rule set trips are planned under.
func (s *Service) Rules() hos.RuleSet {
	return s.engine.Rules()
}

// MaxLegMeters returns the straight-line leg limit.
func (s *Service) MaxLegMeters() float64 {
	return s.maxLegMeters
}

// Calculate plans a trip. Every failure is a *Error; no partial result is
// returned.
func (s *Service) Calculate(ctx context.Context, req Request) (*Result, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "trip.Calculate")
	defer span.End()

	began := time.Now()
	res, err := s.calculate(ctx, req)

	outcome := telemetry.TripOutcome{Duration: time.Since(began)}
	if err != nil {
		outcome.ErrorKind = string(KindOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Warn().Err(err).
			Str("kind", outcome.ErrorKind).
			Msg("trip planning failed")
	} else {
		outcome.Days = len(res.Logs)
		outcome.Iterations = res.Stats.Iterations
		outcome.Breaks = res.Stats.Breaks
		outcome.DailyResets = res.Stats.DailyResets
		outcome.WeeklyRestarts = res.Stats.WeeklyRestarts
		outcome.DistanceMiles = res.TotalDistanceMiles
		span.SetAttributes(
			attribute.Int("trip.days", len(res.Logs)),
			attribute.Float64("trip.distance_miles", res.TotalDistanceMiles),
		)
		s.logger.Info().
			Int("days", len(res.Logs)).
			Float64("miles", res.TotalDistanceMiles).
			Dur("driving", res.TotalDriving).
			Dur("elapsed", outcome.Duration).
			Msg("trip planned")
	}
	if s.metrics != nil {
		s.metrics.RecordTrip(ctx, outcome)
	}
	return res, err
}

func (s *Service) calculate(ctx context.Context, req Request) (*Result, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}

	start, pickup, dropoff, err := s.resolveAll(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := s.checkLeg("start to pickup", start, pickup); err != nil {
		return nil, err
	}
	if err := s.checkLeg("pickup to dropoff", pickup, dropoff); err != nil {
		return nil, err
	}

	first, second, err := s.routeBoth(ctx, start, pickup, dropoff)
	if err != nil {
		return nil, err
	}

	rules := s.engine.Rules()
	totalDriving := first.Duration + second.Duration
	miles := (first.DistanceMeters + second.DistanceMeters) / MetersPerMile
	fuelStops := rules.FuelingStops(miles)
	startTime := s.startTime(req.StartTime)

	schedule, err := s.engine.Run(hos.Plan{
		StartTime:       startTime,
		TotalDriving:    totalDriving,
		PickupToDropoff: second.Duration,
		CycleUsed:       hoursToDuration(req.CycleUsed),
		StartLabel:      start.DisplayName,
		PickupLabel:     pickup.DisplayName,
		DropoffLabel:    dropoff.DisplayName,
		FuelingStops:    fuelStops,
	})
	if err != nil {
		return nil, engineError(err)
	}

	geometry := make([]geo.Coordinate, 0, len(first.Geometry)+len(second.Geometry))
	geometry = append(geometry, first.Geometry...)
	geometry = append(geometry, second.Geometry...)

	return &Result{
		Geometry:           geometry,
		Logs:               schedule.Logs,
		TotalDistanceMiles: miles,
		TotalDriving:       totalDriving,
		Start:              *start,
		Pickup:             *pickup,
		Dropoff:            *dropoff,
		Legs:               []routing.Leg{*first, *second},
		Summary: Summary{
			TotalDays:          len(schedule.Logs),
			TotalDrivingHours:  totalDriving.Hours(),
			TotalDistanceMiles: miles,
			FuelingStops:       fuelStops,
		},
		Stats:     schedule.Stats,
		StartTime: startTime,
	}, nil
}

func (s *Service) validate(req *Request) error {
	req.Start = strings.TrimSpace(req.Start)
	req.Pickup = strings.TrimSpace(req.Pickup)
	req.Dropoff = strings.TrimSpace(req.Dropoff)

	var missing []string
	if req.Start == "" {
		missing = append(missing, "start location")
	}
	if req.Pickup == "" {
		missing = append(missing, "pickup location")
	}
	if req.Dropoff == "" {
		missing = append(missing, "dropoff location")
	}
	if len(missing) > 0 {
		return invalidInput("missing " + strings.Join(missing, ", "))
	}

	limit := s.engine.Rules().WeeklyCycleLimit.Hours()
	if math.IsNaN(req.CycleUsed) || req.CycleUsed < 0 || req.CycleUsed > limit {
		return invalidInput(fmt.Sprintf("cycle hours used must be between 0 and %g", limit))
	}
	return nil
}

// resolveAll geocodes the three inputs concurrently. When several fail, the
// first in trip order is reported.
func (s *Service) resolveAll(ctx context.Context, req Request) (start, pickup, dropoff *geo.Location, err error) {
	texts := [3]string{req.Start, req.Pickup, req.Dropoff}
	labels := [3]string{"start", "pickup", "dropoff"}
	var (
		locs [3]*geo.Location
		errs [3]error
		g    errgroup.Group
	)
	for i := range texts {
		g.Go(func() error {
			locs[i], errs[i] = s.resolver.Resolve(ctx, texts[i])
			return nil
		})
	}
	_ = g.Wait()

	for i, e := range errs {
		if e != nil {
			return nil, nil, nil, geoError(labels[i], texts[i], e)
		}
	}
	return locs[0], locs[1], locs[2], nil
}

func (s *Service) checkLeg(name string, from, to *geo.Location) error {
	d := polyline.Distance(
		polyline.Coordinate{Lat: from.Lat, Lon: from.Lng},
		polyline.Coordinate{Lat: to.Lat, Lon: to.Lng},
	)
	if d <= s.maxLegMeters {
		return nil
	}
	return &Error{
		Kind: KindLegTooLong,
		Message: fmt.Sprintf("%s leg is too long (approx %d km > %d km); pick closer locations or split the trip",
			name, int(d/1000), int(s.maxLegMeters/1000)),
		Location: name,
	}
}

func (s *Service) routeBoth(ctx context.Context, start, pickup, dropoff *geo.Location) (*routing.Leg, *routing.Leg, error) {
	var (
		legs [2]*routing.Leg
		errs [2]error
		g    errgroup.Group
	)
	g.Go(func() error {
		legs[0], errs[0] = s.router.Route(ctx, start.Coordinate, pickup.Coordinate)
		return nil
	})
	g.Go(func() error {
		legs[1], errs[1] = s.router.Route(ctx, pickup.Coordinate, dropoff.Coordinate)
		return nil
	})
	_ = g.Wait()

	if errs[0] != nil {
		return nil, nil, routeError("start to pickup", errs[0])
	}
	if errs[1] != nil {
		return nil, nil, routeError("pickup to dropoff", errs[1])
	}
	return legs[0], legs[1], nil
}

// startTime returns the explicit start or today at the configured clock
// time, pinned to a fixed offset so every logged day is exactly 24 hours.
func (s *Service) startTime(explicit *time.Time) time.Time {
	var t time.Time
	if explicit != nil {
		t = *explicit
	} else {
		now := s.now().In(s.location)
		t = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, int(s.dayStart), s.location)
	}
	name, offset := t.Zone()
	return t.In(time.FixedZone(name, offset)).Truncate(time.Second)
}

func hoursToDuration(h float64) time.Duration {
	return time.Duration(math.Round(h * float64(time.Hour)))
}
