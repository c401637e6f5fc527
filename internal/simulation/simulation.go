// Package simulation runs one planning pass end to end: generate a field,
// pick the dry sensors, route them, place stations and summarise.
package simulation

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/LeonardoBeccarini/sdcc_field_planner/internal/model/entities"
	"github.com/LeonardoBeccarini/sdcc_field_planner/internal/model/messages"
	"github.com/LeonardoBeccarini/sdcc_field_planner/internal/planning"
	"github.com/LeonardoBeccarini/sdcc_field_planner/internal/route"
	sensorSimulator "github.com/LeonardoBeccarini/sdcc_field_planner/internal/sensor-simulator"
)

// ErrInvalidConfiguration is wrapped by every Validate failure.
var ErrInvalidConfiguration = errors.New("invalid configuration")

const (
	// DepotID labels node 0 in exports.
	DepotID = "DEPOT"
	// MaxSensorCount bounds a field; the route matrix grows with the square of the targets.
	MaxSensorCount = 10000
)

// Config is everything a run depends on. With Seed set a run is reproducible.
type Config struct {
	FieldID      string
	Center       entities.Point
	RadiusKm     float64
	SensorCount  int
	DryThreshold float64
	Seed         *int64
	Sampling     sensorSimulator.SamplingMode
	Power        *entities.PowerParams
}

// DefaultConfig is the VIT Vellore campus field.
func DefaultConfig() Config {
	return Config{
		FieldID:      "field1",
		Center:       entities.Point{Lat: 12.969, Lon: 79.159},
		RadiusKm:     1.0,
		SensorCount:  20,
		DryThreshold: sensorSimulator.DefaultDryThreshold,
		Sampling:     sensorSimulator.SamplingCoherent,
	}
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}

// Validate rejects configurations that cannot produce a field.
func (c Config) Validate() error {
	if !c.Center.IsFinite() {
		return invalid("center must be finite, got (%v, %v)", c.Center.Lat, c.Center.Lon)
	}
	if !c.Center.IsValid() {
		return invalid("center (%v, %v) out of range", c.Center.Lat, c.Center.Lon)
	}
	if !finite(c.RadiusKm) || c.RadiusKm < 0 {
		return invalid("radius must be a non-negative number, got %v", c.RadiusKm)
	}
	if c.SensorCount <= 0 {
		return invalid("sensor count must be positive, got %d", c.SensorCount)
	}
	if c.SensorCount > MaxSensorCount {
		return invalid("sensor count must be at most %d, got %d", MaxSensorCount, c.SensorCount)
	}
	if !finite(c.DryThreshold) || c.DryThreshold < 0 || c.DryThreshold > 100 {
		return invalid("dry threshold must be within [0, 100], got %v", c.DryThreshold)
	}
	if _, err := sensorSimulator.ParseSamplingMode(string(c.Sampling)); err != nil {
		return invalid("%v", err)
	}
	if p := c.Power; p != nil {
		if !finite(p.TileAreaMM2) || p.TileAreaMM2 < 0 {
			return invalid("tile area must be a non-negative number, got %v", p.TileAreaMM2)
		}
		if !finite(p.PowerPerSensorMV) || p.PowerPerSensorMV < 0 {
			return invalid("power per sensor must be a non-negative number, got %v", p.PowerPerSensorMV)
		}
	}
	return nil
}

// Result holds everything one run produced. Coords is [depot, targets...]
// and is what Solution's indices refer to.
type Result struct {
	RunID     string
	StartedAt time.Time
	Config    Config
	Field     *entities.Field
	Targets   []entities.Sensor
	Coords    []entities.Point
	Solution  route.Solution
	Stations  []entities.Point
	Summary   planning.Summary
	Elapsed   time.Duration
}

// Run executes a full pass. Its output depends only on cfg (and the seed).
func Run(cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	started := time.Now().UTC()

	gen := sensorSimulator.NewFieldGenerator(sensorSimulator.NewRand(cfg.Seed), cfg.Sampling, cfg.FieldID)
	field, err := gen.GenerateField(cfg.SensorCount, cfg.Center, cfg.RadiusKm)
	if err != nil {
		return nil, fmt.Errorf("generate field: %w", err)
	}

	targets := sensorSimulator.SelectIrrigationTargets(field, cfg.DryThreshold)
	coords := make([]entities.Point, 0, len(targets)+1)
	coords = append(coords, field.Depot)
	for _, s := range targets {
		coords = append(coords, s.Position)
	}
	sol := route.SolveCoords(coords)

	summary := planning.ComputeSummary(field, targets, sol, cfg.DryThreshold, cfg.Power)

	var stations []entities.Point
	if summary.Power != nil {
		stations = planning.PlaceStations(gen.Rand(), cfg.Center, cfg.RadiusKm, summary.Power.StationCount)
	}

	return &Result{
		RunID:     uuid.NewString(),
		StartedAt: started,
		Config:    cfg,
		Field:     field,
		Targets:   targets,
		Coords:    coords,
		Solution:  sol,
		Stations:  stations,
		Summary:   summary,
		Elapsed:   time.Since(started),
	}, nil
}

// RoutePoints is the optimized tour as coordinates.
func (r *Result) RoutePoints() []entities.Point {
	return r.Solution.Route.Points(r.Coords)
}

// RouteSensorIDs names the stops of the optimized tour, "DEPOT" for node 0.
func (r *Result) RouteSensorIDs() []string {
	out := make([]string, len(r.Solution.Route))
	for i, idx := range r.Solution.Route {
		if idx == 0 {
			out[i] = DepotID
			continue
		}
		out[i] = r.Targets[idx-1].ID
	}
	return out
}

// Event is the bus notification for a finished run.
func (r *Result) Event() messages.SimulationCompletedEvent {
	evt := messages.SimulationCompletedEvent{
		RunID:           r.RunID,
		FieldID:         r.Field.ID,
		SensorCount:     r.Summary.SensorCount,
		DryCount:        r.Summary.DryCount,
		TargetCount:     r.Summary.TargetCount,
		NNDistanceKm:    r.Summary.NNDistanceKm,
		OptDistanceKm:   r.Summary.OptDistanceKm,
		EfficiencyRatio: r.Summary.EfficiencyRatio,
		TwoOptMoves:     r.Summary.TwoOptMoves,
		Route:           append([]int(nil), r.Solution.Route...),
		Timestamp:       r.StartedAt,
	}
	if p := r.Summary.Power; p != nil {
		evt.StationCount = p.StationCount
		evt.TotalPowerMV = p.TotalPowerMV
		evt.OptimizedPowerMV = p.OptimizedPowerMV
	}
	return evt
}
