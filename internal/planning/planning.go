// Package planning derives the run summary from a field and its route:
// efficiency ratio, moisture statistics and the power-station plan.
package planning

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/LeonardoBeccarini/sdcc_field_planner/internal/geo"
	"github.com/LeonardoBeccarini/sdcc_field_planner/internal/model/entities"
	"github.com/LeonardoBeccarini/sdcc_field_planner/internal/route"
)

const (
	// sensorsPerStation: one station feeds ten sensors.
	sensorsPerStation = 10
	mm2PerM2          = 1_000_000
)

// PowerPlan is the power-station planning view of one run.
type PowerPlan struct {
	TotalAreaM2          float64 `json:"total_area_m2"`
	TotalPowerMV         float64 `json:"total_power_mv"`
	OptimizedPowerMV     float64 `json:"optimized_power_mv"`
	StationCapacityMV    float64 `json:"station_capacity_mv"`
	StationCount         int     `json:"station_count"`
	TotalStationOutputMV float64 `json:"total_station_output_mv"`
}

// Stats summarises the moisture readings of a field.
type Stats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Summary is the read-only outcome of a run.
type Summary struct {
	SensorCount     int        `json:"sensor_count"`
	DryCount        int        `json:"dry_count"`
	TargetCount     int        `json:"target_count"`
	DryThreshold    float64    `json:"dry_threshold"`
	NNDistanceKm    float64    `json:"nn_distance_km"`
	OptDistanceKm   float64    `json:"opt_distance_km"`
	EfficiencyRatio float64    `json:"efficiency_ratio"`
	TwoOptMoves     int        `json:"two_opt_moves"`
	Moisture        Stats      `json:"moisture"`
	Power           *PowerPlan `json:"power,omitempty"`
}

// EfficiencyRatio is opt/nn, or 1 when the nearest neighbour tour has no length.
func EfficiencyRatio(optDistanceKm, nnDistanceKm float64) float64 {
	if nnDistanceKm == 0 {
		return 1
	}
	return optDistanceKm / nnDistanceKm
}

// PlanPower sizes the charging stations for sensorCount sensors. Capacity is
// ten sensors' worth of draw; the count rounds up.
func PlanPower(params entities.PowerParams, sensorCount int, ratio float64) PowerPlan {
	n := float64(sensorCount)
	total := params.PowerPerSensorMV * n
	capacity := params.PowerPerSensorMV * sensorsPerStation

	plan := PowerPlan{
		TotalAreaM2:       params.TileAreaMM2 * n / mm2PerM2,
		TotalPowerMV:      total,
		OptimizedPowerMV:  total * ratio,
		StationCapacityMV: capacity,
	}
	if capacity > 0 {
		plan.StationCount = int(math.Ceil(total / capacity))
	}
	plan.TotalStationOutputMV = float64(plan.StationCount) * capacity
	return plan
}

// PlaceStations scatters count stations around center with independent
// uniform offsets in [-r/2, r/2] km on each axis.
func PlaceStations(rng *rand.Rand, center entities.Point, radiusKm float64, count int) []entities.Point {
	out := make([]entities.Point, 0, max(count, 0))
	half := radiusKm / 2
	for i := 0; i < count; i++ {
		latOff := -half + rng.Float64()*radiusKm
		lonOff := -half + rng.Float64()*radiusKm
		out = append(out, entities.Point{
			Lat: center.Lat + geo.KmToDegreesLatitude(latOff),
			Lon: center.Lon + geo.KmToDegreesLongitude(lonOff, center.Lat),
		})
	}
	return out
}

// MoistureStats uses population statistics; an empty field yields zeros.
func MoistureStats(field *entities.Field) Stats {
	if field == nil || len(field.Sensors) == 0 {
		return Stats{}
	}
	x := make([]float64, len(field.Sensors))
	for i, s := range field.Sensors {
		x[i] = s.Moisture
	}
	mean, std := stat.PopMeanStdDev(x, nil)
	sort.Float64s(x)
	return Stats{
		Mean:   mean,
		StdDev: std,
		Median: stat.Quantile(0.5, stat.Empirical, x, nil),
		Min:    floats.Min(x),
		Max:    floats.Max(x),
	}
}

// ComputeSummary assembles the summary; power is optional.
func ComputeSummary(field *entities.Field, targets []entities.Sensor, sol route.Solution,
	dryThreshold float64, power *entities.PowerParams) Summary {
	sensorCount := 0
	dry := 0
	if field != nil {
		sensorCount = len(field.Sensors)
		for _, s := range field.Sensors {
			if s.IsDry(dryThreshold) {
				dry++
			}
		}
	}

	ratio := EfficiencyRatio(sol.OptDistanceKm, sol.NNDistanceKm)
	sum := Summary{
		SensorCount:     sensorCount,
		DryCount:        dry,
		TargetCount:     len(targets),
		DryThreshold:    dryThreshold,
		NNDistanceKm:    sol.NNDistanceKm,
		OptDistanceKm:   sol.OptDistanceKm,
		EfficiencyRatio: ratio,
		TwoOptMoves:     sol.Moves,
		Moisture:        MoistureStats(field),
	}
	if power != nil {
		plan := PlanPower(*power, sensorCount, ratio)
		sum.Power = &plan
	}
	return sum
}

// Band classifies a reading for map colouring.
func Band(moisture, dryThreshold float64) entities.MoistureBand {
	return entities.Sensor{Moisture: moisture}.Band(dryThreshold)
}
