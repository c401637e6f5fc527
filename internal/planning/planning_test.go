package planning

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/sdcc_field_planner/internal/model/entities"
	"github.com/LeonardoBeccarini/sdcc_field_planner/internal/route"
)

var vellore = entities.Point{Lat: 12.969, Lon: 79.159}

func TestEfficiencyRatio(t *testing.T) {
	assert.Equal(t, 1.0, EfficiencyRatio(0, 0))
	assert.Equal(t, 1.0, EfficiencyRatio(3.2, 0))
	assert.InDelta(t, 0.9, EfficiencyRatio(9, 10), 1e-12)
	assert.Equal(t, 1.0, EfficiencyRatio(4.5, 4.5))
}

func TestPlanPower_StationArithmetic(t *testing.T) {
	plan := PlanPower(entities.PowerParams{TileAreaMM2: 2500, PowerPerSensorMV: 5}, 23, 0.9)

	assert.InDelta(t, 0.0575, plan.TotalAreaM2, 1e-12)
	assert.InDelta(t, 115.0, plan.TotalPowerMV, 1e-12)
	assert.InDelta(t, 103.5, plan.OptimizedPowerMV, 1e-12)
	assert.InDelta(t, 50.0, plan.StationCapacityMV, 1e-12)
	assert.Equal(t, 3, plan.StationCount)
	assert.InDelta(t, 150.0, plan.TotalStationOutputMV, 1e-12)
}

func TestPlanPower_Table(t *testing.T) {
	tests := []struct {
		name      string
		perSensor float64
		n         int
		count     int
		output    float64
	}{
		{"exact multiple", 5, 20, 2, 100},
		{"one over", 5, 21, 3, 150},
		{"single sensor", 12, 1, 1, 120},
		{"zero power", 0, 23, 0, 0},
		{"negative power", -1, 23, 0, 0},
		{"no sensors", 5, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := PlanPower(entities.PowerParams{TileAreaMM2: 100, PowerPerSensorMV: tt.perSensor}, tt.n, 1)
			assert.Equal(t, tt.count, plan.StationCount)
			assert.InDelta(t, tt.output, plan.TotalStationOutputMV, 1e-9)
		})
	}
}

func TestPlaceStations(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	stations := PlaceStations(rng, vellore, 2.0, 50)
	require.Len(t, stations, 50)

	maxLat := 1.0 / 111.0
	maxLon := 1.0 / (111.0 * math.Cos(vellore.Lat*math.Pi/180))
	for _, s := range stations {
		assert.LessOrEqual(t, math.Abs(s.Lat-vellore.Lat), maxLat+1e-12)
		assert.LessOrEqual(t, math.Abs(s.Lon-vellore.Lon), maxLon+1e-12)
	}

	assert.Empty(t, PlaceStations(rng, vellore, 2.0, 0))
	assert.Empty(t, PlaceStations(rng, vellore, 2.0, -1))
}

func TestPlaceStations_ConsumesTwoDrawsEach(t *testing.T) {
	a := rand.New(rand.NewSource(9))
	PlaceStations(a, vellore, 1, 3)
	b := rand.New(rand.NewSource(9))
	for i := 0; i < 6; i++ {
		b.Float64()
	}
	assert.Equal(t, b.Float64(), a.Float64())
}

func field(moisture ...float64) *entities.Field {
	f := &entities.Field{ID: "f", Depot: vellore}
	for _, m := range moisture {
		f.Sensors = append(f.Sensors, entities.Sensor{Moisture: m, Position: vellore})
	}
	return f
}

func TestMoistureStats(t *testing.T) {
	assert.Equal(t, Stats{}, MoistureStats(nil))
	assert.Equal(t, Stats{}, MoistureStats(field()))

	one := MoistureStats(field(42))
	assert.Equal(t, Stats{Mean: 42, StdDev: 0, Median: 42, Min: 42, Max: 42}, one)

	s := MoistureStats(field(10, 20, 30, 40))
	assert.InDelta(t, 25, s.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(125), s.StdDev, 1e-12)
	assert.Equal(t, 10.0, s.Min)
	assert.Equal(t, 40.0, s.Max)
	assert.Equal(t, 20.0, s.Median)
}

func TestMoistureStats_DoesNotReorderField(t *testing.T) {
	f := field(30, 10, 20)
	MoistureStats(f)
	assert.Equal(t, []float64{30, 10, 20}, []float64{f.Sensors[0].Moisture, f.Sensors[1].Moisture, f.Sensors[2].Moisture})
}

func TestComputeSummary(t *testing.T) {
	f := field(10, 50, 20, 90, 29.9)
	targets := []entities.Sensor{f.Sensors[0], f.Sensors[2], f.Sensors[4]}
	sol := route.Solution{
		Route:         route.Route{0, 2, 1, 3, 0},
		NNDistanceKm:  4,
		OptDistanceKm: 3,
		Moves:         1,
	}

	sum := ComputeSummary(f, targets, sol, 30, &entities.PowerParams{TileAreaMM2: 1000, PowerPerSensorMV: 5})
	assert.Equal(t, 5, sum.SensorCount)
	assert.Equal(t, 3, sum.DryCount)
	assert.Equal(t, 3, sum.TargetCount)
	assert.Equal(t, 30.0, sum.DryThreshold)
	assert.Equal(t, 0.75, sum.EfficiencyRatio)
	assert.Equal(t, 1, sum.TwoOptMoves)
	require.NotNil(t, sum.Power)
	assert.InDelta(t, 18.75, sum.Power.OptimizedPowerMV, 1e-12)
	assert.Equal(t, 1, sum.Power.StationCount)
	assert.InDelta(t, 0.005, sum.Power.TotalAreaM2, 1e-12)

	noPower := ComputeSummary(f, targets, sol, 30, nil)
	assert.Nil(t, noPower.Power)
}

func TestComputeSummary_ZeroTargets(t *testing.T) {
	sum := ComputeSummary(field(80, 90), nil, route.Solution{Route: route.Route{0}}, 30, nil)
	assert.Equal(t, 0, sum.TargetCount)
	assert.Equal(t, 0.0, sum.NNDistanceKm)
	assert.Equal(t, 1.0, sum.EfficiencyRatio)
}

func TestBand(t *testing.T) {
	assert.Equal(t, entities.BandDry, Band(29.9, 30))
	assert.Equal(t, entities.BandModerate, Band(30, 30))
	assert.Equal(t, entities.BandModerate, Band(59.99, 30))
	assert.Equal(t, entities.BandWet, Band(60, 30))
	assert.Equal(t, entities.BandWet, Band(100, 30))
}
