package simulation

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/sdcc_field_planner/internal/model/entities"
	"github.com/LeonardoBeccarini/sdcc_field_planner/internal/route"
	sensorSimulator "github.com/LeonardoBeccarini/sdcc_field_planner/internal/sensor-simulator"
)

func seed(v int64) *int64 { return &v }

func velloreConfig() Config {
	cfg := DefaultConfig()
	cfg.SensorCount = 5
	cfg.RadiusKm = 1.0
	cfg.Seed = seed(42)
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative radius", func(c *Config) { c.RadiusKm = -1 }},
		{"nan radius", func(c *Config) { c.RadiusKm = math.NaN() }},
		{"inf radius", func(c *Config) { c.RadiusKm = math.Inf(1) }},
		{"zero sensors", func(c *Config) { c.SensorCount = 0 }},
		{"negative sensors", func(c *Config) { c.SensorCount = -4 }},
		{"too many sensors", func(c *Config) { c.SensorCount = MaxSensorCount + 1 }},
		{"huge sensor count", func(c *Config) { c.SensorCount = math.MaxInt }},
		{"nan latitude", func(c *Config) { c.Center.Lat = math.NaN() }},
		{"inf longitude", func(c *Config) { c.Center.Lon = math.Inf(-1) }},
		{"latitude out of range", func(c *Config) { c.Center.Lat = 90.5 }},
		{"threshold above 100", func(c *Config) { c.DryThreshold = 101 }},
		{"threshold nan", func(c *Config) { c.DryThreshold = math.NaN() }},
		{"unknown sampling", func(c *Config) { c.Sampling = "spiral" }},
		{"negative tile area", func(c *Config) { c.Power = &entities.PowerParams{TileAreaMM2: -1, PowerPerSensorMV: 5} }},
		{"nan power", func(c *Config) { c.Power = &entities.PowerParams{TileAreaMM2: 1, PowerPerSensorMV: math.NaN()} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfiguration))

			_, err = Run(cfg)
			assert.ErrorIs(t, err, ErrInvalidConfiguration)
		})
	}
}

func TestValidate_Accepts(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())

	cfg.SensorCount = MaxSensorCount
	assert.NoError(t, cfg.Validate())

	cfg.SensorCount = 20
	cfg.RadiusKm = 0
	cfg.Sampling = ""
	cfg.Power = &entities.PowerParams{}
	assert.NoError(t, cfg.Validate())
}

// ignore the fields that identify a run rather than describe it
var runIdentity = cmp.FilterPath(func(p cmp.Path) bool {
	switch p.Last().String() {
	case ".RunID", ".StartedAt", ".Elapsed":
		return true
	}
	return false
}, cmp.Ignore())

func TestRun_SeededVelloreIsReproducible(t *testing.T) {
	cfg := velloreConfig()
	cfg.Power = &entities.PowerParams{TileAreaMM2: 2500, PowerPerSensorMV: 5}

	a, err := Run(cfg)
	require.NoError(t, err)
	b, err := Run(cfg)
	require.NoError(t, err)

	if diff := cmp.Diff(a, b, runIdentity); diff != "" {
		t.Fatalf("seeded runs differ (-a +b):\n%s", diff)
	}
	assert.NotEqual(t, a.RunID, b.RunID)
	_, err = uuid.Parse(a.RunID)
	assert.NoError(t, err)

	require.Len(t, a.Field.Sensors, 5)
	assert.Equal(t, cfg.Center, a.Field.Depot)
	k := len(a.Targets)
	require.NoError(t, a.Solution.Route.Valid(k))
	assert.LessOrEqual(t, a.Solution.OptDistanceKm, a.Solution.NNDistanceKm+1e-9)
	assert.GreaterOrEqual(t, k, 3, "five sensors always yield at least three targets")
	assert.Len(t, a.Coords, k+1)
	assert.Len(t, a.Stations, a.Summary.Power.StationCount)
	assert.Equal(t, 1, a.Summary.Power.StationCount) // 25 mV over 50 mV stations
}

func TestRun_DifferentSeedsDiffer(t *testing.T) {
	a, err := Run(velloreConfig())
	require.NoError(t, err)
	cfg := velloreConfig()
	cfg.Seed = seed(43)
	b, err := Run(cfg)
	require.NoError(t, err)
	assert.NotEqual(t, a.Field.Sensors, b.Field.Sensors)
}

func TestRun_TargetsMatchSelection(t *testing.T) {
	cfg := velloreConfig()
	cfg.SensorCount = 60
	res, err := Run(cfg)
	require.NoError(t, err)

	want := sensorSimulator.SelectIrrigationTargets(res.Field, cfg.DryThreshold)
	assert.Equal(t, want, res.Targets)
	assert.Equal(t, sensorSimulator.CountDry(res.Field, cfg.DryThreshold), res.Summary.DryCount)
	for i, s := range res.Targets {
		assert.Equal(t, s.Position, res.Coords[i+1])
	}
	assert.Nil(t, res.Summary.Power)
	assert.Empty(t, res.Stations)
}

func TestRun_NoTargets(t *testing.T) {
	cfg := velloreConfig()
	cfg.SensorCount = 2
	cfg.DryThreshold = 0 // nothing is strictly below 0
	res, err := Run(cfg)
	require.NoError(t, err)

	assert.Empty(t, res.Targets)
	assert.Equal(t, route.Route{0}, res.Solution.Route)
	assert.Equal(t, 0.0, res.Summary.NNDistanceKm)
	assert.Equal(t, 0.0, res.Summary.OptDistanceKm)
	assert.Equal(t, 1.0, res.Summary.EfficiencyRatio)
	assert.Equal(t, []string{DepotID}, res.RouteSensorIDs())
}

func TestRun_ZeroRadiusCollapsesOnDepot(t *testing.T) {
	cfg := velloreConfig()
	cfg.RadiusKm = 0
	res, err := Run(cfg)
	require.NoError(t, err)
	for _, s := range res.Field.Sensors {
		assert.Equal(t, cfg.Center, s.Position)
	}
	assert.Equal(t, 0.0, res.Summary.OptDistanceKm)
	assert.Equal(t, 1.0, res.Summary.EfficiencyRatio)
}

func TestResult_RouteHelpersAndEvent(t *testing.T) {
	cfg := velloreConfig()
	cfg.SensorCount = 30
	cfg.Power = &entities.PowerParams{TileAreaMM2: 100, PowerPerSensorMV: 5}
	res, err := Run(cfg)
	require.NoError(t, err)

	ids := res.RouteSensorIDs()
	pts := res.RoutePoints()
	require.Len(t, ids, len(res.Solution.Route))
	require.Len(t, pts, len(res.Solution.Route))
	assert.Equal(t, DepotID, ids[0])
	assert.Equal(t, DepotID, ids[len(ids)-1])
	assert.Equal(t, cfg.Center, pts[0])
	for i, idx := range res.Solution.Route {
		if idx > 0 {
			assert.Equal(t, res.Targets[idx-1].ID, ids[i])
			assert.Equal(t, res.Targets[idx-1].Position, pts[i])
		}
	}

	evt := res.Event()
	assert.Equal(t, res.RunID, evt.RunID)
	assert.Equal(t, "field1", evt.FieldID)
	assert.Equal(t, 30, evt.SensorCount)
	assert.Equal(t, len(res.Targets), evt.TargetCount)
	assert.Equal(t, []int(res.Solution.Route), evt.Route)
	assert.Equal(t, 3, evt.StationCount)
	assert.InDelta(t, 150.0, evt.TotalPowerMV, 1e-9)
	assert.Equal(t, res.StartedAt, evt.Timestamp)
}
