package app

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/LeonardoBeccarini/sdcc_field_planner/internal/model/entities"
	"github.com/LeonardoBeccarini/sdcc_field_planner/internal/planning"
	sensorSimulator "github.com/LeonardoBeccarini/sdcc_field_planner/internal/sensor-simulator"
	"github.com/LeonardoBeccarini/sdcc_field_planner/internal/simulation"
)

// ---------- Requests ----------

// SimulateRequest carries the form fields of the planner page; nil means
// "use the configured default".
type SimulateRequest struct {
	CenterLat        *float64 `json:"center_lat"`
	CenterLon        *float64 `json:"center_lon"`
	RadiusKm         *float64 `json:"radius_km"`
	NSensors         *int     `json:"n_sensors"`
	TileAreaMM2      *float64 `json:"tile_area_mm2"`
	PowerPerSensorMV *float64 `json:"power_per_sensor_mV"`
	DryThreshold     *float64 `json:"dry_threshold"`
	Seed             *int64   `json:"seed"`
	Sampling         string   `json:"sampling"`
}

// parseForm reads a url-encoded form. Empty fields count as missing.
func parseForm(form url.Values) (SimulateRequest, error) {
	var req SimulateRequest
	var err error
	floatField := func(key string) *float64 {
		v := strings.TrimSpace(form.Get(key))
		if v == "" || err != nil {
			return nil
		}
		f, perr := strconv.ParseFloat(v, 64)
		if perr != nil {
			err = fmt.Errorf("%s: %q is not a number", key, v)
			return nil
		}
		return &f
	}
	intField := func(key string) *int64 {
		v := strings.TrimSpace(form.Get(key))
		if v == "" || err != nil {
			return nil
		}
		n, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil {
			err = fmt.Errorf("%s: %q is not an integer", key, v)
			return nil
		}
		return &n
	}

	req.CenterLat = floatField("center_lat")
	req.CenterLon = floatField("center_lon")
	req.RadiusKm = floatField("radius_km")
	if n := intField("n_sensors"); n != nil {
		v := int(*n)
		req.NSensors = &v
	}
	req.TileAreaMM2 = floatField("tile_area_mm2")
	req.PowerPerSensorMV = floatField("power_per_sensor_mV")
	req.DryThreshold = floatField("dry_threshold")
	req.Seed = intField("seed")
	req.Sampling = strings.TrimSpace(form.Get("sampling"))
	return req, err
}

// Config overlays the request on defaults. Validation is left to simulation.Run.
func (r SimulateRequest) Config(defaults simulation.Config) simulation.Config {
	cfg := defaults
	if r.CenterLat != nil {
		cfg.Center.Lat = *r.CenterLat
	}
	if r.CenterLon != nil {
		cfg.Center.Lon = *r.CenterLon
	}
	if r.RadiusKm != nil {
		cfg.RadiusKm = *r.RadiusKm
	}
	if r.NSensors != nil {
		cfg.SensorCount = *r.NSensors
	}
	if r.DryThreshold != nil {
		cfg.DryThreshold = *r.DryThreshold
	}
	if r.Seed != nil {
		seed := *r.Seed
		cfg.Seed = &seed
	}
	if r.Sampling != "" {
		cfg.Sampling = sensorSimulator.SamplingMode(r.Sampling)
	}
	if r.TileAreaMM2 != nil || r.PowerPerSensorMV != nil {
		var power entities.PowerParams
		if defaults.Power != nil {
			power = *defaults.Power
		}
		if r.TileAreaMM2 != nil {
			power.TileAreaMM2 = *r.TileAreaMM2
		}
		if r.PowerPerSensorMV != nil {
			power.PowerPerSensorMV = *r.PowerPerSensorMV
		}
		cfg.Power = &power
	} else if defaults.Power != nil {
		power := *defaults.Power
		cfg.Power = &power
	}
	return cfg
}

// ---------- Responses ----------

// SummaryView is the summary rounded the way the planner page shows it.
type SummaryView struct {
	RunID           string         `json:"run_id"`
	NSensors        int            `json:"n_sensors"`
	DryCount        int            `json:"dry_count"`
	TargetCount     int            `json:"target_count"`
	NNDistance      float64        `json:"nn_distance"`
	OptDistance     float64        `json:"opt_distance"`
	EfficiencyRatio float64        `json:"efficiency_ratio"`
	TwoOptMoves     int            `json:"two_opt_moves"`
	Moisture        planning.Stats `json:"moisture"`
	Power           *PowerView     `json:"power,omitempty"`
	StartedAt       string         `json:"started_at"`
}

type PowerView struct {
	TotalArea       float64 `json:"total_area"`
	TotalPower      float64 `json:"total_power"`
	OptimizedPower  float64 `json:"optimized_power"`
	StationsNeeded  int     `json:"stations_needed"`
	StationOutput   float64 `json:"station_output"`
	StationCapacity float64 `json:"station_capacity"`
}

type SimulateResponse struct {
	Summary        SummaryView       `json:"summary"`
	Route          []int             `json:"route"`
	RouteSensorIDs []string          `json:"route_sensor_ids"`
	Targets        []SensorView      `json:"targets"`
	Stations       []entities.Point  `json:"stations"`
	Links          map[string]string `json:"links"`
}

type SensorView struct {
	ID       string                `json:"id"`
	Lat      float64               `json:"lat"`
	Lon      float64               `json:"lon"`
	Moisture float64               `json:"moisture"`
	Band     entities.MoistureBand `json:"band"`
}

type LiveFieldView struct {
	FieldID    string       `json:"field_id"`
	Generation uint64       `json:"generation"`
	Sensors    []SensorView `json:"sensors"`
}

func round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

func newSummaryView(res *simulation.Result) SummaryView {
	s := res.Summary
	v := SummaryView{
		RunID:           res.RunID,
		NSensors:        s.SensorCount,
		DryCount:        s.DryCount,
		TargetCount:     s.TargetCount,
		NNDistance:      round(s.NNDistanceKm, 3),
		OptDistance:     round(s.OptDistanceKm, 3),
		EfficiencyRatio: round(s.EfficiencyRatio, 4),
		TwoOptMoves:     s.TwoOptMoves,
		Moisture: planning.Stats{
			Mean:   round(s.Moisture.Mean, 2),
			StdDev: round(s.Moisture.StdDev, 2),
			Median: round(s.Moisture.Median, 2),
			Min:    round(s.Moisture.Min, 2),
			Max:    round(s.Moisture.Max, 2),
		},
		StartedAt: res.StartedAt.Format(time.RFC3339),
	}
	if p := s.Power; p != nil {
		v.Power = &PowerView{
			TotalArea:       round(p.TotalAreaM2, 4),
			TotalPower:      round(p.TotalPowerMV, 2),
			OptimizedPower:  round(p.OptimizedPowerMV, 2),
			StationsNeeded:  p.StationCount,
			StationOutput:   round(p.TotalStationOutputMV, 2),
			StationCapacity: round(p.StationCapacityMV, 2),
		}
	}
	return v
}

func newSensorView(s entities.Sensor, dryThreshold float64) SensorView {
	return SensorView{
		ID:       s.ID,
		Lat:      s.Position.Lat,
		Lon:      s.Position.Lon,
		Moisture: round(s.Moisture, 2),
		Band:     s.Band(dryThreshold),
	}
}

func newSimulateResponse(res *simulation.Result) SimulateResponse {
	targets := make([]SensorView, len(res.Targets))
	for i, s := range res.Targets {
		targets[i] = newSensorView(s, res.Config.DryThreshold)
	}
	stations := res.Stations
	if stations == nil {
		stations = []entities.Point{}
	}
	return SimulateResponse{
		Summary:        newSummaryView(res),
		Route:          append([]int(nil), res.Solution.Route...),
		RouteSensorIDs: res.RouteSensorIDs(),
		Targets:        targets,
		Stations:       stations,
		Links: map[string]string{
			"sensors_map": "/maps/sensors",
			"route_map":   "/maps/route",
			"power_map":   "/maps/power",
			"route_png":   "/maps/route.png",
			"sensors_csv": "/export/sensors.csv",
			"route_csv":   "/export/route.csv",
		},
	}
}
