package messages

import "time"

// SimulationCompletedEvent is published by the planner after every run.
// Power fields are zero when the run had no power parameters.
type SimulationCompletedEvent struct {
	RunID            string    `json:"run_id"`
	FieldID          string    `json:"field_id"`
	SensorCount      int       `json:"sensor_count"`
	DryCount         int       `json:"dry_count"`
	TargetCount      int       `json:"target_count"`
	NNDistanceKm     float64   `json:"nn_distance_km"`
	OptDistanceKm    float64   `json:"opt_distance_km"`
	EfficiencyRatio  float64   `json:"efficiency_ratio"`
	TwoOptMoves      int       `json:"two_opt_moves"`
	Route            []int     `json:"route"`
	StationCount     int       `json:"station_count,omitempty"`
	TotalPowerMV     float64   `json:"total_power_mv,omitempty"`
	OptimizedPowerMV float64   `json:"optimized_power_mv,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}
