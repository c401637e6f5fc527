package messages

import (
	"time"
)

// SensorData is one moisture reading on the bus, raw or aggregated.
type SensorData struct {
	FieldID    string    `json:"field_id,omitempty"`
	SensorID   string    `json:"sensor_id"`
	Moisture   float64   `json:"moisture"`
	Aggregated bool      `json:"aggregated"`
	Samples    int       `json:"samples,omitempty"` // readings averaged when Aggregated
	Timestamp  time.Time `json:"timestamp"`
}
