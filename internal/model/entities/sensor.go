package entities

// MoistureBand is the coarse moisture class used to colour markers.
type MoistureBand string

const (
	BandDry      MoistureBand = "dry"
	BandModerate MoistureBand = "moderate"
	BandWet      MoistureBand = "wet"
)

// moderateCeiling separates moderate from wet readings (percent).
const moderateCeiling = 60.0

// Sensor represents a single soil-moisture sensor in the field.
type Sensor struct {
	FieldID  string  `json:"field_id,omitempty"`
	ID       string  `json:"id"` // unique sensor identifier, SENSOR_<n>
	Position Point   `json:"position"`
	Moisture float64 `json:"moisture"` // percent [0..100]
}

// IsDry reports whether the reading is strictly below the threshold.
func (s Sensor) IsDry(threshold float64) bool {
	return s.Moisture < threshold
}

// Band classifies the reading against the dry threshold.
func (s Sensor) Band(dryThreshold float64) MoistureBand {
	switch {
	case s.Moisture < dryThreshold:
		return BandDry
	case s.Moisture < moderateCeiling:
		return BandModerate
	default:
		return BandWet
	}
}
