package entities

// Field represents the surveyed area: a depot at the center of a disc and
// the sensors scattered inside it, in creation order.
type Field struct {
	ID       string   `json:"id"`
	Depot    Point    `json:"depot"`
	RadiusKm float64  `json:"radius_km"`
	Sensors  []Sensor `json:"sensors"`
}

func (f *Field) GetSensor(sensorID string) *Sensor {
	for i := range f.Sensors {
		if f.Sensors[i].ID == sensorID {
			return &f.Sensors[i]
		}
	}
	return nil
}

// Clone returns a deep copy; the sensor slice is not shared.
func (f *Field) Clone() *Field {
	if f == nil {
		return nil
	}
	out := *f
	out.Sensors = make([]Sensor, len(f.Sensors))
	copy(out.Sensors, f.Sensors)
	return &out
}

// Positions lists sensor positions in insertion order.
func (f *Field) Positions() []Point {
	out := make([]Point, len(f.Sensors))
	for i, s := range f.Sensors {
		out[i] = s.Position
	}
	return out
}
