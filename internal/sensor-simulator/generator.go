package sensor_simulator

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/LeonardoBeccarini/sdcc_field_planner/internal/geo"
	"github.com/LeonardoBeccarini/sdcc_field_planner/internal/model/entities"
)

// ====== Tunables ======
const (
	// DefaultDryThreshold: readings strictly below this percentage need water.
	DefaultDryThreshold = 30.0

	// fallbackTargets: minimum route size when too few sensors are dry.
	fallbackTargets = 3

	sensorIDPrefix = "SENSOR_"
)

// SamplingMode selects how a sensor's two coordinates are drawn.
type SamplingMode string

const (
	// SamplingCoherent draws one disc sample per sensor and uses both axes of it.
	SamplingCoherent SamplingMode = "coherent"
	// SamplingPerAxis draws two disc samples per sensor, latitude from the first
	// and longitude from the second. Kept for parity with older runs; the
	// resulting positions are not area-uniform.
	SamplingPerAxis SamplingMode = "per_axis"
)

// ParseSamplingMode maps a user string to a mode, "" meaning coherent.
func ParseSamplingMode(s string) (SamplingMode, error) {
	switch SamplingMode(s) {
	case "", SamplingCoherent:
		return SamplingCoherent, nil
	case SamplingPerAxis:
		return SamplingPerAxis, nil
	default:
		return "", fmt.Errorf("unknown sampling mode %q", s)
	}
}

// NewRand returns a fixed-seed source when seed is set, a time-seeded one otherwise.
func NewRand(seed *int64) *rand.Rand {
	if seed != nil {
		return rand.New(rand.NewSource(*seed))
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// FieldGenerator scatters sensors in a disc. It is not safe for concurrent
// use because *rand.Rand is not.
type FieldGenerator struct {
	rng      *rand.Rand
	sampling SamplingMode
	fieldID  string
}

func NewFieldGenerator(rng *rand.Rand, sampling SamplingMode, fieldID string) *FieldGenerator {
	if sampling == "" {
		sampling = SamplingCoherent
	}
	return &FieldGenerator{rng: rng, sampling: sampling, fieldID: fieldID}
}

// Rand exposes the source so later draws (station placement) continue the same stream.
func (g *FieldGenerator) Rand() *rand.Rand {
	return g.rng
}

// SamplePointInDisc draws an area-uniform point within radiusKm of center.
// sqrt(U) on the radius keeps the density flat instead of piling up at the center.
func (g *FieldGenerator) SamplePointInDisc(center entities.Point, radiusKm float64) entities.Point {
	r := radiusKm * math.Sqrt(g.rng.Float64())
	theta := g.rng.Float64() * 2 * math.Pi
	return entities.Point{
		Lat: center.Lat + geo.KmToDegreesLatitude(r)*math.Sin(theta),
		Lon: center.Lon + geo.KmToDegreesLongitude(r, center.Lat)*math.Cos(theta),
	}
}

func (g *FieldGenerator) samplePosition(center entities.Point, radiusKm float64) entities.Point {
	if g.sampling == SamplingPerAxis {
		lat := g.SamplePointInDisc(center, radiusKm).Lat
		lon := g.SamplePointInDisc(center, radiusKm).Lon
		return entities.Point{Lat: lat, Lon: lon}
	}
	return g.SamplePointInDisc(center, radiusKm)
}

// GenerateField creates SENSOR_1..SENSOR_n with moisture uniform in [0,100].
func (g *FieldGenerator) GenerateField(n int, center entities.Point, radiusKm float64) (*entities.Field, error) {
	if n < 0 {
		return nil, fmt.Errorf("sensor count must not be negative, got %d", n)
	}
	if radiusKm < 0 || math.IsNaN(radiusKm) || math.IsInf(radiusKm, 0) {
		return nil, fmt.Errorf("invalid radius %v km", radiusKm)
	}
	if !center.IsValid() {
		return nil, fmt.Errorf("invalid center %+v", center)
	}

	field := &entities.Field{
		ID:       g.fieldID,
		Depot:    center,
		RadiusKm: radiusKm,
		Sensors:  make([]entities.Sensor, 0, n),
	}
	for i := 0; i < n; i++ {
		pos := g.samplePosition(center, radiusKm)
		field.Sensors = append(field.Sensors, entities.Sensor{
			FieldID:  g.fieldID,
			ID:       fmt.Sprintf("%s%d", sensorIDPrefix, i+1),
			Position: pos,
			Moisture: g.rng.Float64() * 100,
		})
	}
	return field, nil
}

// SelectIrrigationTargets returns the dry sensors in field order. When fewer
// than three are dry and the field has at least three, the three driest are
// returned instead, still in field order.
func SelectIrrigationTargets(field *entities.Field, dryThreshold float64) []entities.Sensor {
	if field == nil {
		return nil
	}
	dry := make([]entities.Sensor, 0, len(field.Sensors))
	for _, s := range field.Sensors {
		if s.IsDry(dryThreshold) {
			dry = append(dry, s)
		}
	}
	if len(dry) >= fallbackTargets || len(field.Sensors) < fallbackTargets {
		return dry
	}

	idx := make([]int, len(field.Sensors))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return field.Sensors[idx[a]].Moisture < field.Sensors[idx[b]].Moisture
	})
	driest := idx[:fallbackTargets]
	sort.Ints(driest)

	out := make([]entities.Sensor, 0, fallbackTargets)
	for _, i := range driest {
		out = append(out, field.Sensors[i])
	}
	return out
}

// CountDry counts readings strictly below the threshold.
func CountDry(field *entities.Field, dryThreshold float64) int {
	if field == nil {
		return 0
	}
	n := 0
	for _, s := range field.Sensors {
		if s.IsDry(dryThreshold) {
			n++
		}
	}
	return n
}
