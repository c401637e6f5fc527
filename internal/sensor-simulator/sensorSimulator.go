package sensor_simulator

import (
	"context"
	"encoding/json"
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/LeonardoBeccarini/sdcc_field_planner/internal/model/entities"
	"github.com/LeonardoBeccarini/sdcc_field_planner/internal/model/messages"
	"github.com/LeonardoBeccarini/sdcc_field_planner/pkg/rabbitmq"
)

const (
	// DefaultUpdateInterval between two random-walk steps.
	DefaultUpdateInterval = 3 * time.Second

	// each step adds U(walkMin, walkMax) percentage points, so fields dry out slowly
	walkMin = -5.0
	walkMax = 3.0
)

// MoistureUpdater random-walks every sensor of the live field and publishes
// the readings. It is the single writer of its FieldStore.
type MoistureUpdater struct {
	store     *FieldStore
	rng       *rand.Rand
	publisher rabbitmq.IPublisher
	now       func() time.Time
}

// NewMoistureUpdater: publisher may be nil to only mutate the store.
func NewMoistureUpdater(store *FieldStore, rng *rand.Rand, publisher rabbitmq.IPublisher) *MoistureUpdater {
	return &MoistureUpdater{
		store:     store,
		rng:       rng,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Step advances every sensor once and returns the new readings in field order.
func (u *MoistureUpdater) Step() []messages.SensorData {
	var out []messages.SensorData
	ts := u.now()
	u.store.Mutate(func(f *entities.Field) {
		out = make([]messages.SensorData, 0, len(f.Sensors))
		for i := range f.Sensors {
			s := &f.Sensors[i]
			s.Moisture = clampPercent(s.Moisture + walkMin + u.rng.Float64()*(walkMax-walkMin))
			out = append(out, messages.SensorData{
				FieldID:   s.FieldID,
				SensorID:  s.ID,
				Moisture:  s.Moisture,
				Timestamp: ts,
			})
		}
	})
	return out
}

// Start steps and publishes on every tick until ctx is done.
func (u *MoistureUpdater) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultUpdateInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			readings := u.Step()
			if u.publisher == nil {
				continue
			}
			u.publish(readings)
		}
	}
}

func (u *MoistureUpdater) publish(readings []messages.SensorData) {
	failed := 0
	for _, sd := range readings {
		payload, err := json.Marshal(sd)
		if err != nil {
			log.Printf("sensor: marshal %s: %v", sd.SensorID, err)
			continue
		}
		topic := rabbitmq.MoistureTopic(sd.SensorID)
		if err := u.publisher.PublishTo(topic, 0, false, payload); err != nil {
			failed++
			log.Printf("sensor: publish error on %s: %v", topic, err)
		}
	}
	if len(readings) > 0 {
		log.Printf("sensor: published %d/%d readings", len(readings)-failed, len(readings))
	}
}

func clampPercent(x float64) float64 {
	return math.Max(0, math.Min(100, x))
}
