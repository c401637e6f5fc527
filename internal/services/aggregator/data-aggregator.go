// Package aggregator averages raw moisture readings per sensor and republishes
// them at-least-once for persistence.
package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/LeonardoBeccarini/sdcc_field_planner/internal/model/messages"
	"github.com/LeonardoBeccarini/sdcc_field_planner/pkg/rabbitmq"
)

const DefaultInterval = time.Minute

type DataAggregatorService struct {
	consumer            rabbitmq.IConsumer[mqtt.Message]
	publisher           rabbitmq.IPublisher
	buffer              map[string][]messages.SensorData // by sensor ID
	mutex               sync.Mutex
	aggregationInterval time.Duration
	now                 func() time.Time
}

func NewDataAggregatorService(consumer rabbitmq.IConsumer[mqtt.Message], publisher rabbitmq.IPublisher, aggregationInterval time.Duration) *DataAggregatorService {
	if aggregationInterval <= 0 {
		aggregationInterval = DefaultInterval
	}
	return &DataAggregatorService{
		consumer:            consumer,
		publisher:           publisher,
		aggregationInterval: aggregationInterval,
		buffer:              make(map[string][]messages.SensorData),
		now:                 time.Now,
	}
}

func (d *DataAggregatorService) messageHandler(_ string, message mqtt.Message) error {
	var reading messages.SensorData
	if err := json.Unmarshal(message.Payload(), &reading); err != nil {
		return fmt.Errorf("aggregator: bad reading on %s: %w", message.Topic(), err)
	}
	if reading.SensorID == "" {
		return fmt.Errorf("aggregator: reading on %s has no sensor_id", message.Topic())
	}
	// already averaged upstream, nothing to do
	if reading.Aggregated {
		return nil
	}

	d.mutex.Lock()
	d.buffer[reading.SensorID] = append(d.buffer[reading.SensorID], reading)
	d.mutex.Unlock()
	return nil
}

// Start blocks until ctx is done, flushing the buffer every interval.
func (d *DataAggregatorService) Start(ctx context.Context) {
	d.consumer.SetHandler(d.messageHandler)
	go d.consumer.ConsumeMessage(ctx)

	ticker := time.NewTicker(d.aggregationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.publisher.Close()
			return
		case <-ticker.C:
			n := d.aggregateAndPublish()
			log.Printf("aggregator: cycle published %d sensors", n)
		}
	}
}

// aggregate drains the buffer into one mean reading per sensor, sorted by ID.
func (d *DataAggregatorService) aggregate() []messages.SensorData {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	out := make([]messages.SensorData, 0, len(d.buffer))
	for sensorID, readings := range d.buffer {
		if len(readings) == 0 {
			continue
		}
		sum := 0.0
		for _, r := range readings {
			sum += r.Moisture
		}
		out = append(out, messages.SensorData{
			SensorID:   sensorID,
			FieldID:    readings[len(readings)-1].FieldID,
			Moisture:   sum / float64(len(readings)),
			Aggregated: true,
			Samples:    len(readings),
			Timestamp:  d.now().UTC(),
		})
		d.buffer[sensorID] = readings[:0]
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SensorID < out[j].SensorID })
	return out
}

func (d *DataAggregatorService) aggregateAndPublish() int {
	published := 0
	for _, out := range d.aggregate() {
		b, err := json.Marshal(out)
		if err != nil {
			log.Printf("aggregator: marshal %s: %v", out.SensorID, err)
			continue
		}
		if err := d.publisher.PublishTo(rabbitmq.AggregatedTopic(out.SensorID), 1, false, b); err != nil {
			log.Printf("aggregator: publish %s: %v", out.SensorID, err)
			continue
		}
		published++
	}
	return published
}
