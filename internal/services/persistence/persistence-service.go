// Package persistence stores aggregated readings and run summaries in InfluxDB
// and serves the latest reading per sensor.
package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sony/gobreaker"

	"github.com/LeonardoBeccarini/sdcc_field_planner/internal/model/messages"
	"github.com/LeonardoBeccarini/sdcc_field_planner/pkg/breaker"
	"github.com/LeonardoBeccarini/sdcc_field_planner/pkg/dedup"
	"github.com/LeonardoBeccarini/sdcc_field_planner/pkg/rabbitmq"
)

const (
	DefaultMeasurement    = "soil_moisture"
	DefaultRunMeasurement = "simulation_run"
)

// PointWriter is the part of api.WriteAPIBlocking the service needs.
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// LatestQuerier returns the newest reading of every sensor seen in the last minutes.
type LatestQuerier interface {
	QueryLatest(ctx context.Context, minutes int) ([]messages.SensorData, error)
}

type Options struct {
	Measurement    string
	RunMeasurement string
	Breaker        breaker.Settings
	DedupTTL       time.Duration
	// Connected reports the broker link for /readyz; nil counts as connected.
	Connected func() bool
	// a write error younger than this keeps /readyz at 503
	MinErrorAge time.Duration
}

type Service struct {
	consumer rabbitmq.IConsumer[mqtt.Message]
	writer   PointWriter
	querier  LatestQuerier
	opts     Options
	dedup    *dedup.Deduper
	breaker  *gobreaker.CircuitBreaker
	now      func() time.Time

	mu        sync.RWMutex
	latest    map[string]messages.SensorData
	lastErr   time.Time
	written   int64
	dropped   int64
	lastRunID string
}

func NewService(consumer rabbitmq.IConsumer[mqtt.Message], writer PointWriter, querier LatestQuerier, opts Options) (*Service, error) {
	if writer == nil {
		return nil, fmt.Errorf("persistence: nil point writer")
	}
	if opts.Measurement == "" {
		opts.Measurement = DefaultMeasurement
	}
	if opts.RunMeasurement == "" {
		opts.RunMeasurement = DefaultRunMeasurement
	}
	if opts.MinErrorAge <= 0 {
		opts.MinErrorAge = 30 * time.Second
	}
	return &Service{
		consumer: consumer,
		writer:   writer,
		querier:  querier,
		opts:     opts,
		dedup:    dedup.New(opts.DedupTTL, 0),
		breaker:  breaker.New("influx-writer", opts.Breaker, nil),
		now:      time.Now,
		latest:   make(map[string]messages.SensorData),
	}, nil
}

// Start consumes until ctx is done.
func (s *Service) Start(ctx context.Context) {
	s.consumer.SetHandler(func(topic string, msg mqtt.Message) error {
		return s.handle(ctx, msg)
	})
	s.consumer.ConsumeMessage(ctx)
}

func (s *Service) handle(ctx context.Context, msg mqtt.Message) error {
	if !s.dedup.ShouldProcess(dedup.PayloadKey(msg.Payload())) {
		s.mu.Lock()
		s.dropped++
		s.mu.Unlock()
		return nil
	}
	if msg.Topic() == rabbitmq.TopicSimulationSummary {
		var ev messages.SimulationCompletedEvent
		if err := json.Unmarshal(msg.Payload(), &ev); err != nil {
			// bad payloads are dropped, the stream keeps going
			log.Printf("persistence: invalid summary on %s: %v", msg.Topic(), err)
			return nil
		}
		return s.storeRun(ctx, ev)
	}

	var m messages.SensorData
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		log.Printf("persistence: invalid reading on %s: %v", msg.Topic(), err)
		return nil
	}
	if m.SensorID == "" {
		m.SensorID = strings.TrimPrefix(msg.Topic(), rabbitmq.TopicAggregatedPrefix)
	}
	return s.storeReading(ctx, m)
}

func (s *Service) storeReading(ctx context.Context, m messages.SensorData) error {
	if m.Timestamp.IsZero() {
		m.Timestamp = s.now().UTC()
	}
	point := influxdb2.NewPoint(s.opts.Measurement,
		map[string]string{
			"field_id":  m.FieldID,
			"sensor_id": m.SensorID,
		},
		map[string]interface{}{
			"moisture":   m.Moisture,
			"aggregated": m.Aggregated,
			"samples":    m.Samples,
		},
		m.Timestamp)

	s.remember(m)
	if err := s.write(ctx, point); err != nil {
		return err
	}
	log.Printf("persistence: wrote %s field=%s sensor=%s moisture=%.2f",
		s.opts.Measurement, m.FieldID, m.SensorID, m.Moisture)
	return nil
}

func (s *Service) storeRun(ctx context.Context, ev messages.SimulationCompletedEvent) error {
	t := ev.Timestamp
	if t.IsZero() {
		t = s.now().UTC()
	}
	point := influxdb2.NewPoint(s.opts.RunMeasurement,
		map[string]string{
			"field_id": ev.FieldID,
			"run_id":   ev.RunID,
		},
		map[string]interface{}{
			"sensor_count":       ev.SensorCount,
			"dry_count":          ev.DryCount,
			"target_count":       ev.TargetCount,
			"nn_distance_km":     ev.NNDistanceKm,
			"opt_distance_km":    ev.OptDistanceKm,
			"efficiency_ratio":   ev.EfficiencyRatio,
			"two_opt_moves":      ev.TwoOptMoves,
			"station_count":      ev.StationCount,
			"total_power_mv":     ev.TotalPowerMV,
			"optimized_power_mv": ev.OptimizedPowerMV,
		},
		t)
	if err := s.write(ctx, point); err != nil {
		return err
	}
	s.mu.Lock()
	s.lastRunID = ev.RunID
	s.mu.Unlock()
	log.Printf("persistence: wrote %s run=%s targets=%d opt=%.3fkm",
		s.opts.RunMeasurement, ev.RunID, ev.TargetCount, ev.OptDistanceKm)
	return nil
}

func (s *Service) write(ctx context.Context, point *write.Point) error {
	err := breaker.Do(s.breaker, func() error {
		return s.writer.WritePoint(ctx, point)
	})
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastErr = s.now()
		return fmt.Errorf("persistence: write %s: %w", point.Name(), err)
	}
	s.written++
	return nil
}

// remember keeps the newest reading per sensor, older redeliveries are ignored.
func (s *Service) remember(m messages.SensorData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.latest[m.SensorID]; ok && prev.Timestamp.After(m.Timestamp) {
		return
	}
	s.latest[m.SensorID] = m
}

// LatestCache returns the cached readings sorted by sensor ID.
func (s *Service) LatestCache() []messages.SensorData {
	s.mu.RLock()
	out := make([]messages.SensorData, 0, len(s.latest))
	for _, m := range s.latest {
		out = append(out, m)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].SensorID < out[j].SensorID })
	return out
}

// Latest prefers Influx and falls back to the cache. The second value names
// the source that answered.
func (s *Service) Latest(ctx context.Context, source string, minutes int) ([]messages.SensorData, string) {
	if s.querier != nil && (source == "auto" || source == "influx") {
		list, err := s.querier.QueryLatest(ctx, minutes)
		if err != nil {
			log.Printf("persistence: influx query failed, serving cache: %v", err)
		} else if len(list) > 0 {
			return list, "influx"
		}
	}
	return s.LatestCache(), "cache"
}

// LastErrorAge is the time since the last failed write; very large before any failure.
func (s *Service) LastErrorAge() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastErr.IsZero() {
		return 99999 * time.Hour
	}
	return s.now().Sub(s.lastErr)
}

func (s *Service) connected() bool {
	return s.opts.Connected == nil || s.opts.Connected()
}
