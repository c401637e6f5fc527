package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	sensorSimulator "github.com/LeonardoBeccarini/sdcc_field_planner/internal/sensor-simulator"
	"github.com/LeonardoBeccarini/sdcc_field_planner/internal/simulation"
	"github.com/LeonardoBeccarini/sdcc_field_planner/pkg/breaker"
	"github.com/LeonardoBeccarini/sdcc_field_planner/pkg/rabbitmq"
)

type Config struct {
	// Defaults fill whatever a request leaves out.
	Defaults simulation.Config

	SummaryTopic string
	Breaker      breaker.Settings

	// AssetsHost serves the echarts javascript; empty uses the go-echarts CDN.
	AssetsHost string

	Logger *log.Logger
}

// Planner runs simulations and keeps the latest result in memory. The live
// field it hands to the moisture updater is replaced after every run.
type Planner struct {
	cfg       Config
	log       *log.Logger
	store     *sensorSimulator.FieldStore
	publisher rabbitmq.IPublisher
	breaker   *gobreaker.CircuitBreaker
	metrics   *Metrics

	mu     sync.RWMutex
	latest *simulation.Result
}

// NewPlanner: publisher may be nil, summaries are then only logged.
func NewPlanner(cfg Config, publisher rabbitmq.IPublisher) *Planner {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.SummaryTopic == "" {
		cfg.SummaryTopic = rabbitmq.TopicSimulationSummary
	}
	p := &Planner{
		cfg:       cfg,
		log:       cfg.Logger,
		store:     sensorSimulator.NewFieldStore(),
		publisher: publisher,
		metrics:   NewMetrics(),
	}
	p.breaker = breaker.New("summary-publisher", cfg.Breaker, func(_, to gobreaker.State) {
		p.metrics.setBreakerState(to)
	})
	return p
}

// Store is the live field, mutated only by the moisture updater.
func (p *Planner) Store() *sensorSimulator.FieldStore {
	return p.store
}

func (p *Planner) Metrics() *Metrics {
	return p.metrics
}

// Latest returns the last successful run, nil before the first one.
func (p *Planner) Latest() *simulation.Result {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest
}

// Simulate runs cfg, installs the result as latest and publishes its summary.
// Publishing problems are logged and never fail the run.
func (p *Planner) Simulate(cfg simulation.Config) (*simulation.Result, error) {
	res, err := simulation.Run(cfg)
	if err != nil {
		outcome := "error"
		if errors.Is(err, simulation.ErrInvalidConfiguration) {
			outcome = "invalid"
		}
		p.metrics.Runs.WithLabelValues(outcome).Inc()
		return nil, err
	}

	p.mu.Lock()
	p.latest = res
	p.store.Replace(res.Field)
	p.mu.Unlock()

	p.metrics.observeRun(res)
	p.log.Printf("planner: run %s sensors=%d dry=%d targets=%d nn=%.3fkm opt=%.3fkm moves=%d [%s]",
		res.RunID, res.Summary.SensorCount, res.Summary.DryCount, res.Summary.TargetCount,
		res.Summary.NNDistanceKm, res.Summary.OptDistanceKm, res.Summary.TwoOptMoves, res.Elapsed)

	if err := p.publishSummary(res); err != nil {
		p.metrics.PublishFailures.Inc()
		p.log.Printf("planner: summary publish failed (breaker=%s): %v", p.breaker.State(), err)
	}
	return res, nil
}

func (p *Planner) publishSummary(res *simulation.Result) error {
	if p.publisher == nil {
		return nil
	}
	payload, err := json.Marshal(res.Event())
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	return breaker.Do(p.breaker, func() error {
		return p.publisher.PublishTo(p.cfg.SummaryTopic, 1, false, payload)
	})
}

// uptime helper for /healthz
var startedAt = time.Now()
