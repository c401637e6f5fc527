package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sony/gobreaker"

	"github.com/LeonardoBeccarini/sdcc_field_planner/internal/simulation"
)

const metricsNamespace = "field_planner"

// Metrics are registered on a private registry so tests can build many planners.
type Metrics struct {
	Registry *prometheus.Registry

	Runs            *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	Targets         prometheus.Gauge
	OptDistanceKm   prometheus.Gauge
	EfficiencyRatio prometheus.Gauge
	TwoOptMoves     prometheus.Gauge
	PublishFailures prometheus.Counter
	BreakerState    prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "simulation_runs_total",
			Help:      "Simulation runs by outcome (ok, invalid, error).",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "simulation_duration_seconds",
			Help:      "Wall time of a simulation run.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
		Targets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "last_target_count",
			Help:      "Irrigation targets of the latest run.",
		}),
		OptDistanceKm: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "last_route_km",
			Help:      "Optimized route length of the latest run.",
		}),
		EfficiencyRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "last_efficiency_ratio",
			Help:      "Optimized over nearest neighbour distance of the latest run.",
		}),
		TwoOptMoves: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "last_two_opt_moves",
			Help:      "2-opt moves applied in the latest run.",
		}),
		PublishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "summary_publish_failures_total",
			Help:      "Run summaries that could not be published.",
		}),
		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "summary_breaker_state",
			Help:      "Summary publisher breaker: 0 closed, 1 half-open, 2 open.",
		}),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Runs, m.RunDuration, m.Targets, m.OptDistanceKm, m.EfficiencyRatio,
		m.TwoOptMoves, m.PublishFailures, m.BreakerState,
	)
	return m
}

func (m *Metrics) observeRun(res *simulation.Result) {
	m.Runs.WithLabelValues("ok").Inc()
	m.RunDuration.Observe(res.Elapsed.Seconds())
	m.Targets.Set(float64(res.Summary.TargetCount))
	m.OptDistanceKm.Set(res.Summary.OptDistanceKm)
	m.EfficiencyRatio.Set(res.Summary.EfficiencyRatio)
	m.TwoOptMoves.Set(float64(res.Summary.TwoOptMoves))
}

func (m *Metrics) setBreakerState(s gobreaker.State) {
	m.BreakerState.Set(float64(s))
}
