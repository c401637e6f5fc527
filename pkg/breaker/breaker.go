// Package breaker builds the gobreaker circuit breakers used around the
// outbound calls of every service (MQTT publishes, Influx writes).
package breaker

import (
	"log"
	"time"

	"github.com/sony/gobreaker"
)

// Settings mirror the BREAKER_* environment knobs.
type Settings struct {
	Failures int           // consecutive failures that open the breaker
	OpenFor  time.Duration // time spent open before a half-open trial call
	Interval time.Duration // closed-state counter reset period, 0 never resets
}

func (s Settings) withDefaults() Settings {
	if s.Failures < 1 {
		s.Failures = 5
	}
	if s.OpenFor <= 0 {
		s.OpenFor = 10 * time.Second
	}
	return s
}

// New returns a breaker that trips after s.Failures consecutive failures.
// onChange may be nil.
func New(name string, s Settings, onChange func(from, to gobreaker.State)) *gobreaker.CircuitBreaker {
	s = s.withDefaults()
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     name,
		Interval: s.Interval,
		Timeout:  s.OpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(s.Failures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("breaker %s: %s -> %s", name, from, to)
			if onChange != nil {
				onChange(from, to)
			}
		},
	})
}

// Do runs fn through cb and drops the unused result value.
func Do(cb *gobreaker.CircuitBreaker, fn func() error) error {
	_, err := cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}
