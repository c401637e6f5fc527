package persistence

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

type latestReading struct {
	FieldID    string  `json:"field_id"`
	SensorID   string  `json:"sensor_id"`
	Moisture   float64 `json:"moisture"`
	Aggregated bool    `json:"aggregated"`
	Samples    int     `json:"samples,omitempty"`
	Timestamp  string  `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func NewHTTPMux(svc *Service) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", svc.handleHealth)
	mux.HandleFunc("GET /readyz", svc.handleReady)

	// GET /data/latest?source=auto|influx|cache&minutes=1440
	mux.HandleFunc("GET /data/latest", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		source := strings.ToLower(q.Get("source"))
		if source == "" {
			source = "auto"
		}
		if source != "auto" && source != "influx" && source != "cache" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "source must be auto, influx or cache"})
			return
		}
		minutes := 60 * 24
		if s := q.Get("minutes"); s != "" {
			if n, err := strconv.Atoi(s); err == nil && n > 0 {
				minutes = n
			}
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		list, used := svc.Latest(ctx, source, minutes)

		out := make([]latestReading, 0, len(list))
		for _, v := range list {
			out = append(out, latestReading{
				FieldID: v.FieldID, SensorID: v.SensorID, Moisture: v.Moisture,
				Aggregated: v.Aggregated, Samples: v.Samples,
				Timestamp: v.Timestamp.UTC().Format(time.RFC3339),
			})
		}
		w.Header().Set("X-Data-Source", used)
		writeJSON(w, http.StatusOK, out)
	})

	return mux
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	written, dropped, lastRun := s.written, s.dropped, s.lastRunID
	s.mu.RUnlock()

	age := s.LastErrorAge()
	status := "ok"
	switch {
	case !s.connected() && age <= s.opts.MinErrorAge:
		status = "down"
	case !s.connected() || age <= s.opts.MinErrorAge:
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":                   status,
		"mqtt_connected":           s.connected(),
		"breaker":                  s.breaker.State().String(),
		"last_write_error_age_sec": age.Seconds(),
		"points_written":           written,
		"duplicates_dropped":       dropped,
		"last_run_id":              lastRun,
	})
}

// handleReady: 200 only with the broker up, the breaker closed and no recent write error.
func (s *Service) handleReady(w http.ResponseWriter, _ *http.Request) {
	ready := s.connected() &&
		s.breaker.State() != gobreaker.StateOpen &&
		s.LastErrorAge() > s.opts.MinErrorAge
	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]bool{"ready": ready})
}
