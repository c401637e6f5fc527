package app

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"

	"github.com/LeonardoBeccarini/sdcc_field_planner/internal/simulation"
)

const maxRequestBody = 1 << 20

// Routes wires every HTTP endpoint of the planner.
func (p *Planner) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /simulate", p.HandleSimulate)
	mux.HandleFunc("GET /simulation/latest", p.HandleLatest)
	mux.HandleFunc("GET /sensors/live", p.HandleLiveSensors)

	mux.HandleFunc("GET /maps/sensors", p.HandleSensorsMap)
	mux.HandleFunc("GET /maps/route", p.HandleRouteMap)
	mux.HandleFunc("GET /maps/power", p.HandlePowerMap)
	mux.HandleFunc("GET /maps/route.png", p.HandleRoutePNG)

	mux.HandleFunc("GET /export/sensors.csv", p.HandleSensorsCSV)
	mux.HandleFunc("GET /export/route.csv", p.HandleRouteCSV)

	mux.HandleFunc("GET /healthz", p.HandleHealth)
	mux.HandleFunc("GET /readyz", p.HandleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(p.metrics.Registry, promhttp.HandlerOpts{}))
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeSimulateRequest accepts JSON bodies and url-encoded or multipart forms.
func decodeSimulateRequest(r *http.Request) (SimulateRequest, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		var req SimulateRequest
		dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			return req, err
		}
		return req, nil
	}
	if ct == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxRequestBody); err != nil {
			return SimulateRequest{}, err
		}
	} else if err := r.ParseForm(); err != nil {
		return SimulateRequest{}, err
	}
	return parseForm(r.Form)
}

func (p *Planner) HandleSimulate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	req, err := decodeSimulateRequest(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := p.Simulate(req.Config(p.cfg.Defaults))
	if err != nil {
		if errors.Is(err, simulation.ErrInvalidConfiguration) {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, newSimulateResponse(res))
	p.log.Printf("POST /simulate [%dms] run=%s", time.Since(start).Milliseconds(), res.RunID)
}

// latestOr404 writes a 404 and returns nil before the first run.
func (p *Planner) latestOr404(w http.ResponseWriter) *simulation.Result {
	res := p.Latest()
	if res == nil {
		writeJSONError(w, http.StatusNotFound, "no simulation has run yet")
	}
	return res
}

func (p *Planner) HandleLatest(w http.ResponseWriter, _ *http.Request) {
	res := p.latestOr404(w)
	if res == nil {
		return
	}
	writeJSON(w, http.StatusOK, newSimulateResponse(res))
}

func (p *Planner) HandleLiveSensors(w http.ResponseWriter, _ *http.Request) {
	field, gen := p.store.SnapshotWithGeneration()
	if field == nil {
		writeJSONError(w, http.StatusNotFound, "no live field yet")
		return
	}
	threshold := p.cfg.Defaults.DryThreshold
	if res := p.Latest(); res != nil {
		threshold = res.Config.DryThreshold
	}
	view := LiveFieldView{
		FieldID:    field.ID,
		Generation: gen,
		Sensors:    make([]SensorView, len(field.Sensors)),
	}
	for i, s := range field.Sensors {
		view.Sensors[i] = newSensorView(s, threshold)
	}
	writeJSON(w, http.StatusOK, view)
}

func (p *Planner) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int(time.Since(startedAt).Seconds()),
	})
}

// HandleReady reports 503 while the summary breaker is open.
func (p *Planner) HandleReady(w http.ResponseWriter, _ *http.Request) {
	state := p.breaker.State()
	body := map[string]any{
		"breaker":    state.String(),
		"has_result": p.Latest() != nil,
	}
	if p.publisher != nil && state == gobreaker.StateOpen {
		body["status"] = "degraded"
		writeJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	body["status"] = "ready"
	writeJSON(w, http.StatusOK, body)
}
