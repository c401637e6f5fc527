package app

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/LeonardoBeccarini/sdcc_field_planner/internal/geo"
	"github.com/LeonardoBeccarini/sdcc_field_planner/internal/simulation"
)

func ftoa(f float64, prec int) string {
	return strconv.FormatFloat(f, 'f', prec, 64)
}

// WriteSensorsCSV: one row per sensor in field order.
func WriteSensorsCSV(w io.Writer, res *simulation.Result) error {
	targets := make(map[string]bool, len(res.Targets))
	for _, s := range res.Targets {
		targets[s.ID] = true
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"sensor_id", "lat", "lon", "moisture", "band", "target"}); err != nil {
		return err
	}
	for _, s := range res.Field.Sensors {
		row := []string{
			s.ID,
			ftoa(s.Position.Lat, 6),
			ftoa(s.Position.Lon, 6),
			ftoa(s.Moisture, 2),
			string(s.Band(res.Config.DryThreshold)),
			strconv.FormatBool(targets[s.ID]),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteRouteCSV: one row per stop of the optimized tour with leg and running distance.
func WriteRouteCSV(w io.Writer, res *simulation.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"stop", "node", "sensor_id", "lat", "lon", "leg_km", "cumulative_km"}); err != nil {
		return err
	}
	ids := res.RouteSensorIDs()
	points := res.RoutePoints()
	total := 0.0
	for i, node := range res.Solution.Route {
		leg := 0.0
		if i > 0 {
			leg = geo.HaversineKm(points[i-1], points[i])
		}
		total += leg
		row := []string{
			strconv.Itoa(i),
			strconv.Itoa(node),
			ids[i],
			ftoa(points[i].Lat, 6),
			ftoa(points[i].Lon, 6),
			ftoa(leg, 4),
			ftoa(total, 4),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (p *Planner) serveCSV(w http.ResponseWriter, name string, write func(io.Writer, *simulation.Result) error) {
	res := p.latestOr404(w)
	if res == nil {
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if err := write(w, res); err != nil {
		p.log.Printf("planner: export %s: %v", name, err)
	}
}

func (p *Planner) HandleSensorsCSV(w http.ResponseWriter, _ *http.Request) {
	p.serveCSV(w, "sensors.csv", WriteSensorsCSV)
}

func (p *Planner) HandleRouteCSV(w http.ResponseWriter, _ *http.Request) {
	p.serveCSV(w, "route.csv", WriteRouteCSV)
}
