package app

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/LeonardoBeccarini/sdcc_field_planner/internal/model/entities"
	"github.com/LeonardoBeccarini/sdcc_field_planner/internal/simulation"
)

// marker colours of the three map views
const (
	colorDry      = "#d62728"
	colorModerate = "#ff7f0e"
	colorWet      = "#2ca02c"
	colorDepot    = "#1f3b73"
	colorRoute    = "#1f77b4"
	colorStation  = "#9467bd"
)

var bandColors = map[entities.MoistureBand]string{
	entities.BandDry:      colorDry,
	entities.BandModerate: colorModerate,
	entities.BandWet:      colorWet,
}

// newMapChart sets the shared look: lon on x, lat on y, both scaled to the data.
func (p *Planner) newMapChart(title, subtitle string) *charts.Scatter {
	c := charts.NewScatter()
	init := opts.Initialization{PageTitle: title, Width: "900px", Height: "700px"}
	if p.cfg.AssetsHost != "" {
		init.AssetsHost = p.cfg.AssetsHost
	}
	c.SetGlobalOptions(
		charts.WithInitializationOpts(init),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "lon", Scale: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "lat", Scale: opts.Bool(true)}),
	)
	return c
}

func pointData(name string, pt entities.Point, extra ...interface{}) opts.ScatterData {
	return opts.ScatterData{Name: name, Value: append([]interface{}{pt.Lon, pt.Lat}, extra...)}
}

func colored(color string, size int) charts.SeriesOpts {
	return func(s *charts.SingleSeries) {
		charts.WithItemStyleOpts(opts.ItemStyle{Color: color})(s)
		charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: size})(s)
	}
}

func depotSeries(c *charts.Scatter, depot entities.Point) {
	c.AddSeries("depot", []opts.ScatterData{pointData(simulation.DepotID, depot)},
		colored(colorDepot, 16),
		charts.WithScatterChartOpts(opts.ScatterChart{Symbol: "diamond", SymbolSize: 16}))
}

// sensorsByBand groups markers the way the field view colours them.
func sensorsByBand(sensors []entities.Sensor, dryThreshold float64) map[entities.MoistureBand][]opts.ScatterData {
	out := make(map[entities.MoistureBand][]opts.ScatterData, 3)
	for _, s := range sensors {
		b := s.Band(dryThreshold)
		out[b] = append(out[b], pointData(s.ID, s.Position, round(s.Moisture, 1)))
	}
	return out
}

// SensorsMap: every sensor, red below the dry threshold, orange below 60%, green above.
func (p *Planner) SensorsMap(res *simulation.Result) *charts.Scatter {
	c := p.newMapChart("All sensors",
		fmt.Sprintf("%d sensors, %d dry (< %.0f%%)", res.Summary.SensorCount, res.Summary.DryCount, res.Config.DryThreshold))
	groups := sensorsByBand(res.Field.Sensors, res.Config.DryThreshold)
	for _, band := range []entities.MoistureBand{entities.BandDry, entities.BandModerate, entities.BandWet} {
		c.AddSeries(string(band), groups[band], colored(bandColors[band], 10))
	}
	depotSeries(c, res.Field.Depot)
	return c
}

// RouteMap: the optimized tour as a polyline over the irrigation targets.
func (p *Planner) RouteMap(res *simulation.Result) *charts.Scatter {
	c := p.newMapChart("Optimized route",
		fmt.Sprintf("nearest neighbour %.3f km, 2-opt %.3f km, %d targets",
			res.Summary.NNDistanceKm, res.Summary.OptDistanceKm, res.Summary.TargetCount))

	ids := res.RouteSensorIDs()
	line := charts.NewLine()
	stops := make([]opts.LineData, 0, len(res.Solution.Route))
	for i, pt := range res.RoutePoints() {
		stops = append(stops, opts.LineData{Name: ids[i], Value: []float64{pt.Lon, pt.Lat}})
	}
	line.AddSeries("route", stops,
		charts.WithLineStyleOpts(opts.LineStyle{Color: colorRoute, Width: 4}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: colorRoute}))

	// fallback targets need not be dry, so they keep their own band colour
	groups := sensorsByBand(res.Targets, res.Config.DryThreshold)
	for _, band := range []entities.MoistureBand{entities.BandDry, entities.BandModerate, entities.BandWet} {
		if len(groups[band]) == 0 {
			continue
		}
		c.AddSeries(string(band)+" targets", groups[band], colored(bandColors[band], 12))
	}
	depotSeries(c, res.Field.Depot)
	c.Overlap(line)
	return c
}

// PowerMap: charging stations over the field, sensors red when dry and green otherwise.
func (p *Planner) PowerMap(res *simulation.Result) *charts.Scatter {
	subtitle := "no power parameters for this run"
	if pw := res.Summary.Power; pw != nil {
		subtitle = fmt.Sprintf("%d stations x %.0f mV, total draw %.2f mV",
			pw.StationCount, pw.StationCapacityMV, pw.TotalPowerMV)
	}
	c := p.newMapChart("Power station planning", subtitle)

	stations := make([]opts.ScatterData, 0, len(res.Stations))
	for i, st := range res.Stations {
		stations = append(stations, pointData(fmt.Sprintf("Power Station #%d", i+1), st))
	}
	c.AddSeries("stations", stations, colored(colorStation, 18),
		charts.WithScatterChartOpts(opts.ScatterChart{Symbol: "pin", SymbolSize: 18}))

	var dry, ok []opts.ScatterData
	for _, s := range res.Field.Sensors {
		d := pointData(s.ID, s.Position, round(s.Moisture, 1))
		if s.IsDry(res.Config.DryThreshold) {
			dry = append(dry, d)
		} else {
			ok = append(ok, d)
		}
	}
	c.AddSeries("dry", dry, colored(colorDry, 8))
	c.AddSeries("watered", ok, colored(colorWet, 8))
	return c
}

func (p *Planner) renderMap(w http.ResponseWriter, build func(*simulation.Result) *charts.Scatter) {
	res := p.latestOr404(w)
	if res == nil {
		return
	}
	var buf bytes.Buffer
	if err := build(res).Render(&buf); err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (p *Planner) HandleSensorsMap(w http.ResponseWriter, _ *http.Request) {
	p.renderMap(w, p.SensorsMap)
}

func (p *Planner) HandleRouteMap(w http.ResponseWriter, _ *http.Request) {
	p.renderMap(w, p.RouteMap)
}

func (p *Planner) HandlePowerMap(w http.ResponseWriter, _ *http.Request) {
	p.renderMap(w, p.PowerMap)
}
