package app

import (
	"bytes"
	"fmt"
	"image/color"
	"net/http"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/LeonardoBeccarini/sdcc_field_planner/internal/model/entities"
	"github.com/LeonardoBeccarini/sdcc_field_planner/internal/simulation"
)

var (
	routeColor  = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	dryColor    = color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}
	targetColor = color.RGBA{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff}
	sensorColor = color.RGBA{R: 0x99, G: 0x99, B: 0x99, A: 0xff}
	depotColor  = color.RGBA{R: 0x1f, G: 0x3b, B: 0x73, A: 0xff}
)

func toXYs(points []entities.Point) plotter.XYs {
	xys := make(plotter.XYs, len(points))
	for i, pt := range points {
		xys[i].X = pt.Lon
		xys[i].Y = pt.Lat
	}
	return xys
}

func addScatter(p *plot.Plot, label string, points []entities.Point, c color.Color, radius vg.Length, shape draw.GlyphDrawer) error {
	if len(points) == 0 {
		return nil
	}
	s, err := plotter.NewScatter(toXYs(points))
	if err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}
	s.GlyphStyle.Color = c
	s.GlyphStyle.Radius = radius
	s.GlyphStyle.Shape = shape
	p.Add(s)
	p.Legend.Add(label, s)
	return nil
}

// splitTargets separates non-target sensors, dry targets and targets picked
// only by the driest-three fallback.
func splitTargets(res *simulation.Result) (others, dry, fallback []entities.Point) {
	isTarget := make(map[string]bool, len(res.Targets))
	for _, s := range res.Targets {
		isTarget[s.ID] = true
		if s.IsDry(res.Config.DryThreshold) {
			dry = append(dry, s.Position)
		} else {
			fallback = append(fallback, s.Position)
		}
	}
	for _, s := range res.Field.Sensors {
		if !isTarget[s.ID] {
			others = append(others, s.Position)
		}
	}
	return others, dry, fallback
}

// RoutePlot draws the optimized tour over the whole field.
func RoutePlot(res *simulation.Result) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Route %.3f km (nearest neighbour %.3f km)",
		res.Summary.OptDistanceKm, res.Summary.NNDistanceKm)
	p.X.Label.Text = "lon"
	p.Y.Label.Text = "lat"
	p.Add(plotter.NewGrid())

	others, dry, fallback := splitTargets(res)
	if err := addScatter(p, "sensors", others, sensorColor, vg.Points(2), draw.CircleGlyph{}); err != nil {
		return nil, err
	}

	line, err := plotter.NewLine(toXYs(res.RoutePoints()))
	if err != nil {
		return nil, fmt.Errorf("route: %w", err)
	}
	line.Color = routeColor
	line.Width = vg.Points(2)
	p.Add(line)
	p.Legend.Add("route", line)

	if err := addScatter(p, "dry targets", dry, dryColor, vg.Points(3), draw.CircleGlyph{}); err != nil {
		return nil, err
	}
	if err := addScatter(p, "fallback targets", fallback, targetColor, vg.Points(3), draw.CircleGlyph{}); err != nil {
		return nil, err
	}
	if err := addScatter(p, "depot", res.Coords[:1], depotColor, vg.Points(5), draw.BoxGlyph{}); err != nil {
		return nil, err
	}
	p.Legend.Top = true
	return p, nil
}

func (p *Planner) HandleRoutePNG(w http.ResponseWriter, _ *http.Request) {
	res := p.latestOr404(w)
	if res == nil {
		return
	}
	pl, err := RoutePlot(res)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	wt, err := pl.WriterTo(8*vg.Inch, 8*vg.Inch, "png")
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}
