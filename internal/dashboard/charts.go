package dashboard

import (
	"bytes"
	"fmt"
	"image/color"
	"math"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/har/internal/httputil"
	"github.com/banshee-data/har/internal/plot"
	"github.com/banshee-data/har/internal/trajectory"
	"github.com/banshee-data/har/internal/units"
)

const (
	// approachSamples is the resolution of the drawn approach curve.
	approachSamples = 24
	// defaultDistancePoints is how many stored samples /charts/distance
	// reads when no limit is given.
	defaultDistancePoints = 300
	maxDistancePoints     = 5000
)

func hexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func (s *Server) initOpts(title string) opts.Initialization {
	return opts.Initialization{
		PageTitle:  title,
		Width:      "100%",
		Height:     "480px",
		AssetsHost: s.cfg.AssetsHost,
	}
}

// renderPage writes one or more charts as a standalone HTML page.
func (s *Server) renderPage(w http.ResponseWriter, chart components.Charter) {
	page := components.NewPage()
	if s.cfg.AssetsHost != "" {
		page.SetAssetsHost(s.cfg.AssetsHost)
	}
	page.AddCharts(chart)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleSpeedChart renders the current speed of every tracked joint as a
// bar coloured by motion class.
func (s *Server) handleSpeedChart(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.cfg.State.Latest()
	if !ok {
		httputil.ServiceUnavailable(w, errNoFrames.Error())
		return
	}

	unit := s.cfg.SpeedUnit
	var (
		x []string
		y []opts.BarData
	)
	for _, u := range snap.Users {
		for _, js := range u.Tracking.Joints {
			x = append(x, fmt.Sprintf("User %d %s", u.UserID, js.Joint.Label()))
			y = append(y, opts.BarData{
				Name:      string(js.Class),
				Value:     round2(units.ConvertSpeed(js.Speed, unit, s.cfg.PixelsPerInch)),
				ItemStyle: &opts.ItemStyle{Color: hexColor(js.Class.Color())},
			})
		}
	}

	limit := round2(units.ConvertSpeed(s.cfg.Thresholds.StationarySpeed, unit, s.cfg.PixelsPerInch))
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(s.initOpts("Hand speeds")),
		charts.WithTitleOpts(opts.Title{Title: "Hand speeds", Subtitle: fmt.Sprintf("t=%dms users=%d", snap.TimeMs, len(snap.Users))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "speed (" + unit + ")"}),
	)
	bar.SetXAxis(x).
		AddSeries("speed", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
			charts.WithMarkLineNameYAxisItemOpts(opts.MarkLineNameYAxisItem{Name: "stationary", YAxis: limit}),
		)

	s.renderPage(w, bar)
}

// flipY converts a screen position (y down) into chart coordinates (y up).
func (s *Server) flipY(p r2.Vec) []interface{} {
	return []interface{}{round2(p.X), round2(float64(s.cfg.ImageHeight) - p.Y)}
}

// handleTrajectoryChart renders the recent screen trail of one joint, its
// current position in the class colour, the target and the approach curve.
func (s *Server) handleTrajectoryChart(w http.ResponseWriter, r *http.Request) {
	sel, err := s.parseSelection(r)
	if err != nil {
		writeSelectionError(w, err)
		return
	}
	u, js, err := s.jointState(sel)
	if err != nil {
		writeSelectionError(w, err)
		return
	}

	trail := make([]opts.ScatterData, 0, len(js.Trail))
	for _, p := range js.Trail {
		trail = append(trail, opts.ScatterData{Value: s.flipY(p)})
	}
	curve := plot.BezierPoints(js.ApproachCurve, approachSamples)
	approach := make([]opts.ScatterData, 0, len(curve))
	for _, p := range curve {
		approach = append(approach, opts.ScatterData{Value: s.flipY(p)})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(s.initOpts("Trajectory")),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("User %d %s", u.UserID, js.Joint.Label()),
			Subtitle: fmt.Sprintf("%s, %s, %.2f m to target", u.Label, js.Class, js.DistanceM),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "x (px)", Min: 0, Max: s.cfg.ImageWidth}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "y (px)", Min: 0, Max: s.cfg.ImageHeight}),
	)

	scatter.AddSeries("trail", trail,
		charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: "#999999"}),
	)
	scatter.AddSeries("approach", approach,
		charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 2}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: "#00a000"}),
	)
	if js.HasSample {
		scatter.AddSeries(string(js.Class), []opts.ScatterData{{Value: s.flipY(js.Screen)}},
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 14}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: hexColor(js.Class.Color())}),
		)
	}
	scatter.AddSeries("target", []opts.ScatterData{{Value: s.flipY(js.Target.Screen)}},
		charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 10}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: "#000000"}),
	)

	s.renderPage(w, scatter)
}

// handleDistanceChart renders the stored distance-to-target history of one
// joint.
func (s *Server) handleDistanceChart(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Store == nil || s.cfg.SessionID == "" {
		httputil.ServiceUnavailable(w, "no session store configured")
		return
	}
	sel, err := s.parseSelection(r)
	if err != nil {
		writeSelectionError(w, err)
		return
	}
	limit, err := httputil.QueryInt(r, "limit", defaultDistancePoints)
	if err != nil || limit < 1 || limit > maxDistancePoints {
		httputil.BadRequest(w, fmt.Sprintf("limit must be between 1 and %d", maxDistancePoints))
		return
	}

	samples, err := s.cfg.Store.RecentSamples(s.cfg.SessionID, sel.userID, sel.joint, limit)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(samples) == 0 {
		httputil.NotFound(w, "no samples stored")
		return
	}

	t0 := samples[0].TimeMs
	x := make([]string, 0, len(samples))
	distance := make([]opts.LineData, 0, len(samples))
	for _, hs := range samples {
		x = append(x, strconv.FormatFloat(float64(hs.TimeMs-t0)/1000, 'f', 2, 64))
		distance = append(distance, opts.LineData{Value: round2(hs.DistanceM)})
	}
	last := samples[len(samples)-1]

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(s.initOpts("Distance to target")),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("User %d %s distance to target", sel.userID, sel.joint.Label()),
			Subtitle: fmt.Sprintf("%d samples, now %s", len(samples), last.Class),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "time (s)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "distance (m)", Min: 0}),
	)
	line.SetXAxis(x).
		AddSeries("distance", distance,
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: hexColor(trajectory.ClassNearTarget.Color())}),
			charts.WithMarkLineNameYAxisItemOpts(opts.MarkLineNameYAxisItem{
				Name:  "near target",
				YAxis: s.cfg.Thresholds.NearTargetDistance,
			}),
		)

	s.renderPage(w, line)
}
