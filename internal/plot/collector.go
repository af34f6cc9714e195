package plot

import (
	"errors"
	"fmt"
	"image/color"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/har/internal/fsutil"
	"github.com/banshee-data/har/internal/joints"
	"github.com/banshee-data/har/internal/monitoring"
	"github.com/banshee-data/har/internal/security"
	"github.com/banshee-data/har/internal/sink"
	"github.com/banshee-data/har/internal/trajectory"
	"github.com/banshee-data/har/internal/units"
)

// DefaultMaxPoints bounds the samples kept per joint.
const DefaultMaxPoints = 5000

// curveSamples is the resolution of the drawn approach curve.
const curveSamples = 32

// Config controls where and how plots are rendered.
type Config struct {
	FS  fsutil.FileSystem // nil uses the OS
	Dir string

	ImageWidth  int // screen width in pixels (default 640)
	ImageHeight int // screen height in pixels (default 480)

	Thresholds    trajectory.Thresholds
	SpeedUnit     string
	PixelsPerInch float64

	// MaxPoints bounds the samples kept per joint; the oldest are dropped.
	MaxPoints int
}

type seriesKey struct {
	user  int
	joint joints.JointID
}

type point struct {
	timeMs   int64
	screen   r2.Vec
	speed    float64
	distance float64
	class    trajectory.MotionClass
}

type series struct {
	points []point
	curve  [4]r2.Vec
	target r2.Vec
}

// Collector accumulates joint samples across a session and renders them
// when closed. It is not safe for concurrent use; run it behind a
// sink.AsyncWriter.
type Collector struct {
	cfg     Config
	series  map[seriesKey]*series
	written []string
}

var _ sink.SnapshotWriter = (*Collector)(nil)

// NewCollector creates a Collector writing into cfg.Dir.
func NewCollector(cfg Config) *Collector {
	if cfg.FS == nil {
		cfg.FS = fsutil.OSFileSystem{}
	}
	if cfg.ImageWidth <= 0 {
		cfg.ImageWidth = 640
	}
	if cfg.ImageHeight <= 0 {
		cfg.ImageHeight = 480
	}
	if cfg.Thresholds.StationarySpeed <= 0 || cfg.Thresholds.NearTargetDistance <= 0 {
		cfg.Thresholds = trajectory.DefaultThresholds()
	}
	if !units.IsValid(cfg.SpeedUnit) {
		cfg.SpeedUnit = units.PixelsPerSecond
	}
	if cfg.MaxPoints <= 0 {
		cfg.MaxPoints = DefaultMaxPoints
	}
	return &Collector{
		cfg:    cfg,
		series: make(map[seriesKey]*series),
	}
}

// Write records every joint sample newer than the last one seen.
func (c *Collector) Write(snap joints.RegistrySnapshot) error {
	for _, u := range snap.Users {
		for _, js := range u.Tracking.Joints {
			if !js.HasSample {
				continue
			}
			key := seriesKey{user: u.UserID, joint: js.Joint}
			s, ok := c.series[key]
			if !ok {
				s = &series{}
				c.series[key] = s
			}
			if n := len(s.points); n > 0 && js.TimeMs <= s.points[n-1].timeMs {
				continue
			}
			s.points = append(s.points, point{
				timeMs:   js.TimeMs,
				screen:   js.Screen,
				speed:    js.Speed,
				distance: js.DistanceM,
				class:    js.Class,
			})
			if len(s.points) > c.cfg.MaxPoints {
				s.points = s.points[len(s.points)-c.cfg.MaxPoints:]
			}
			s.curve = js.ApproachCurve
			s.target = js.Target.Screen
		}
	}
	return nil
}

// Flush is a no-op; plots are rendered on Close.
func (c *Collector) Flush() error { return nil }

// Close renders every collected series.
func (c *Collector) Close() error {
	return c.WritePlots()
}

// Written lists the files produced by WritePlots.
func (c *Collector) Written() []string {
	return append([]string(nil), c.written...)
}

// WritePlots renders a trajectory, speed and distance PNG per user joint.
func (c *Collector) WritePlots() error {
	if len(c.series) == 0 {
		return nil
	}
	if err := c.cfg.FS.MkdirAll(c.cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("create plot dir: %w", err)
	}

	keys := make([]seriesKey, 0, len(c.series))
	for k := range c.series {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].user != keys[j].user {
			return keys[i].user < keys[j].user
		}
		return keys[i].joint < keys[j].joint
	})

	var errs []error
	for _, k := range keys {
		s := c.series[k]
		if len(s.points) == 0 {
			continue
		}
		stem := fmt.Sprintf("u%02d_%s", k.user, security.SanitizeFilename(string(k.joint)))
		if err := c.writeTrajectory(k, s, "trajectory_"+stem+".png"); err != nil {
			errs = append(errs, err)
		}
		if err := c.writeSpeed(k, s, "speed_"+stem+".png"); err != nil {
			errs = append(errs, err)
		}
		if err := c.writeDistance(k, s, "distance_"+stem+".png"); err != nil {
			errs = append(errs, err)
		}
	}
	monitoring.Logf("[plot] wrote %d plots to %s", len(c.written), c.cfg.Dir)
	return errors.Join(errs...)
}

// flipY converts a screen position (y down) to plot coordinates (y up).
func (c *Collector) flipY(p r2.Vec) plotter.XY {
	return plotter.XY{X: p.X, Y: float64(c.cfg.ImageHeight) - p.Y}
}

var plotClasses = []trajectory.MotionClass{
	trajectory.ClassMoving,
	trajectory.ClassStationary,
	trajectory.ClassNearTarget,
}

func (c *Collector) writeTrajectory(k seriesKey, s *series, name string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("User %d %s trajectory", k.user, k.joint.Label())
	p.X.Label.Text = "x (px)"
	p.Y.Label.Text = "y (px)"
	p.X.Min, p.X.Max = 0, float64(c.cfg.ImageWidth)
	p.Y.Min, p.Y.Max = 0, float64(c.cfg.ImageHeight)
	p.Add(plotter.NewGrid())

	path := make(plotter.XYs, len(s.points))
	byClass := make(map[trajectory.MotionClass]plotter.XYs)
	for i, pt := range s.points {
		path[i] = c.flipY(pt.screen)
		byClass[pt.class] = append(byClass[pt.class], path[i])
	}

	if len(path) > 1 {
		line, err := plotter.NewLine(path)
		if err != nil {
			return fmt.Errorf("trajectory line: %w", err)
		}
		line.Color = color.Gray{Y: 160}
		line.Width = vg.Points(0.5)
		p.Add(line)
	}

	for _, class := range plotClasses {
		pts := byClass[class]
		if len(pts) == 0 {
			continue
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return fmt.Errorf("trajectory scatter %s: %w", class, err)
		}
		sc.GlyphStyle.Color = class.Color()
		sc.GlyphStyle.Radius = vg.Points(1.5)
		p.Add(sc)
		p.Legend.Add(string(class), sc)
	}

	curve := BezierPoints(s.curve, curveSamples)
	curvePts := make(plotter.XYs, len(curve))
	for i, v := range curve {
		curvePts[i] = c.flipY(v)
	}
	approach, err := plotter.NewLine(curvePts)
	if err != nil {
		return fmt.Errorf("approach curve: %w", err)
	}
	approach.Color = color.RGBA{G: 160, A: 255}
	approach.Width = vg.Points(1)
	approach.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	p.Add(approach)
	p.Legend.Add("approach", approach)

	target, err := plotter.NewScatter(plotter.XYs{c.flipY(s.target)})
	if err != nil {
		return fmt.Errorf("target: %w", err)
	}
	target.GlyphStyle.Color = color.Black
	target.GlyphStyle.Radius = vg.Points(4)
	p.Add(target)
	p.Legend.Add("target", target)

	p.Legend.Top = true
	return c.save(p, 8*vg.Inch, 6*vg.Inch, name)
}

func (c *Collector) writeSpeed(k seriesKey, s *series, name string) error {
	unit := c.cfg.SpeedUnit
	ppi := c.cfg.PixelsPerInch
	t0 := s.points[0].timeMs

	p := plot.New()
	p.Title.Text = fmt.Sprintf("User %d %s speed", k.user, k.joint.Label())
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = fmt.Sprintf("speed (%s)", unit)
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(s.points))
	for i, pt := range s.points {
		pts[i] = plotter.XY{
			X: float64(pt.timeMs-t0) / 1000,
			Y: units.ConvertSpeed(pt.speed, unit, ppi),
		}
	}
	if err := addSeries(p, pts, "speed", color.RGBA{B: 200, A: 255}); err != nil {
		return fmt.Errorf("speed line: %w", err)
	}

	limit := units.ConvertSpeed(c.cfg.Thresholds.StationarySpeed, unit, ppi)
	addThreshold(p, limit, "stationary")
	return c.save(p, 10*vg.Inch, 4*vg.Inch, name)
}

func (c *Collector) writeDistance(k seriesKey, s *series, name string) error {
	t0 := s.points[0].timeMs

	p := plot.New()
	p.Title.Text = fmt.Sprintf("User %d %s distance to target", k.user, k.joint.Label())
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = "distance (m)"
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(s.points))
	for i, pt := range s.points {
		pts[i] = plotter.XY{X: float64(pt.timeMs-t0) / 1000, Y: pt.distance}
	}
	if err := addSeries(p, pts, "distance", color.RGBA{R: 200, A: 255}); err != nil {
		return fmt.Errorf("distance line: %w", err)
	}
	addThreshold(p, c.cfg.Thresholds.NearTargetDistance, "near target")
	return c.save(p, 10*vg.Inch, 4*vg.Inch, name)
}

// addSeries draws pts as a line, or a single marker when there is only one
// point.
func addSeries(p *plot.Plot, pts plotter.XYs, label string, col color.Color) error {
	if len(pts) == 1 {
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return err
		}
		sc.GlyphStyle.Color = col
		p.Add(sc)
		p.Legend.Add(label, sc)
		return nil
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Color = col
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add(label, line)
	return nil
}

func addThreshold(p *plot.Plot, y float64, label string) {
	f := plotter.NewFunction(func(float64) float64 { return y })
	f.Color = color.Gray{Y: 100}
	f.Dashes = []vg.Length{vg.Points(3), vg.Points(3)}
	p.Add(f)
	p.Legend.Add(label, f)
	p.Legend.Top = true
}

func (c *Collector) save(p *plot.Plot, w, h vg.Length, name string) error {
	wt, err := p.WriterTo(w, h, "png")
	if err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	path := filepath.Join(c.cfg.Dir, name)
	f, err := c.cfg.FS.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := wt.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	c.written = append(c.written, path)
	return nil
}
