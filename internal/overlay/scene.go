// Package overlay draws joint tracking state on top of camera frames: the
// skeleton, a class-coloured marker and trail for each tracked hand, the
// approach curve towards the head and a block of per-user labels.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"sort"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/har/internal/joints"
	"github.com/banshee-data/har/internal/plot"
	"github.com/banshee-data/har/internal/trajectory"
	"github.com/banshee-data/har/internal/units"
)

var (
	boneColor   = color.RGBA{0, 255, 0, 255}
	jointColor  = color.RGBA{255, 255, 255, 255}
	curveColor  = color.RGBA{0, 200, 0, 255}
	targetColor = color.RGBA{255, 0, 255, 255}
	textColor   = color.RGBA{255, 255, 255, 255}
)

const (
	curveSamples = 20
	handRadius   = 12
	jointRadius  = 4
	lineHeight   = 18
	labelMargin  = 10
)

// Line is a segment in frame pixels.
type Line struct {
	From, To  image.Point
	Color     color.RGBA
	Thickness int
}

// Circle is a marker in frame pixels. Thickness -1 fills it.
type Circle struct {
	Center    image.Point
	Radius    int
	Color     color.RGBA
	Thickness int
}

// Text is a label anchored at its bottom-left corner.
type Text struct {
	At    image.Point
	Text  string
	Color color.RGBA
	Scale float64
}

// Scene is everything drawn for one snapshot, in paint order.
type Scene struct {
	Lines   []Line
	Circles []Circle
	Texts   []Text
}

// LayoutConfig controls Layout.
type LayoutConfig struct {
	// SourceWidth and SourceHeight are the sensor image size the screen
	// coordinates refer to. Zero means they match the frame.
	SourceWidth, SourceHeight int
	ConfidenceThreshold       float64
	SpeedUnit                 string
	PixelsPerInch             float64
}

type scaler struct{ sx, sy float64 }

func newScaler(cfg LayoutConfig, frame image.Point) scaler {
	s := scaler{sx: 1, sy: 1}
	if cfg.SourceWidth > 0 && frame.X > 0 {
		s.sx = float64(frame.X) / float64(cfg.SourceWidth)
	}
	if cfg.SourceHeight > 0 && frame.Y > 0 {
		s.sy = float64(frame.Y) / float64(cfg.SourceHeight)
	}
	return s
}

func (s scaler) point(v r2.Vec) image.Point {
	return image.Point{X: int(v.X*s.sx + 0.5), Y: int(v.Y*s.sy + 0.5)}
}

// Layout turns a snapshot into drawing primitives for a frame of the given
// size. Users are laid out in id order.
func Layout(snap joints.RegistrySnapshot, frame image.Point, cfg LayoutConfig) Scene {
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = joints.DefaultConfidenceThreshold
	}
	sc := newScaler(cfg, frame)

	users := make([]joints.UserSnapshot, len(snap.Users))
	copy(users, snap.Users)
	sort.Slice(users, func(i, j int) bool { return users[i].UserID < users[j].UserID })

	var s Scene
	y := labelMargin + lineHeight
	for _, u := range users {
		s.addSkeleton(u, sc, cfg.ConfidenceThreshold)
		if u.State == joints.StateTracking {
			for _, js := range u.Tracking.Joints {
				s.addHand(js, sc)
			}
		}
		for _, line := range UserLabels(u, cfg.SpeedUnit, cfg.PixelsPerInch) {
			s.Texts = append(s.Texts, Text{At: image.Point{X: labelMargin, Y: y}, Text: line, Color: textColor, Scale: 0.5})
			y += lineHeight
		}
	}
	return s
}

func (s *Scene) addSkeleton(u joints.UserSnapshot, sc scaler, threshold float64) {
	if len(u.Observations) == 0 {
		return
	}
	for _, limb := range joints.Limbs {
		a, okA := u.Observations[limb.From]
		b, okB := u.Observations[limb.To]
		if !okA || !okB || !a.Confident(threshold) || !b.Confident(threshold) {
			continue
		}
		s.Lines = append(s.Lines, Line{From: sc.point(a.Screen), To: sc.point(b.Screen), Color: boneColor, Thickness: 2})
	}

	ids := make([]string, 0, len(u.Observations))
	for id := range u.Observations {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	for _, id := range ids {
		obs := u.Observations[joints.JointID(id)]
		if !obs.Confident(threshold) {
			continue
		}
		s.Circles = append(s.Circles, Circle{Center: sc.point(obs.Screen), Radius: jointRadius, Color: jointColor, Thickness: -1})
	}
}

func (s *Scene) addHand(js joints.JointState, sc scaler) {
	if !js.HasSample {
		return
	}
	c := js.Class.Color()

	for i := 1; i < len(js.Trail); i++ {
		s.Lines = append(s.Lines, Line{From: sc.point(js.Trail[i-1]), To: sc.point(js.Trail[i]), Color: c, Thickness: 1})
	}

	if js.Target != (trajectory.Target{}) {
		curve := plot.BezierPoints(js.ApproachCurve, curveSamples)
		for i := 1; i < len(curve); i++ {
			s.Lines = append(s.Lines, Line{From: sc.point(curve[i-1]), To: sc.point(curve[i]), Color: curveColor, Thickness: 1})
		}
		s.Circles = append(s.Circles, Circle{Center: sc.point(js.Target.Screen), Radius: jointRadius + 2, Color: targetColor, Thickness: 2})
	}

	s.Circles = append(s.Circles, Circle{Center: sc.point(js.Screen), Radius: handRadius, Color: c, Thickness: 3})
}

// UserLabels returns the text block for one user: the state label with
// the centre of mass depth, then the tracked joint speeds and distances
// to the target.
func UserLabels(u joints.UserSnapshot, speedUnit string, ppi float64) []string {
	lines := []string{fmt.Sprintf("User %d: %s  CoM %.2f m", u.UserID, u.Label, u.CoMDistanceM)}
	if u.State != joints.StateTracking {
		return lines
	}
	for _, js := range u.Tracking.Joints {
		if !js.HasSample {
			continue
		}
		line := fmt.Sprintf("  %s %s %s", js.Joint.Label(), units.FormatSpeed(js.Speed, speedUnit, ppi), js.Class)
		if d, ok := u.TargetDistancesM[js.Joint]; ok {
			line += fmt.Sprintf("  head %.2f m", d)
		}
		lines = append(lines, line)
	}
	return lines
}
