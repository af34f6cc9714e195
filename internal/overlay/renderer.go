package overlay

import (
	"image"
	"image/color"
	"sync/atomic"

	"gocv.io/x/gocv"

	"github.com/banshee-data/har/internal/joints"
)

var (
	shadowColor = color.RGBA{0, 0, 0, 255}
	statusColor = color.RGBA{255, 255, 0, 255}
)

// Renderer paints the most recently published snapshot onto camera frames.
// Publish runs on the frame loop; Render runs on the camera loop.
type Renderer struct {
	cfg    LayoutConfig
	latest atomic.Pointer[joints.RegistrySnapshot]
	status atomic.Pointer[string]
}

// NewRenderer creates a Renderer.
func NewRenderer(cfg LayoutConfig) *Renderer {
	return &Renderer{cfg: cfg}
}

// Publish stores snap for the next Render.
func (r *Renderer) Publish(snap joints.RegistrySnapshot) {
	r.latest.Store(&snap)
}

// SetStatus sets the line drawn along the bottom of each frame, such as
// the recording indicator.
func (r *Renderer) SetStatus(s string) {
	r.status.Store(&s)
}

// Scene lays out the latest snapshot for a frame of the given size.
func (r *Renderer) Scene(frame image.Point) (Scene, bool) {
	snap := r.latest.Load()
	if snap == nil {
		return Scene{}, false
	}
	return Layout(*snap, frame, r.cfg), true
}

// Render draws the latest snapshot on img in place.
func (r *Renderer) Render(img *gocv.Mat) {
	if img.Empty() {
		return
	}
	size := image.Point{X: img.Cols(), Y: img.Rows()}
	if s, ok := r.Scene(size); ok {
		Paint(img, s)
	} else {
		putText(img, "Waiting for skeleton data...", image.Point{X: labelMargin, Y: labelMargin + lineHeight}, textColor, 0.5)
	}
	if st := r.status.Load(); st != nil && *st != "" {
		putText(img, *st, image.Point{X: labelMargin, Y: size.Y - labelMargin}, statusColor, 0.5)
	}
}

// Paint draws s on img: lines first, then circles, then text.
func Paint(img *gocv.Mat, s Scene) {
	for _, l := range s.Lines {
		gocv.Line(img, l.From, l.To, l.Color, l.Thickness)
	}
	for _, c := range s.Circles {
		gocv.Circle(img, c.Center, c.Radius, c.Color, c.Thickness)
	}
	for _, t := range s.Texts {
		putText(img, t.Text, t.At, t.Color, t.Scale)
	}
}

// putText draws a label with a one pixel shadow so it stays readable on
// bright backgrounds.
func putText(img *gocv.Mat, text string, at image.Point, c color.RGBA, scale float64) {
	gocv.PutText(img, text, at.Add(image.Point{X: 1, Y: 1}), gocv.FontHersheySimplex, scale, shadowColor, 2)
	gocv.PutText(img, text, at, gocv.FontHersheySimplex, scale, c, 1)
}
