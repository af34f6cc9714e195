package sensor

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// Depth camera field of view, in radians, as configured on the device.
const (
	DefaultHorizontalFOV = 1.0225999419141749
	DefaultVerticalFOV   = 0.79661567681716894
	DefaultImageWidth    = 640
	DefaultImageHeight   = 480
)

// Projector maps camera-frame world positions (mm) to image pixels with a
// pinhole model.
type Projector struct {
	Width, Height int
	xzFactor      float64
	yzFactor      float64
}

// NewProjector builds a Projector for the given image size and field of
// view. Non-positive arguments take the defaults.
func NewProjector(width, height int, hfov, vfov float64) Projector {
	if width <= 0 {
		width = DefaultImageWidth
	}
	if height <= 0 {
		height = DefaultImageHeight
	}
	if hfov <= 0 {
		hfov = DefaultHorizontalFOV
	}
	if vfov <= 0 {
		vfov = DefaultVerticalFOV
	}
	return Projector{
		Width:    width,
		Height:   height,
		xzFactor: 2 * math.Tan(hfov/2),
		yzFactor: 2 * math.Tan(vfov/2),
	}
}

// DefaultProjector matches the camera's default 640x480 depth stream.
func DefaultProjector() Projector {
	return NewProjector(0, 0, 0, 0)
}

// Center is the principal point.
func (p Projector) Center() r2.Vec {
	return r2.Vec{X: float64(p.Width) / 2, Y: float64(p.Height) / 2}
}

// ToScreen projects a world position. Points at or behind the camera plane
// land on the principal point.
func (p Projector) ToScreen(w r3.Vec) r2.Vec {
	c := p.Center()
	if w.Z <= 0 {
		return c
	}
	return r2.Vec{
		X: c.X + w.X*float64(p.Width)/(p.xzFactor*w.Z),
		Y: c.Y - w.Y*float64(p.Height)/(p.yzFactor*w.Z),
	}
}

// ToWorld inverts ToScreen for a known depth.
func (p Projector) ToWorld(s r2.Vec, depth float64) r3.Vec {
	c := p.Center()
	return r3.Vec{
		X: (s.X - c.X) * p.xzFactor * depth / float64(p.Width),
		Y: (c.Y - s.Y) * p.yzFactor * depth / float64(p.Height),
		Z: depth,
	}
}
