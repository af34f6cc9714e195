// Package plot renders per-joint trajectory, speed and distance charts to
// PNG once a capture session ends.
package plot

import (
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/plot/tools/bezier"
	"gonum.org/v1/plot/vg"
)

// BezierPoints samples the cubic Bezier defined by ctrl at n evenly spaced
// parameter values, including both end points. n below 2 is treated as 2.
func BezierPoints(ctrl [4]r2.Vec, n int) []r2.Vec {
	if n < 2 {
		n = 2
	}
	var cp [4]vg.Point
	for i, c := range ctrl {
		cp[i] = vg.Point{X: vg.Length(c.X), Y: vg.Length(c.Y)}
	}
	// A Curve keeps scratch state, so each call gets its own.
	pts := bezier.New(cp[:]...).Curve(make([]vg.Point, n))
	out := make([]r2.Vec, n)
	for i, p := range pts {
		out[i] = r2.Vec{X: float64(p.X), Y: float64(p.Y)}
	}
	return out
}
