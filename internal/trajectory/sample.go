package trajectory

import (
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// TimedSample is one joint observation.
type TimedSample struct {
	World  r3.Vec // millimetres, sensor-world coordinates
	Screen r2.Vec // pixels, projected coordinates
	TimeMs int64  // monotonic milliseconds, ordering only
}

// Target is the reference point a joint is evaluated against.
type Target struct {
	World  r3.Vec // millimetres
	Screen r2.Vec // pixels
}

// unit2 normalises v, returning the zero vector instead of NaNs when v has
// no length.
func unit2(v r2.Vec) r2.Vec {
	if v.X == 0 && v.Y == 0 {
		return r2.Vec{}
	}
	return r2.Unit(v)
}
