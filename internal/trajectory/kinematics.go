package trajectory

import (
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// Unit conversion factors used by the kinematics.
const (
	msToSeconds = 0.001
	mmToMeters  = 0.001

	// approachControlOffset is how far (pixels) the third approach-curve
	// control point sits back from the target along the approach vector.
	approachControlOffset = 10.0
	// directionControlGain scales the second control point's offset
	// (direction * speed).
	directionControlGain = 1.0
)

// DirectionScreen returns the unit vector from the previous sample towards
// the newest one in screen space. It is the zero vector with fewer than two
// samples or when the hand did not move.
func (h *History) DirectionScreen() r2.Vec {
	if h.count < 2 {
		return r2.Vec{}
	}
	last := h.samples[h.slot(0)].Screen
	prev := h.samples[h.slot(1)].Screen
	return unit2(r2.Sub(last, prev))
}

// Speed returns the screen-space speed between the two newest samples in
// pixels per second. It is 0 with fewer than two samples or when the two
// samples do not have increasing timestamps.
func (h *History) Speed() float64 {
	if h.count < 2 {
		return 0
	}
	last := h.samples[h.slot(0)]
	prev := h.samples[h.slot(1)]

	dtMs := last.TimeMs - prev.TimeMs
	if dtMs <= 0 {
		return 0
	}
	return r2.Norm(r2.Sub(last.Screen, prev.Screen)) / (float64(dtMs) * msToSeconds)
}

// IsStationary reports whether Speed is below the stationary threshold.
func (h *History) IsStationary() bool {
	return h.Speed() < h.thresholds.StationarySpeed
}

// DistanceToTarget returns the world-space distance between the newest
// sample and the target in metres, or 0 for an empty history.
func (h *History) DistanceToTarget() float64 {
	if h.count == 0 {
		return 0
	}
	return r3.Norm(r3.Sub(h.target.World, h.CurrentWorld())) * mmToMeters
}

// IsNearTarget reports whether the newest sample lies within the near-target
// radius. An empty history is never near its target.
func (h *History) IsNearTarget() bool {
	return h.count > 0 && h.DistanceToTarget() < h.thresholds.NearTargetDistance
}

// TargetApproachScreen returns the unit vector from the newest sample
// towards the target in screen space, or the zero vector when they coincide.
func (h *History) TargetApproachScreen() r2.Vec {
	return unit2(r2.Sub(h.target.Screen, h.CurrentScreen()))
}

// ApproachCurve returns the four control points of a cubic Bezier running
// from the current screen position to the target: the current position, a
// point projected along the current direction by the current speed, a point
// backed off from the target along the approach vector, and the target.
func (h *History) ApproachCurve() [4]r2.Vec {
	current := h.CurrentScreen()
	lead := r2.Scale(h.Speed()*directionControlGain, h.DirectionScreen())
	back := r2.Scale(approachControlOffset, h.TargetApproachScreen())
	return [4]r2.Vec{
		current,
		r2.Add(current, lead),
		r2.Sub(h.target.Screen, back),
		h.target.Screen,
	}
}
