package trajectory

import "image/color"

// MotionClass is the qualitative state of a tracked joint.
type MotionClass string

const (
	// ClassNearTarget means the joint is within reach of its target.
	ClassNearTarget MotionClass = "near_target"
	// ClassStationary means the joint is not moving.
	ClassStationary MotionClass = "stationary"
	// ClassMoving is everything else.
	ClassMoving MotionClass = "moving"
)

// Classification thresholds.
const (
	// StationarySpeedThreshold is the speed (px/s) below which a joint is
	// stationary.
	StationarySpeedThreshold = 150.0
	// NearTargetThreshold is the distance (m) below which a joint is near
	// its target.
	NearTargetThreshold = 0.3
)

// Thresholds holds the tunable classification limits.
type Thresholds struct {
	StationarySpeed    float64 // px/s, strict upper bound
	NearTargetDistance float64 // metres, strict upper bound
}

// DefaultThresholds returns the production classification limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		StationarySpeed:    StationarySpeedThreshold,
		NearTargetDistance: NearTargetThreshold,
	}
}

func (t Thresholds) normalize() Thresholds {
	if t.StationarySpeed <= 0 {
		t.StationarySpeed = StationarySpeedThreshold
	}
	if t.NearTargetDistance <= 0 {
		t.NearTargetDistance = NearTargetThreshold
	}
	return t
}

var classColors = map[MotionClass]color.RGBA{
	ClassNearTarget: {R: 255, A: 255},
	ClassStationary: {R: 255, G: 255, A: 255},
	ClassMoving:     {B: 255, A: 255},
}

// Color returns the overlay colour for the class: red, yellow or blue.
// Unknown classes are white.
func (c MotionClass) Color() color.RGBA {
	if rgba, ok := classColors[c]; ok {
		return rgba
	}
	return color.RGBA{R: 255, G: 255, B: 255, A: 255}
}

// String implements fmt.Stringer.
func (c MotionClass) String() string {
	return string(c)
}

// ParseMotionClass maps a stored class name back to its MotionClass.
func ParseMotionClass(s string) (MotionClass, bool) {
	c := MotionClass(s)
	_, ok := classColors[c]
	return c, ok
}

// Classify evaluates the joint's state. Rules are checked in priority order
// and recomputed on every call:
//  1. near target
//  2. stationary
//  3. moving
func (h *History) Classify() MotionClass {
	if h.IsNearTarget() {
		return ClassNearTarget
	}
	if h.IsStationary() {
		return ClassStationary
	}
	return ClassMoving
}
