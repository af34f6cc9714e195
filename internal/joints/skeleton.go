package joints

import (
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultConfidenceThreshold is the minimum confidence for a joint sample to
// be stored.
const DefaultConfidenceThreshold = 0.5

// Observation is one joint as reported by the sensor.
type Observation struct {
	World      r3.Vec  `json:"world_mm"`
	Screen     r2.Vec  `json:"screen_px"`
	Confidence float64 `json:"confidence"` // [0, 1]
}

// Confident reports whether the observation clears threshold.
func (o Observation) Confident(threshold float64) bool {
	return o.Confidence >= threshold
}

// Skeleton is the sensor capability a tracker needs: per-joint observations
// for one user and the world-to-screen projection.
type Skeleton interface {
	// Joint returns the latest observation for id, or false when the
	// sensor does not report it.
	Joint(id JointID) (Observation, bool)
	// ProjectToScreen converts a world position (mm) to pixels.
	ProjectToScreen(world r3.Vec) r2.Vec
}
