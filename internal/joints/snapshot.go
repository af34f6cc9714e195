package joints

import (
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/har/internal/trajectory"
)

// JointState is a read-only copy of one joint's History and its derived
// kinematics at the time the snapshot was taken.
type JointState struct {
	Joint         JointID                `json:"joint"`
	Samples       int                    `json:"samples"`
	HasSample     bool                   `json:"has_sample"`
	TimeMs        int64                  `json:"time_ms"`
	World         r3.Vec                 `json:"world_mm"`
	Screen        r2.Vec                 `json:"screen_px"`
	Target        trajectory.Target      `json:"target"`
	Speed         float64                `json:"speed_px_s"`
	Direction     r2.Vec                 `json:"direction"`
	DistanceM     float64                `json:"distance_m"`
	Class         trajectory.MotionClass `json:"class"`
	Trail         []r2.Vec               `json:"trail,omitempty"` // newest first
	ApproachCurve [4]r2.Vec              `json:"approach_curve"`

	// WindowSamples and WindowPathPx cover the samples captured within
	// the tracker's look-back window before the snapshot time.
	WindowSamples int     `json:"window_samples"`
	WindowPathPx  float64 `json:"window_path_px"`
}

// Snapshot is an immutable view of a Tracker. Sinks running on other
// goroutines read Snapshots, never Histories.
type Snapshot struct {
	TimeMs int64        `json:"time_ms"`
	Joints []JointState `json:"joints"`
}

// Joint returns the state for id.
func (s Snapshot) Joint(id JointID) (JointState, bool) {
	for _, js := range s.Joints {
		if js.Joint == id {
			return js, true
		}
	}
	return JointState{}, false
}

// Snapshot copies the current state of every tracked joint.
func (t *Tracker) Snapshot() Snapshot {
	snap := Snapshot{
		TimeMs: t.lastMs,
		Joints: make([]JointState, 0, len(t.config.Joints)),
	}
	for _, id := range t.config.Joints {
		js := stateOf(id, t.histories[id], t.config.TrailLength)
		js.WindowSamples, js.WindowPathPx = windowStats(t.histories[id], t.lastMs-t.config.WindowMs)
		snap.Joints = append(snap.Joints, js)
	}
	return snap
}

func stateOf(id JointID, h *trajectory.History, trailLen int) JointState {
	js := JointState{
		Joint:         id,
		Samples:       h.Size(),
		Target:        h.Target(),
		Speed:         h.Speed(),
		Direction:     h.DirectionScreen(),
		DistanceM:     h.DistanceToTarget(),
		Class:         h.Classify(),
		ApproachCurve: h.ApproachCurve(),
	}
	if cur, ok := h.Current(); ok {
		js.HasSample = true
		js.TimeMs = cur.TimeMs
		js.World = cur.World
		js.Screen = cur.Screen
	}

	n := h.Size()
	if trailLen > 0 && n > trailLen {
		n = trailLen
	}
	if n > 0 {
		js.Trail = make([]r2.Vec, 0, n)
		for i := 0; i < n; i++ {
			p, _ := h.ValueScreen(i)
			js.Trail = append(js.Trail, p)
		}
	}
	return js
}

// windowStats counts the samples at or after sinceMs and the screen path
// length they trace.
func windowStats(h *trajectory.History, sinceMs int64) (int, float64) {
	recent := h.SamplesSince(sinceMs)
	var path float64
	for i := 1; i < len(recent); i++ {
		path += r2.Norm(r2.Sub(recent[i-1].Screen, recent[i].Screen))
	}
	return len(recent), path
}
