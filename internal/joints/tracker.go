package joints

import (
	"fmt"

	"github.com/banshee-data/har/internal/config"
	"github.com/banshee-data/har/internal/trajectory"
)

// DefaultWindowMs is the look-back of the windowed snapshot stats.
const DefaultWindowMs = 1000

// TrackerConfig holds the per-user tracking parameters.
type TrackerConfig struct {
	Joints              []JointID // joints that get a History
	TargetJoint         JointID   // reference joint for every History's target
	FallbackTargetJoint JointID   // used when TargetJoint is not reported; may be empty
	HistoryCapacity     int       // samples kept per joint
	ConfidenceThreshold float64   // minimum confidence to store a sample
	Thresholds          trajectory.Thresholds
	TrailLength         int   // screen points copied into each snapshot
	WindowMs            int64 // look-back for the windowed snapshot stats
}

// DefaultTrackerConfig tracks both hands against the head.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		Joints:              []JointID{LeftHand, RightHand},
		TargetJoint:         Head,
		FallbackTargetJoint: Torso,
		HistoryCapacity:     trajectory.DefaultCapacity,
		ConfidenceThreshold: DefaultConfidenceThreshold,
		Thresholds:          trajectory.DefaultThresholds(),
		TrailLength:         trajectory.DefaultCapacity,
		WindowMs:            DefaultWindowMs,
	}
}

// TrackerConfigFromTuning builds a TrackerConfig from a loaded TuningConfig.
func TrackerConfigFromTuning(cfg *config.TuningConfig) (TrackerConfig, error) {
	tracked := cfg.GetTrackedJoints()
	ids := make([]JointID, 0, len(tracked))
	for _, name := range tracked {
		id, err := ParseJoint(name)
		if err != nil {
			return TrackerConfig{}, fmt.Errorf("tracked_joints: %w", err)
		}
		ids = append(ids, id)
	}

	target, err := ParseJoint(cfg.GetTargetJoint())
	if err != nil {
		return TrackerConfig{}, fmt.Errorf("target_joint: %w", err)
	}

	var fallback JointID
	if name := cfg.GetFallbackTargetJoint(); name != "" {
		if fallback, err = ParseJoint(name); err != nil {
			return TrackerConfig{}, fmt.Errorf("fallback_target_joint: %w", err)
		}
	}

	return TrackerConfig{
		Joints:              ids,
		TargetJoint:         target,
		FallbackTargetJoint: fallback,
		HistoryCapacity:     cfg.GetHistoryCapacity(),
		ConfidenceThreshold: cfg.GetConfidenceThreshold(),
		Thresholds: trajectory.Thresholds{
			StationarySpeed:    cfg.GetStationarySpeedPxPerSec(),
			NearTargetDistance: cfg.GetNearTargetMeters(),
		},
		TrailLength: cfg.GetTrailLength(),
		WindowMs:    cfg.GetWindowMs(),
	}, nil
}

func (c TrackerConfig) withDefaults() TrackerConfig {
	if c.TargetJoint == "" {
		c.TargetJoint = Head
	}
	if c.ConfidenceThreshold <= 0 {
		c.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if c.HistoryCapacity < 1 {
		c.HistoryCapacity = trajectory.DefaultCapacity
	}
	if c.TrailLength <= 0 {
		c.TrailLength = c.HistoryCapacity
	}
	if c.WindowMs <= 0 {
		c.WindowMs = DefaultWindowMs
	}
	return c
}

// Tracker owns one History per tracked joint of a single user. It is not
// safe for concurrent use; share Snapshots instead.
type Tracker struct {
	config    TrackerConfig
	histories map[JointID]*trajectory.History
	lastMs    int64
}

// FrameResult describes what a single Update did.
type FrameResult struct {
	Stored        []JointID // joints that received a new sample
	Skipped       []JointID // joints absent or below the confidence threshold
	TargetUpdated bool
	TargetJoint   JointID // joint the target was taken from, if any
}

// NewTracker creates a Tracker with an empty History for every configured
// joint.
func NewTracker(cfg TrackerConfig) *Tracker {
	cfg = cfg.withDefaults()
	t := &Tracker{
		config:    cfg,
		histories: make(map[JointID]*trajectory.History, len(cfg.Joints)),
	}
	for _, id := range cfg.Joints {
		t.histories[id] = trajectory.NewHistoryWithThresholds(cfg.HistoryCapacity, cfg.Thresholds)
	}
	return t
}

// Config returns the tracker configuration.
func (t *Tracker) Config() TrackerConfig {
	return t.config
}

// Joints returns the tracked joints in configuration order.
func (t *Tracker) Joints() []JointID {
	out := make([]JointID, len(t.config.Joints))
	copy(out, t.config.Joints)
	return out
}

// History returns the History for id.
func (t *Tracker) History(id JointID) (*trajectory.History, bool) {
	h, ok := t.histories[id]
	return h, ok
}

// Update processes one frame. The target is refreshed first, on every
// tracked History, whenever the reference joint is reported at all. Each
// tracked joint then stores a sample only if it clears the confidence
// threshold; otherwise its History is left untouched for this frame.
func (t *Tracker) Update(sk Skeleton, nowMs int64) FrameResult {
	var res FrameResult
	t.lastMs = nowMs
	if sk == nil {
		res.Skipped = t.Joints()
		return res
	}

	if id, obs, ok := t.resolveTarget(sk); ok {
		screen := sk.ProjectToScreen(obs.World)
		for _, h := range t.histories {
			h.SetTarget(obs.World, screen)
		}
		res.TargetUpdated = true
		res.TargetJoint = id
	}

	for _, id := range t.config.Joints {
		obs, ok := sk.Joint(id)
		if !ok || !obs.Confident(t.config.ConfidenceThreshold) {
			res.Skipped = append(res.Skipped, id)
			continue
		}
		t.histories[id].Store(obs.World, sk.ProjectToScreen(obs.World), nowMs)
		res.Stored = append(res.Stored, id)
	}
	return res
}

func (t *Tracker) resolveTarget(sk Skeleton) (JointID, Observation, bool) {
	if obs, ok := sk.Joint(t.config.TargetJoint); ok {
		return t.config.TargetJoint, obs, true
	}
	if t.config.FallbackTargetJoint != "" {
		if obs, ok := sk.Joint(t.config.FallbackTargetJoint); ok {
			return t.config.FallbackTargetJoint, obs, true
		}
	}
	return "", Observation{}, false
}

// Reset clears every History.
func (t *Tracker) Reset() {
	for _, h := range t.histories {
		h.Reset()
	}
}
