// Package trajectory owns the per-joint motion history used by the hand
// tracker.
//
// Responsibilities: a fixed-capacity ring of time-stamped samples addressed
// newest-first, a reference target, and the kinematics derived from them
// (screen-space speed and direction, world-space distance to target) plus a
// three-way motion classification.
// Key types: TimedSample, Target, History, MotionClass.
//
// A History has a single owner. It performs no locking and no I/O; consumers
// running on other goroutines must work from copies.
package trajectory
