package trajectory

import (
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultCapacity is the number of samples kept per joint when no capacity
// is configured.
const DefaultCapacity = 100

// History keeps the most recent samples of a single joint in a fixed-size
// ring. Logical index 0 is always the newest sample.
//
// The write cursor moves backwards through the arena, so the newest sample
// sits at head and older samples follow it at increasing (wrapped) offsets.
type History struct {
	samples    []TimedSample
	capacity   int
	head       int // arena index of logical index 0
	count      int // valid samples, saturates at capacity
	target     Target
	thresholds Thresholds
}

// NewHistory creates a History with the given capacity and the default
// classification thresholds. A capacity below 1 falls back to
// DefaultCapacity.
func NewHistory(capacity int) *History {
	return NewHistoryWithThresholds(capacity, DefaultThresholds())
}

// NewHistoryWithThresholds creates a History that classifies with th.
// Non-positive threshold fields fall back to their defaults.
func NewHistoryWithThresholds(capacity int, th Thresholds) *History {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &History{
		samples:    make([]TimedSample, capacity),
		capacity:   capacity,
		thresholds: th.normalize(),
	}
}

// Store records a new observation as the most recent sample, evicting the
// oldest one once the ring is full. Callers are expected to have applied
// their own confidence gate before storing.
func (h *History) Store(world r3.Vec, screen r2.Vec, timeMs int64) {
	h.head--
	if h.head < 0 {
		h.head = h.capacity - 1
	}
	h.samples[h.head] = TimedSample{World: world, Screen: screen, TimeMs: timeMs}
	if h.count < h.capacity {
		h.count++
	}
}

// SetTarget replaces the reference point. It never touches the ring.
func (h *History) SetTarget(world r3.Vec, screen r2.Vec) {
	h.target = Target{World: world, Screen: screen}
}

// Target returns the current reference point.
func (h *History) Target() Target {
	return h.target
}

// Size returns the number of valid samples.
func (h *History) Size() int {
	return h.count
}

// Capacity returns the maximum number of samples retained.
func (h *History) Capacity() int {
	return h.capacity
}

// Thresholds returns the classification thresholds in use.
func (h *History) Thresholds() Thresholds {
	return h.thresholds
}

// Reset discards all samples. The target is kept.
func (h *History) Reset() {
	for i := range h.samples {
		h.samples[i] = TimedSample{}
	}
	h.head = 0
	h.count = 0
}

// slot maps a logical index (0 = newest) to its arena position.
func (h *History) slot(index int) int {
	return (h.head + index) % h.capacity
}

// At returns the sample at the logical index. The boolean is false when
// index is outside [0, Size()).
func (h *History) At(index int) (TimedSample, bool) {
	if index < 0 || index >= h.count {
		return TimedSample{}, false
	}
	return h.samples[h.slot(index)], true
}

// ValueScreen returns the screen position at the logical index.
func (h *History) ValueScreen(index int) (r2.Vec, bool) {
	s, ok := h.At(index)
	return s.Screen, ok
}

// ValueWorld returns the world position at the logical index.
func (h *History) ValueWorld(index int) (r3.Vec, bool) {
	s, ok := h.At(index)
	return s.World, ok
}

// Current returns the newest sample, or false when nothing was stored.
func (h *History) Current() (TimedSample, bool) {
	return h.At(0)
}

// CurrentWorld returns the newest world position in millimetres, or the
// zero vector for an empty history.
func (h *History) CurrentWorld() r3.Vec {
	s, _ := h.At(0)
	return s.World
}

// CurrentScreen returns the newest screen position in pixels, or the zero
// vector for an empty history.
func (h *History) CurrentScreen() r2.Vec {
	s, _ := h.At(0)
	return s.Screen
}

// Samples returns a copy of all valid samples, newest first.
func (h *History) Samples() []TimedSample {
	if h.count == 0 {
		return nil
	}
	out := make([]TimedSample, h.count)
	for i := 0; i < h.count; i++ {
		out[i] = h.samples[h.slot(i)]
	}
	return out
}

// SamplesSince returns every valid sample captured at or after thresholdMs,
// newest first. Each call builds a fresh slice.
func (h *History) SamplesSince(thresholdMs int64) []TimedSample {
	var out []TimedSample
	for i := 0; i < h.count; i++ {
		s := h.samples[h.slot(i)]
		if s.TimeMs >= thresholdMs {
			out = append(out, s)
		}
	}
	return out
}
