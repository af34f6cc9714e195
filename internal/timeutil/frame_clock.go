package timeutil

import "time"

// FrameClock converts wall time into millisecond timestamps relative to a
// start epoch. Timestamps never decrease, even if the underlying clock steps
// backwards.
type FrameClock struct {
	clock Clock
	start time.Time
	last  int64
}

// NewFrameClock starts a FrameClock at the clock's current time.
func NewFrameClock(c Clock) *FrameClock {
	if c == nil {
		c = RealClock{}
	}
	return &FrameClock{clock: c, start: c.Now()}
}

// Start returns the epoch.
func (f *FrameClock) Start() time.Time { return f.start }

// NowMs returns milliseconds elapsed since the epoch.
func (f *FrameClock) NowMs() int64 {
	ms := f.clock.Since(f.start).Milliseconds()
	if ms < f.last {
		ms = f.last
	}
	f.last = ms
	return ms
}

// TimeOf converts a frame timestamp back to wall time.
func (f *FrameClock) TimeOf(ms int64) time.Time {
	return f.start.Add(time.Duration(ms) * time.Millisecond)
}
