package timeutil

import (
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	after := time.Now()

	if now.Before(before) || now.After(after) {
		t.Errorf("Now() = %v, expected between %v and %v", now, before, after)
	}
}

func TestRealClock_NewTicker(t *testing.T) {
	clock := RealClock{}
	ticker := clock.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	select {
	case <-ticker.C():
	case <-time.After(200 * time.Millisecond):
		t.Error("ticker did not fire")
	}
}

func TestMockClock_SleepAdvances(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)

	clock.Sleep(33 * time.Millisecond)
	clock.Sleep(34 * time.Millisecond)

	if got := clock.Since(start); got != 67*time.Millisecond {
		t.Errorf("Since() = %v, want 67ms", got)
	}
	sleeps := clock.Sleeps()
	if len(sleeps) != 2 || sleeps[0] != 33*time.Millisecond {
		t.Errorf("Sleeps() = %v", sleeps)
	}
}

func TestMockClock_AfterFiresImmediately(t *testing.T) {
	start := time.Unix(0, 0)
	clock := NewMockClock(start)

	select {
	case got := <-clock.After(time.Second):
		if want := start.Add(time.Second); !got.Equal(want) {
			t.Errorf("After() sent %v, want %v", got, want)
		}
	default:
		t.Fatal("After() channel not ready")
	}
	if sleeps := clock.Sleeps(); len(sleeps) != 1 || sleeps[0] != time.Second {
		t.Errorf("Sleeps() = %v", sleeps)
	}
}

func TestMockTicker_FiresOnAdvance(t *testing.T) {
	clock := NewMockClock(time.Unix(0, 0))
	ticker := clock.NewTicker(time.Second)

	clock.Advance(500 * time.Millisecond)
	select {
	case <-ticker.C():
		t.Fatal("ticker fired early")
	default:
	}

	clock.Advance(500 * time.Millisecond)
	select {
	case <-ticker.C():
	default:
		t.Fatal("ticker did not fire after interval")
	}

	ticker.Stop()
	clock.Advance(5 * time.Second)
	select {
	case <-ticker.C():
		t.Fatal("stopped ticker fired")
	default:
	}
}

// steppingClock returns a scripted sequence of Since values.
type steppingClock struct {
	RealClock
	steps []time.Duration
}

func (s *steppingClock) Since(time.Time) time.Duration {
	d := s.steps[0]
	s.steps = s.steps[1:]
	return d
}

func TestFrameClock_Monotonic(t *testing.T) {
	sc := &steppingClock{steps: []time.Duration{
		10 * time.Millisecond,
		50 * time.Millisecond,
		40 * time.Millisecond,
		90 * time.Millisecond,
	}}
	fc := NewFrameClock(sc)

	want := []int64{10, 50, 50, 90}
	for i, w := range want {
		if got := fc.NowMs(); got != w {
			t.Errorf("NowMs() #%d = %d, want %d", i, got, w)
		}
	}
}

func TestFrameClock_TimeOf(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)
	fc := NewFrameClock(clock)

	clock.Advance(1500 * time.Millisecond)
	ms := fc.NowMs()
	if ms != 1500 {
		t.Fatalf("NowMs() = %d, want 1500", ms)
	}
	if got := fc.TimeOf(ms); !got.Equal(start.Add(1500 * time.Millisecond)) {
		t.Errorf("TimeOf(%d) = %v", ms, got)
	}
}
