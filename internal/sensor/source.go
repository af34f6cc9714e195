package sensor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/banshee-data/har/internal/fsutil"
	"github.com/banshee-data/har/internal/monitoring"
	"github.com/banshee-data/har/internal/serialmux"
	"github.com/banshee-data/har/internal/timeutil"
)

// ErrSourceClosed is reported when a live source's upstream goes away.
var ErrSourceClosed = errors.New("sensor source closed")

const maxLineBytes = 256 * 1024

// Source produces decoded frames. The frame channel is closed when the
// source is exhausted or ctx is cancelled; at most one terminal error is
// delivered on the error channel, which is then closed.
type Source interface {
	Frames(ctx context.Context) (<-chan Frame, <-chan error)
}

// ReplaySource reads frames from a JSONL recording.
type ReplaySource struct {
	r         io.Reader
	proj      Projector
	clock     timeutil.Clock
	realtime  bool
	skipped   int
	maxSkips  int
	closeFunc func() error
}

// ReplayOption configures a ReplaySource.
type ReplayOption func(*ReplaySource)

// WithRealtime paces frames by their timestamps using clock.
func WithRealtime(clock timeutil.Clock) ReplayOption {
	return func(s *ReplaySource) {
		s.realtime = true
		s.clock = clock
	}
}

// WithProjector overrides the default projector.
func WithProjector(p Projector) ReplayOption {
	return func(s *ReplaySource) { s.proj = p }
}

// WithMaxSkips fails the replay after n malformed lines. Zero skips forever.
func WithMaxSkips(n int) ReplayOption {
	return func(s *ReplaySource) { s.maxSkips = n }
}

// NewReplaySource reads frames from r.
func NewReplaySource(r io.Reader, opts ...ReplayOption) *ReplaySource {
	s := &ReplaySource{r: r, proj: DefaultProjector(), clock: timeutil.RealClock{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenReplay opens a recording through fs.
func OpenReplay(fs fsutil.FileSystem, path string, opts ...ReplayOption) (*ReplaySource, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay %s: %w", path, err)
	}
	s := NewReplaySource(f, opts...)
	s.closeFunc = f.Close
	return s, nil
}

// Skipped returns the number of malformed lines ignored so far. Only valid
// after the frame channel is closed.
func (s *ReplaySource) Skipped() int { return s.skipped }

// Frames streams the recording.
func (s *ReplaySource) Frames(ctx context.Context) (<-chan Frame, <-chan error) {
	frames := make(chan Frame)
	errc := make(chan error, 1)

	go func() {
		defer close(errc)
		defer close(frames)
		if s.closeFunc != nil {
			defer s.closeFunc()
		}

		scan := bufio.NewScanner(s.r)
		scan.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

		var prevMs int64
		first := true
		lineNo := 0
		for scan.Scan() {
			lineNo++
			line := scan.Bytes()
			if len(line) == 0 {
				continue
			}
			f, err := ParseFrame(line, s.proj)
			if err != nil {
				s.skipped++
				monitoring.Logf("[sensor] replay line %d skipped: %v", lineNo, err)
				if s.maxSkips > 0 && s.skipped >= s.maxSkips {
					errc <- fmt.Errorf("replay: too many malformed lines (last at %d): %w", lineNo, err)
					return
				}
				continue
			}

			if s.realtime && !first && f.TimeMs > prevMs {
				select {
				case <-s.clock.After(time.Duration(f.TimeMs-prevMs) * time.Millisecond):
				case <-ctx.Done():
					return
				}
			}
			first = false
			prevMs = f.TimeMs

			select {
			case frames <- f:
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			errc <- fmt.Errorf("replay read: %w", err)
		}
	}()

	return frames, errc
}

// SerialSource decodes frames from a serial mux subscription.
type SerialSource struct {
	mux   serialmux.SerialMuxInterface
	state *serialmux.DeviceState
	proj  Projector
}

// NewSerialSource subscribes to mux when Frames is called.
func NewSerialSource(mux serialmux.SerialMuxInterface, proj Projector) *SerialSource {
	return &SerialSource{mux: mux, state: serialmux.NewDeviceState(), proj: proj}
}

// DeviceState exposes status values reported by the bridge.
func (s *SerialSource) DeviceState() *serialmux.DeviceState { return s.state }

// Frames streams frames until ctx is cancelled or the mux closes the
// subscription, in which case ErrSourceClosed is reported.
func (s *SerialSource) Frames(ctx context.Context) (<-chan Frame, <-chan error) {
	frames := make(chan Frame)
	errc := make(chan error, 1)
	id, lines := s.mux.Subscribe()

	go func() {
		defer close(errc)
		defer close(frames)
		defer s.mux.Unsubscribe(id)

		for {
			select {
			case <-ctx.Done():
				return
			case line, ok := <-lines:
				if !ok {
					errc <- ErrSourceClosed
					return
				}
				var parsed *Frame
				err := s.state.HandleLine(line, func(l string) error {
					f, err := ParseFrame([]byte(l), s.proj)
					if err != nil {
						return err
					}
					parsed = &f
					return nil
				})
				if err != nil {
					monitoring.Logf("[sensor] serial line dropped: %v", err)
					continue
				}
				if parsed == nil {
					continue
				}
				select {
				case frames <- *parsed:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return frames, errc
}
