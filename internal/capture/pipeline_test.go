package capture

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/har/internal/joints"
	"github.com/banshee-data/har/internal/sensor"
	"github.com/banshee-data/har/internal/sink"
	"github.com/banshee-data/har/internal/testutil"
	"github.com/banshee-data/har/internal/timeutil"
	"github.com/banshee-data/har/internal/trajectory"
)

type recordingPublisher struct {
	snaps []joints.RegistrySnapshot
}

func (r *recordingPublisher) Publish(snap joints.RegistrySnapshot) {
	r.snaps = append(r.snaps, snap)
}

type memWriter struct {
	mu     sync.Mutex
	snaps  []joints.RegistrySnapshot
	closed bool
}

func (m *memWriter) Write(snap joints.RegistrySnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps = append(m.snaps, snap)
	return nil
}

func (m *memWriter) Flush() error { return nil }

func (m *memWriter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func TestPipeline_Run(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{}
	mw := &memWriter{}
	aw := sink.NewAsyncWriter(sink.AsyncWriterConfig{Name: "mem", Writer: mw, Buffer: 64})

	p := New(Config{
		Clock:      timeutil.NewMockClock(time.Unix(0, 0)),
		Publishers: []Publisher{pub},
		Sinks:      []*sink.AsyncWriter{aw},
	})

	src := sensor.NewReplaySource(strings.NewReader(testutil.JoinLines(testutil.HandSweep(10, 100, 100, 2000))))
	require.NoError(t, p.Run(context.Background(), src))
	assert.Equal(t, uint64(10), p.Frames())

	require.Len(t, pub.snaps, 10)
	first := pub.snaps[0]
	assert.Equal(t, []joints.UserEvent{{UserID: 1, Kind: joints.UserNew}}, first.Events)

	last := pub.snaps[9]
	assert.Equal(t, int64(900), last.TimeMs)
	u, ok := last.User(1)
	require.True(t, ok)
	left, ok := u.Tracking.Joint(joints.LeftHand)
	require.True(t, ok)
	assert.Equal(t, 10, left.Samples)
	assert.Equal(t, trajectory.ClassMoving, left.Class)
	right, _ := u.Tracking.Joint(joints.RightHand)
	assert.Equal(t, trajectory.ClassStationary, right.Class)

	// Drain the sink: a cancelled context still flushes the queue.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, aw.Run(ctx))
	assert.Len(t, mw.snaps, 10)
	assert.True(t, mw.closed)
	assert.Equal(t, uint64(0), aw.Dropped())
}

func TestPipeline_TimestampsNeverGoBack(t *testing.T) {
	t.Parallel()

	clock := timeutil.NewMockClock(time.Unix(100, 0))
	p := New(Config{Clock: clock})

	assert.Equal(t, int64(500), p.Step(sensor.Frame{TimeMs: 500}).TimeMs)
	assert.Equal(t, int64(500), p.Step(sensor.Frame{TimeMs: 300}).TimeMs)
	assert.Equal(t, int64(800), p.Step(sensor.Frame{TimeMs: 800}).TimeMs)

	// Frames without a timestamp use the frame clock, clamped as well.
	clock.Advance(2 * time.Second)
	assert.Equal(t, int64(2000), p.Step(sensor.Frame{}).TimeMs)
}

type failingSource struct{ err error }

func (f failingSource) Frames(ctx context.Context) (<-chan sensor.Frame, <-chan error) {
	frames := make(chan sensor.Frame)
	errc := make(chan error, 1)
	close(frames)
	errc <- f.err
	close(errc)
	return frames, errc
}

func TestPipeline_RunErrors(t *testing.T) {
	t.Parallel()

	p := New(Config{})
	boom := errors.New("boom")
	assert.ErrorIs(t, p.Run(context.Background(), failingSource{err: boom}), boom)
	assert.NoError(t, p.Run(context.Background(), failingSource{err: context.Canceled}))
}
