package sensor

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/har/internal/fsutil"
	"github.com/banshee-data/har/internal/joints"
	"github.com/banshee-data/har/internal/serialmux"
	"github.com/banshee-data/har/internal/testutil"
	"github.com/banshee-data/har/internal/timeutil"
)

func collect(t *testing.T, frames <-chan Frame, errc <-chan error) ([]Frame, error) {
	t.Helper()
	var out []Frame
	timeout := time.After(5 * time.Second)
	for {
		select {
		case f, ok := <-frames:
			if !ok {
				return out, <-errc
			}
			out = append(out, f)
		case <-timeout:
			t.Fatal("timeout collecting frames")
			return nil, nil
		}
	}
}

func TestProjector(t *testing.T) {
	t.Parallel()

	p := DefaultProjector()
	assert.Equal(t, r2.Vec{X: 320, Y: 240}, p.ToScreen(r3.Vec{Z: 2000}))
	assert.Equal(t, r2.Vec{X: 320, Y: 240}, p.ToScreen(r3.Vec{X: 100, Z: 0}))

	right := p.ToScreen(r3.Vec{X: 500, Y: 500, Z: 2000})
	assert.Greater(t, right.X, 320.0)
	assert.Less(t, right.Y, 240.0, "world up is screen up")

	// A point at the horizontal FOV edge lands on the image border.
	edge := 2000 * math.Tan(DefaultHorizontalFOV/2)
	assert.InDelta(t, 640.0, p.ToScreen(r3.Vec{X: edge, Z: 2000}).X, 1e-9)

	w := r3.Vec{X: -123, Y: 456, Z: 1750}
	back := p.ToWorld(p.ToScreen(w), w.Z)
	assert.InDelta(t, w.X, back.X, 1e-9)
	assert.InDelta(t, w.Y, back.Y, 1e-9)
}

func TestParseFrame(t *testing.T) {
	t.Parallel()

	line := `{"ts_ms":1234,"users":[{"id":1,"state":"tracking","com":[10,20,2500],
		"joints":{"head":{"p":[0,0,2000],"c":0.9},"left_hand":{"c":0.3},"right_hand":{"p":[100,0,2000],"c":0.4}}},
		{"id":2,"state":"calibrating","com":[0,0,3000]}]}`
	f, err := ParseFrame([]byte(line), DefaultProjector())
	require.NoError(t, err)

	assert.Equal(t, int64(1234), f.TimeMs)
	require.Len(t, f.Users, 2)

	u := f.Users[0]
	assert.Equal(t, joints.StateTracking, u.State)
	assert.Equal(t, r3.Vec{X: 10, Y: 20, Z: 2500}, u.CenterOfMass)
	require.Contains(t, u.Joints, joints.Head)
	assert.Equal(t, r2.Vec{X: 320, Y: 240}, u.Joints[joints.Head].Screen)
	assert.NotContains(t, u.Joints, joints.LeftHand, "joint without position is absent")
	assert.Equal(t, 0.4, u.Joints[joints.RightHand].Confidence)

	assert.Equal(t, joints.StateCalibrating, f.Users[1].State)
}

func TestParseFrame_Errors(t *testing.T) {
	t.Parallel()

	proj := DefaultProjector()

	_, err := ParseFrame([]byte(`not json`), proj)
	assert.ErrorIs(t, err, ErrMalformedFrame)

	_, err = ParseFrame([]byte(`{"users":[]}`), proj)
	assert.ErrorIs(t, err, ErrMalformedFrame)

	_, err = ParseFrame([]byte(`{"ts_ms":1,"users":[{"id":1,"joints":{"tail":{"p":[0,0,0],"c":1}}}]}`), proj)
	assert.ErrorIs(t, err, joints.ErrUnknownJoint)

	_, err = ParseFrame([]byte(`{"ts_ms":1,"users":[{"id":1,"joints":{"head":{"p":[0,0,0],"c":1.5}}}]}`), proj)
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestFrame_UserFrames(t *testing.T) {
	t.Parallel()

	line := testutil.FrameLine(0,
		testutil.UserLine{ID: 1, State: "tracking", Joints: []testutil.JointLine{{Name: "head", Z: 2000, Confidence: 1}}},
		testutil.UserLine{ID: 2, State: "looking_for_pose"},
	)
	f, err := ParseFrame([]byte(line), DefaultProjector())
	require.NoError(t, err)

	ufs := f.UserFrames(DefaultProjector())
	require.Len(t, ufs, 2)
	require.NotNil(t, ufs[0].Skeleton)
	assert.Nil(t, ufs[1].Skeleton)

	obs, ok := ufs[0].Skeleton.Joint(joints.Head)
	require.True(t, ok)
	assert.Equal(t, 1.0, obs.Confidence)
	assert.Equal(t, r2.Vec{X: 320, Y: 240}, ufs[0].Skeleton.ProjectToScreen(r3.Vec{Z: 10}))
}

func TestReplaySource(t *testing.T) {
	t.Parallel()

	lines := testutil.HandSweep(4, 100, 10, 2000)
	input := lines[0] + "\n\ngarbage\n" + testutil.JoinLines(lines[1:])

	src := NewReplaySource(strings.NewReader(input))
	ch, errc := src.Frames(context.Background())
	frames, err := collect(t, ch, errc)
	require.NoError(t, err)
	require.Len(t, frames, 4)
	assert.Equal(t, int64(300), frames[3].TimeMs)
	assert.Equal(t, 1, src.Skipped())
}

func TestReplaySource_MaxSkips(t *testing.T) {
	t.Parallel()

	src := NewReplaySource(strings.NewReader("x\ny\nz\n"), WithMaxSkips(2))
	ch, errc := src.Frames(context.Background())
	frames, err := collect(t, ch, errc)
	assert.Empty(t, frames)
	assert.ErrorContains(t, err, "too many malformed lines")
}

func TestReplaySource_Realtime(t *testing.T) {
	t.Parallel()

	clock := timeutil.NewMockClock(time.Unix(0, 0))
	lines := testutil.HandSweep(3, 33, 5, 2000)
	src := NewReplaySource(strings.NewReader(testutil.JoinLines(lines)), WithRealtime(clock))

	ch, errc := src.Frames(context.Background())
	frames, err := collect(t, ch, errc)
	require.NoError(t, err)
	require.Len(t, frames, 3)
	assert.Equal(t, []time.Duration{33 * time.Millisecond, 33 * time.Millisecond}, clock.Sleeps())
}

// stalledClock never lets a paced wait finish.
type stalledClock struct {
	*timeutil.MockClock
}

func (stalledClock) After(time.Duration) <-chan time.Time { return make(chan time.Time) }

func TestReplaySource_RealtimeCancelDuringWait(t *testing.T) {
	t.Parallel()

	lines := testutil.HandSweep(3, 60_000, 5, 2000)
	clock := stalledClock{timeutil.NewMockClock(time.Unix(0, 0))}
	src := NewReplaySource(strings.NewReader(testutil.JoinLines(lines)), WithRealtime(clock))

	ctx, cancel := context.WithCancel(context.Background())
	frames, errc := src.Frames(ctx)
	<-frames
	cancel()

	rest, err := collect(t, frames, errc)
	require.NoError(t, err)
	assert.Empty(t, rest)
}

func TestReplaySource_Cancel(t *testing.T) {
	t.Parallel()

	lines := testutil.HandSweep(50, 33, 5, 2000)
	src := NewReplaySource(strings.NewReader(testutil.JoinLines(lines)))

	ctx, cancel := context.WithCancel(context.Background())
	frames, errc := src.Frames(ctx)
	<-frames
	cancel()

	_, err := collect(t, frames, errc)
	assert.NoError(t, err)
}

func TestOpenReplay(t *testing.T) {
	t.Parallel()

	fs := fsutil.NewMemoryFileSystem()
	w, _ := fs.Create("rec/session.jsonl")
	w.Write([]byte(testutil.JoinLines(testutil.HandSweep(2, 33, 5, 2000))))
	w.Close()

	src, err := OpenReplay(fs, "rec/session.jsonl")
	require.NoError(t, err)
	ch, errc := src.Frames(context.Background())
	frames, err := collect(t, ch, errc)
	require.NoError(t, err)
	assert.Len(t, frames, 2)

	_, err = OpenReplay(fs, "rec/missing.jsonl")
	assert.Error(t, err)
}

func TestSerialSource(t *testing.T) {
	t.Parallel()

	port := serialmux.NewTestableSerialPort()
	mux := serialmux.NewSerialMux(port)
	src := NewSerialSource(mux, DefaultProjector())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	frames, errc := src.Frames(ctx)

	monitorDone := make(chan struct{})
	go func() {
		defer close(monitorDone)
		mux.Monitor(ctx)
	}()

	lines := testutil.HandSweep(2, 33, 5, 2000)
	port.AddReadData([]byte(`{"fw":"2.1"}` + "\nOK\n" + testutil.JoinLines(lines)))

	for i := 0; i < 2; i++ {
		select {
		case f := <-frames:
			assert.Equal(t, int64(i*33), f.TimeMs)
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout waiting for frame %d", i)
		}
	}
	assert.Equal(t, "2.1", src.DeviceState().Values()["fw"])

	require.NoError(t, mux.Close())
	_, err := collect(t, frames, errc)
	assert.ErrorIs(t, err, ErrSourceClosed)
	cancel()
	<-monitorDone
}
