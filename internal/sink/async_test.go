package sink

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/har/internal/joints"
	"github.com/banshee-data/har/internal/timeutil"
)

var epoch = time.Date(2024, 3, 7, 9, 5, 30, 0, time.UTC)

type fakeWriter struct {
	mu      sync.Mutex
	failAt  int64
	times   []int64
	flushes int
	closed  bool
}

func (f *fakeWriter) Write(snap joints.RegistrySnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAt != 0 && snap.TimeMs == f.failAt {
		return errors.New("disk full")
	}
	f.times = append(f.times, snap.TimeMs)
	return nil
}

func (f *fakeWriter) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
	return nil
}

func (f *fakeWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeWriter) state() ([]int64, int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.times...), f.flushes, f.closed
}

func TestAsyncWriter_DrainsOnStop(t *testing.T) {
	t.Parallel()

	fw := &fakeWriter{}
	clock := timeutil.NewMockClock(epoch)
	aw := NewAsyncWriter(AsyncWriterConfig{Writer: fw, Buffer: 8, Clock: clock})

	for i := int64(0); i < 3; i++ {
		require.True(t, aw.Submit(joints.RegistrySnapshot{TimeMs: i}))
	}

	done := make(chan error, 1)
	go func() { done <- aw.Run(context.Background()) }()
	require.Eventually(t, aw.IsRunning, time.Second, time.Millisecond)

	aw.Stop()
	require.NoError(t, <-done)

	times, _, closed := fw.state()
	assert.Equal(t, []int64{0, 1, 2}, times)
	assert.True(t, closed)
	assert.Equal(t, uint64(3), aw.Written())
	assert.False(t, aw.IsRunning())

	aw.Stop()
}

func TestAsyncWriter_StopBeforeRun(t *testing.T) {
	t.Parallel()

	fw := &fakeWriter{}
	aw := NewAsyncWriter(AsyncWriterConfig{Writer: fw, Buffer: 8, Clock: timeutil.NewMockClock(epoch)})
	require.True(t, aw.Submit(joints.RegistrySnapshot{TimeMs: 1}))
	require.True(t, aw.Submit(joints.RegistrySnapshot{TimeMs: 2}))

	aw.Stop()

	done := make(chan error, 1)
	go func() { done <- aw.Run(context.Background()) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after an earlier Stop")
	}

	times, _, closed := fw.state()
	assert.Equal(t, []int64{1, 2}, times)
	assert.True(t, closed)
	assert.False(t, aw.IsRunning())

	// a finished writer does not run again
	require.NoError(t, aw.Run(context.Background()))
	aw.Stop()
}

func TestAsyncWriter_DropsWhenFull(t *testing.T) {
	t.Parallel()

	aw := NewAsyncWriter(AsyncWriterConfig{Writer: &fakeWriter{}, Buffer: 1})
	assert.True(t, aw.Submit(joints.RegistrySnapshot{}))
	assert.False(t, aw.Submit(joints.RegistrySnapshot{}))
	assert.Equal(t, uint64(1), aw.Dropped())
}

func TestAsyncWriter_PeriodicFlush(t *testing.T) {
	t.Parallel()

	fw := &fakeWriter{}
	clock := timeutil.NewMockClock(epoch)
	aw := NewAsyncWriter(AsyncWriterConfig{Writer: fw, FlushInterval: time.Second, Clock: clock})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- aw.Run(ctx) }()
	require.Eventually(t, aw.IsRunning, time.Second, time.Millisecond)

	require.Eventually(t, func() bool {
		clock.Advance(time.Second)
		_, flushes, _ := fw.state()
		return flushes > 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	_, _, closed := fw.state()
	assert.True(t, closed)
}

func TestAsyncWriter_WriteErrorsAreCounted(t *testing.T) {
	t.Parallel()

	fw := &fakeWriter{failAt: 2}
	aw := NewAsyncWriter(AsyncWriterConfig{Name: "test", Writer: fw, Clock: timeutil.NewMockClock(epoch)})
	for i := int64(1); i <= 3; i++ {
		require.True(t, aw.Submit(joints.RegistrySnapshot{TimeMs: i}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, aw.Run(ctx))

	times, _, _ := fw.state()
	assert.Equal(t, []int64{1, 3}, times)
	assert.Equal(t, uint64(2), aw.Written())
}
