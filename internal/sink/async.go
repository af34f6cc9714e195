// Package sink runs snapshot consumers on their own goroutine so file and
// database I/O never stalls the frame loop.
package sink

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/har/internal/joints"
	"github.com/banshee-data/har/internal/monitoring"
	"github.com/banshee-data/har/internal/timeutil"
)

// SnapshotWriter consumes registry snapshots. csvlog.Logger and
// db.Recorder implement it.
type SnapshotWriter interface {
	Write(snap joints.RegistrySnapshot) error
	Flush() error
	Close() error
}

// AsyncWriterConfig contains configuration for AsyncWriter.
type AsyncWriterConfig struct {
	// Name labels log lines, e.g. "csv" or "db".
	Name string
	// Writer receives snapshots on the worker goroutine.
	Writer SnapshotWriter
	// Buffer bounds queued snapshots (default 256).
	Buffer int
	// FlushInterval is how often buffered rows are flushed (default 1s).
	FlushInterval time.Duration
	// Clock is optional; nil uses the real clock.
	Clock timeutil.Clock
}

// AsyncWriter moves sink I/O off the frame loop. Submit never blocks; when
// the queue is full the snapshot is dropped and counted.
type AsyncWriter struct {
	name     string
	writer   SnapshotWriter
	queue    chan joints.RegistrySnapshot
	interval time.Duration
	clock    timeutil.Clock

	mu       sync.Mutex
	started  bool
	running  bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}

	written atomic.Uint64
	dropped atomic.Uint64
	errors  atomic.Uint64
}

// NewAsyncWriter creates an AsyncWriter. Call Run to start it.
func NewAsyncWriter(cfg AsyncWriterConfig) *AsyncWriter {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if cfg.Name == "" {
		cfg.Name = "snapshot"
	}
	return &AsyncWriter{
		name:     cfg.Name,
		writer:   cfg.Writer,
		queue:    make(chan joints.RegistrySnapshot, cfg.Buffer),
		interval: cfg.FlushInterval,
		clock:    cfg.Clock,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Submit queues snap and reports whether it was accepted.
func (a *AsyncWriter) Submit(snap joints.RegistrySnapshot) bool {
	select {
	case a.queue <- snap:
		return true
	default:
		a.dropped.Add(1)
		return false
	}
}

// Run writes queued snapshots until ctx is cancelled or Stop is called,
// then drains the queue and closes the writer. An AsyncWriter runs at most
// once; later calls return nil immediately. If Stop was called before Run,
// Run only drains and closes.
func (a *AsyncWriter) Run(ctx context.Context) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return nil
	}
	a.started = true
	a.running = true
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
		close(a.doneCh)
	}()

	select {
	case <-a.stopCh:
		return a.finish()
	default:
	}

	ticker := a.clock.NewTicker(a.interval)
	defer ticker.Stop()

	monitoring.Logf("[sink] %s writer started: flush=%v buffer=%d", a.name, a.interval, cap(a.queue))

	for {
		select {
		case <-ctx.Done():
			return a.finish()
		case <-a.stopCh:
			return a.finish()
		case snap := <-a.queue:
			a.write(snap)
		case <-ticker.C():
			if err := a.writer.Flush(); err != nil {
				monitoring.Logf("[sink] %s flush: %v", a.name, err)
			}
		}
	}
}

func (a *AsyncWriter) write(snap joints.RegistrySnapshot) {
	if err := a.writer.Write(snap); err != nil {
		a.errors.Add(1)
		monitoring.Logf("[sink] %s write snapshot t=%d: %v", a.name, snap.TimeMs, err)
		return
	}
	a.written.Add(1)
}

func (a *AsyncWriter) finish() error {
drain:
	for {
		select {
		case snap := <-a.queue:
			a.write(snap)
		default:
			break drain
		}
	}
	err := a.writer.Close()
	monitoring.Logf("[sink] %s writer stopped: written=%d dropped=%d errors=%d",
		a.name, a.written.Load(), a.dropped.Load(), a.errors.Load())
	return err
}

// Stop requests the worker to stop and, if Run has started, waits for it
// to finish. It is safe to call multiple times and before Run.
func (a *AsyncWriter) Stop() {
	a.stopOnce.Do(func() { close(a.stopCh) })
	a.mu.Lock()
	started := a.started
	a.mu.Unlock()
	if started {
		<-a.doneCh
	}
}

// IsRunning reports whether Run is active.
func (a *AsyncWriter) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// Written returns the number of snapshots written.
func (a *AsyncWriter) Written() uint64 { return a.written.Load() }

// Dropped returns the number of snapshots rejected by Submit.
func (a *AsyncWriter) Dropped() uint64 { return a.dropped.Load() }
