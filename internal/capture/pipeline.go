// Package capture runs the frame loop: it pulls frames from a sensor
// source, applies them to the joint registry on a single goroutine and fans
// the resulting snapshots out to publishers and asynchronous sinks.
package capture

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/banshee-data/har/internal/joints"
	"github.com/banshee-data/har/internal/monitoring"
	"github.com/banshee-data/har/internal/sensor"
	"github.com/banshee-data/har/internal/sink"
	"github.com/banshee-data/har/internal/timeutil"
)

// Publisher receives every snapshot synchronously on the frame loop. It
// must not block.
type Publisher interface {
	Publish(snap joints.RegistrySnapshot)
}

// Config wires a Pipeline.
type Config struct {
	Registry  *joints.Registry
	Projector sensor.Projector
	// Clock stamps frames that carry no timestamp; nil uses the real clock.
	Clock      timeutil.Clock
	Publishers []Publisher
	Sinks      []*sink.AsyncWriter
}

// Pipeline owns the registry. Only the goroutine calling Run or Step may
// touch it.
type Pipeline struct {
	registry   *joints.Registry
	proj       sensor.Projector
	clock      *timeutil.FrameClock
	publishers []Publisher
	sinks      []*sink.AsyncWriter

	lastMs int64
	frames atomic.Uint64
}

// New creates a Pipeline. A nil Registry gets the default tracker config.
func New(cfg Config) *Pipeline {
	if cfg.Registry == nil {
		cfg.Registry = joints.NewRegistry(joints.DefaultTrackerConfig(), 0)
	}
	if cfg.Projector == (sensor.Projector{}) {
		cfg.Projector = sensor.DefaultProjector()
	}
	return &Pipeline{
		registry:   cfg.Registry,
		proj:       cfg.Projector,
		clock:      timeutil.NewFrameClock(cfg.Clock),
		publishers: cfg.Publishers,
		sinks:      cfg.Sinks,
	}
}

// Frames returns the number of frames applied.
func (p *Pipeline) Frames() uint64 { return p.frames.Load() }

// Registry exposes the registry for callers on the frame loop goroutine.
func (p *Pipeline) Registry() *joints.Registry { return p.registry }

// timeOf returns the frame's timestamp, falling back to the frame clock.
// Timestamps never go backwards.
func (p *Pipeline) timeOf(f sensor.Frame) int64 {
	ms := f.TimeMs
	if ms <= 0 {
		ms = p.clock.NowMs()
	}
	if ms < p.lastMs {
		monitoring.Debugf("[capture] frame at %dms behind %dms, clamping", ms, p.lastMs)
		ms = p.lastMs
	}
	p.lastMs = ms
	return ms
}

// Step applies one frame and distributes the snapshot.
func (p *Pipeline) Step(f sensor.Frame) joints.RegistrySnapshot {
	snap := p.registry.Apply(f.UserFrames(p.proj), p.timeOf(f))
	for _, pub := range p.publishers {
		pub.Publish(snap)
	}
	for _, s := range p.sinks {
		s.Submit(snap)
	}
	n := p.frames.Add(1)
	monitoring.Debugf("[capture] frame %d t=%dms users=%d events=%d", n, snap.TimeMs, len(snap.Users), len(snap.Events))
	return snap
}

// Run consumes src until it is exhausted or ctx is cancelled. A source
// that ends cleanly, or cancellation, returns nil.
func (p *Pipeline) Run(ctx context.Context, src sensor.Source) error {
	frames, errc := src.Frames(ctx)
	for f := range frames {
		p.Step(f)
	}
	err := <-errc
	if err == nil || errors.Is(err, context.Canceled) {
		monitoring.Logf("[capture] source finished after %d frames", p.Frames())
		return nil
	}
	return err
}
