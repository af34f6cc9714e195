// Package dashboard serves the live view of tracked users over HTTP: JSON
// state plus go-echarts charts of hand speeds, trajectories and distance to
// target.
package dashboard

import (
	"sync/atomic"

	"github.com/banshee-data/har/internal/joints"
)

// State holds the most recent registry snapshot. The frame loop publishes;
// HTTP handlers read. Snapshots are never mutated after Publish.
type State struct {
	latest    atomic.Pointer[joints.RegistrySnapshot]
	published atomic.Uint64
}

// Publish replaces the latest snapshot.
func (s *State) Publish(snap joints.RegistrySnapshot) {
	s.latest.Store(&snap)
	s.published.Add(1)
}

// Latest returns the last published snapshot, or false before the first
// frame.
func (s *State) Latest() (joints.RegistrySnapshot, bool) {
	p := s.latest.Load()
	if p == nil {
		return joints.RegistrySnapshot{}, false
	}
	return *p, true
}

// Published counts snapshots since start.
func (s *State) Published() uint64 {
	return s.published.Load()
}

// Write publishes snap so a State can sit in a sink fan-out.
func (s *State) Write(snap joints.RegistrySnapshot) error {
	s.Publish(snap)
	return nil
}

func (s *State) Flush() error { return nil }
func (s *State) Close() error { return nil }
