package serialmux

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/banshee-data/har/internal/monitoring"
)

// DeviceState holds the latest status values reported by the bridge.
type DeviceState struct {
	mu     sync.RWMutex
	values map[string]any
	errors int
}

// NewDeviceState returns an empty DeviceState.
func NewDeviceState() *DeviceState {
	return &DeviceState{values: make(map[string]any)}
}

// Merge folds a status JSON object into the state.
func (d *DeviceState) Merge(payload string) error {
	var values map[string]any
	if err := json.Unmarshal([]byte(payload), &values); err != nil {
		return fmt.Errorf("failed to unmarshal status JSON: %w", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for k, v := range values {
		d.values[k] = v
	}
	return nil
}

// Values returns a copy of the current state.
func (d *DeviceState) Values() map[string]any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]any, len(d.values))
	for k, v := range d.values {
		out[k] = v
	}
	return out
}

// CommandErrors counts ERR replies seen so far.
func (d *DeviceState) CommandErrors() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.errors
}

// HandleLine dispatches one bridge line. Frames go to onFrame; status and
// acknowledgement lines update the DeviceState.
func (d *DeviceState) HandleLine(line string, onFrame func(string) error) error {
	switch ClassifyLine(line) {
	case LineFrame:
		if onFrame == nil {
			return nil
		}
		if err := onFrame(line); err != nil {
			return fmt.Errorf("failed to handle frame: %w", err)
		}
	case LineStatus:
		if err := d.Merge(line); err != nil {
			return fmt.Errorf("failed to handle status: %w", err)
		}
		monitoring.Logf("[serialmux] status: %s", line)
	case LineAck:
		if strings.HasPrefix(strings.TrimSpace(line), "ERR") {
			d.mu.Lock()
			d.errors++
			d.mu.Unlock()
			monitoring.Logf("[serialmux] bridge rejected command: %s", line)
		}
	default:
		monitoring.Debugf("[serialmux] unknown line: %s", line)
	}
	return nil
}
