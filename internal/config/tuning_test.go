package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestDefaultTuningConfig(t *testing.T) {
	cfg := DefaultTuningConfig()

	if cfg.HistoryCapacity == nil || *cfg.HistoryCapacity != 100 {
		t.Errorf("Expected HistoryCapacity 100, got %v", cfg.HistoryCapacity)
	}
	if cfg.ConfidenceThreshold == nil || *cfg.ConfidenceThreshold != 0.5 {
		t.Errorf("Expected ConfidenceThreshold 0.5, got %v", cfg.ConfidenceThreshold)
	}
	if cfg.FrameInterval == nil || *cfg.FrameInterval != "33ms" {
		t.Errorf("Expected FrameInterval '33ms', got %v", cfg.FrameInterval)
	}

	if cfg.GetStationarySpeedPxPerSec() != 150 {
		t.Errorf("GetStationarySpeedPxPerSec() = %f, want 150", cfg.GetStationarySpeedPxPerSec())
	}
	if cfg.GetNearTargetMeters() != 0.3 {
		t.Errorf("GetNearTargetMeters() = %f, want 0.3", cfg.GetNearTargetMeters())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestDefaultsFileMatchesCode(t *testing.T) {
	fromFile := MustLoadDefaultConfig()
	if !reflect.DeepEqual(fromFile, DefaultTuningConfig()) {
		t.Errorf("config/tuning.defaults.json and DefaultTuningConfig() disagree:\nfile: %+v\ncode: %+v",
			fromFile, DefaultTuningConfig())
	}
}

func TestEmptyConfigGetters(t *testing.T) {
	cfg := EmptyTuningConfig()

	if got := cfg.GetHistoryCapacity(); got != 100 {
		t.Errorf("GetHistoryCapacity() = %d, want 100", got)
	}
	if got := cfg.GetTargetJoint(); got != "head" {
		t.Errorf("GetTargetJoint() = %q, want head", got)
	}
	if got := cfg.GetFallbackTargetJoint(); got != "torso" {
		t.Errorf("GetFallbackTargetJoint() = %q, want torso", got)
	}
	if got := cfg.GetTrackedJoints(); !reflect.DeepEqual(got, []string{"left_hand", "right_hand"}) {
		t.Errorf("GetTrackedJoints() = %v", got)
	}
	if got := cfg.GetTrailLength(); got != 100 {
		t.Errorf("GetTrailLength() = %d, want 100", got)
	}
	if got := cfg.GetFrameInterval(); got != 33*time.Millisecond {
		t.Errorf("GetFrameInterval() = %v, want 33ms", got)
	}
	if got := cfg.GetSerialPort(); got != "" {
		t.Errorf("GetSerialPort() = %q, want empty", got)
	}
	if got := cfg.GetImageWidth(); got != 640 {
		t.Errorf("GetImageWidth() = %d, want 640", got)
	}
	if got := cfg.GetImageHeight(); got != 480 {
		t.Errorf("GetImageHeight() = %d, want 480", got)
	}
}

func TestGetTrackedJointsReturnsCopy(t *testing.T) {
	cfg := &TuningConfig{TrackedJoints: []string{"head"}}
	got := cfg.GetTrackedJoints()
	got[0] = "torso"
	if cfg.TrackedJoints[0] != "head" {
		t.Error("GetTrackedJoints() must not alias the config slice")
	}
}

func TestFallbackTargetCanBeDisabled(t *testing.T) {
	cfg := &TuningConfig{FallbackTargetJoint: ptrString("")}
	if got := cfg.GetFallbackTargetJoint(); got != "" {
		t.Errorf("GetFallbackTargetJoint() = %q, want empty", got)
	}
}

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "history_capacity": 50,
  "stationary_speed_px_per_sec": 90.5,
  "tracked_joints": ["right_hand"],
  "flush_interval": "250ms"
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetHistoryCapacity() != 50 {
		t.Errorf("Expected HistoryCapacity 50, got %d", cfg.GetHistoryCapacity())
	}
	if cfg.GetStationarySpeedPxPerSec() != 90.5 {
		t.Errorf("Expected stationary speed 90.5, got %f", cfg.GetStationarySpeedPxPerSec())
	}
	if !reflect.DeepEqual(cfg.GetTrackedJoints(), []string{"right_hand"}) {
		t.Errorf("Expected tracked joints [right_hand], got %v", cfg.GetTrackedJoints())
	}
	if cfg.GetFlushInterval() != 250*time.Millisecond {
		t.Errorf("Expected flush interval 250ms, got %v", cfg.GetFlushInterval())
	}
	// Omitted fields fall back to defaults.
	if cfg.GetNearTargetMeters() != 0.3 {
		t.Errorf("Expected default near target 0.3, got %f", cfg.GetNearTargetMeters())
	}
}

func TestLoadTuningConfigMissing(t *testing.T) {
	_, err := LoadTuningConfig("/nonexistent/path/to/config.json")
	if err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestLoadTuningConfigWrongExtension(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("{}"), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	if _, err := LoadTuningConfig(configPath); err == nil {
		t.Error("Expected error for non-.json extension, got nil")
	}
}

func TestLoadTuningConfigInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid_config.json")

	invalidJSON := `{
  "history_capacity": "many"
`
	if err := os.WriteFile(configPath, []byte(invalidJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := LoadTuningConfig(configPath)
	if err == nil {
		t.Error("Expected error when loading invalid JSON, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *TuningConfig
		wantErr bool
	}{
		{"valid config", DefaultTuningConfig(), false},
		{"empty config is valid", &TuningConfig{}, false},
		{"zero capacity", &TuningConfig{HistoryCapacity: ptrInt(0)}, true},
		{"confidence too low", &TuningConfig{ConfidenceThreshold: ptrFloat64(-0.1)}, true},
		{"confidence too high", &TuningConfig{ConfidenceThreshold: ptrFloat64(1.5)}, true},
		{"confidence zero rejected", &TuningConfig{ConfidenceThreshold: ptrFloat64(0)}, true},
		{"confidence one allowed", &TuningConfig{ConfidenceThreshold: ptrFloat64(1)}, false},
		{"zero stationary speed", &TuningConfig{StationarySpeedPxPerSec: ptrFloat64(0)}, true},
		{"negative near target", &TuningConfig{NearTargetMeters: ptrFloat64(-1)}, true},
		{"empty target joint", &TuningConfig{TargetJoint: ptrString("")}, true},
		{"empty tracked joints", &TuningConfig{TrackedJoints: []string{}}, true},
		{"invalid flush interval", &TuningConfig{FlushInterval: ptrString("invalid")}, true},
		{"negative frame interval", &TuningConfig{FrameInterval: ptrString("-5ms")}, true},
		{"zero window", &TuningConfig{WindowMs: ptrInt64(0)}, true},
		{"zero pixels per inch", &TuningConfig{PixelsPerInch: ptrFloat64(0)}, true},
		{"zero baud", &TuningConfig{SerialBaudRate: ptrInt(0)}, true},
		{"zero image width", &TuningConfig{ImageWidth: ptrInt(0)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetFlushInterval(t *testing.T) {
	tests := []struct {
		name string
		cfg  *TuningConfig
		want time.Duration
	}{
		{"two seconds", &TuningConfig{FlushInterval: ptrString("2s")}, 2 * time.Second},
		{"empty string uses default", &TuningConfig{FlushInterval: ptrString("")}, time.Second},
		{"nil uses default", &TuningConfig{}, time.Second},
		{"invalid uses default", &TuningConfig{FlushInterval: ptrString("soon")}, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.GetFlushInterval(); got != tt.want {
				t.Errorf("GetFlushInterval() = %v, want %v", got, tt.want)
			}
		})
	}
}
