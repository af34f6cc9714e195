package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig holds tracking, classification and I/O parameters. Every field
// is optional; the Get* methods supply defaults for fields left out of the
// JSON file, so partial configs are safe.
type TuningConfig struct {
	// Trajectory params
	HistoryCapacity          *int     `json:"history_capacity,omitempty"`
	ConfidenceThreshold      *float64 `json:"confidence_threshold,omitempty"`
	StationarySpeedPxPerSec  *float64 `json:"stationary_speed_px_per_sec,omitempty"`
	NearTargetMeters         *float64 `json:"near_target_meters,omitempty"`
	TargetJoint              *string  `json:"target_joint,omitempty"`
	FallbackTargetJoint      *string  `json:"fallback_target_joint,omitempty"`
	TrackedJoints            []string `json:"tracked_joints,omitempty"`
	TrailLength              *int     `json:"trail_length,omitempty"`
	WindowMs                 *int64   `json:"window_ms,omitempty"`
	MaxUsers                 *int     `json:"max_users,omitempty"`

	// Frame loop params
	FrameInterval *string `json:"frame_interval,omitempty"` // duration string like "33ms"
	FlushInterval *string `json:"flush_interval,omitempty"` // duration string like "1s"

	// Units
	PixelsPerInch *float64 `json:"pixels_per_inch,omitempty"`
	SpeedUnits    *string  `json:"speed_units,omitempty"`

	// Sensor params
	SerialPort     *string `json:"serial_port,omitempty"`
	SerialBaudRate *int    `json:"serial_baud_rate,omitempty"`
	ImageWidth     *int    `json:"image_width,omitempty"`
	ImageHeight    *int    `json:"image_height,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrInt64(v int64) *int64       { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated with
// its default value. It mirrors config/tuning.defaults.json.
func DefaultTuningConfig() *TuningConfig {
	return &TuningConfig{
		HistoryCapacity:         ptrInt(defaultHistoryCapacity),
		ConfidenceThreshold:     ptrFloat64(defaultConfidenceThreshold),
		StationarySpeedPxPerSec: ptrFloat64(defaultStationarySpeed),
		NearTargetMeters:        ptrFloat64(defaultNearTargetMeters),
		TargetJoint:             ptrString(defaultTargetJoint),
		FallbackTargetJoint:     ptrString(defaultFallbackTargetJoint),
		TrackedJoints:           append([]string(nil), defaultTrackedJoints...),
		TrailLength:             ptrInt(defaultHistoryCapacity),
		WindowMs:                ptrInt64(defaultWindowMs),
		MaxUsers:                ptrInt(defaultMaxUsers),
		FrameInterval:           ptrString("33ms"),
		FlushInterval:           ptrString("1s"),
		PixelsPerInch:           ptrFloat64(defaultPixelsPerInch),
		SpeedUnits:              ptrString(defaultSpeedUnits),
		SerialPort:              ptrString(""),
		SerialBaudRate:          ptrInt(defaultBaudRate),
		ImageWidth:              ptrInt(defaultImageWidth),
		ImageHeight:             ptrInt(defaultImageHeight),
	}
}

const (
	defaultHistoryCapacity     = 100
	defaultConfidenceThreshold = 0.5
	defaultStationarySpeed     = 150.0
	defaultNearTargetMeters    = 0.3
	defaultTargetJoint         = "head"
	defaultFallbackTargetJoint = "torso"
	defaultWindowMs            = 1000
	defaultMaxUsers            = 15
	defaultPixelsPerInch       = 96.0
	defaultSpeedUnits          = "px/s"
	defaultBaudRate            = 115200
	defaultImageWidth          = 640
	defaultImageHeight         = 480
	defaultFrameInterval       = 33 * time.Millisecond
	defaultFlushInterval       = time.Second
)

var defaultTrackedJoints = []string{"left_hand", "right_hand"}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseTuningConfig(data)
}

// ParseTuningConfig decodes and validates a JSON document.
func ParseTuningConfig(data []byte) (*TuningConfig, error) {
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,       // from cmd/har/
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid. Joint names are
// checked by the joints package, which owns the vocabulary.
func (c *TuningConfig) Validate() error {
	if c.HistoryCapacity != nil && *c.HistoryCapacity < 1 {
		return fmt.Errorf("history_capacity must be at least 1, got %d", *c.HistoryCapacity)
	}
	if c.ConfidenceThreshold != nil {
		if *c.ConfidenceThreshold <= 0 || *c.ConfidenceThreshold > 1 {
			return fmt.Errorf("confidence_threshold must be in (0, 1], got %f", *c.ConfidenceThreshold)
		}
	}
	if c.StationarySpeedPxPerSec != nil && *c.StationarySpeedPxPerSec <= 0 {
		return fmt.Errorf("stationary_speed_px_per_sec must be positive, got %f", *c.StationarySpeedPxPerSec)
	}
	if c.NearTargetMeters != nil && *c.NearTargetMeters <= 0 {
		return fmt.Errorf("near_target_meters must be positive, got %f", *c.NearTargetMeters)
	}
	if c.TargetJoint != nil && *c.TargetJoint == "" {
		return fmt.Errorf("target_joint must not be empty")
	}
	if c.TrackedJoints != nil && len(c.TrackedJoints) == 0 {
		return fmt.Errorf("tracked_joints must list at least one joint")
	}
	if c.TrailLength != nil && *c.TrailLength < 0 {
		return fmt.Errorf("trail_length must be non-negative, got %d", *c.TrailLength)
	}
	if c.WindowMs != nil && *c.WindowMs <= 0 {
		return fmt.Errorf("window_ms must be positive, got %d", *c.WindowMs)
	}
	if c.MaxUsers != nil && *c.MaxUsers < 1 {
		return fmt.Errorf("max_users must be at least 1, got %d", *c.MaxUsers)
	}
	if c.PixelsPerInch != nil && *c.PixelsPerInch <= 0 {
		return fmt.Errorf("pixels_per_inch must be positive, got %f", *c.PixelsPerInch)
	}
	if c.SerialBaudRate != nil && *c.SerialBaudRate <= 0 {
		return fmt.Errorf("serial_baud_rate must be positive, got %d", *c.SerialBaudRate)
	}
	if c.ImageWidth != nil && *c.ImageWidth <= 0 {
		return fmt.Errorf("image_width must be positive, got %d", *c.ImageWidth)
	}
	if c.ImageHeight != nil && *c.ImageHeight <= 0 {
		return fmt.Errorf("image_height must be positive, got %d", *c.ImageHeight)
	}

	for name, v := range map[string]*string{
		"frame_interval": c.FrameInterval,
		"flush_interval": c.FlushInterval,
	} {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, *v)
		}
	}
	return nil
}

func parseDurationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// GetHistoryCapacity returns the history_capacity value or the default.
func (c *TuningConfig) GetHistoryCapacity() int {
	if c.HistoryCapacity == nil {
		return defaultHistoryCapacity
	}
	return *c.HistoryCapacity
}

// GetConfidenceThreshold returns the confidence_threshold value or the default.
func (c *TuningConfig) GetConfidenceThreshold() float64 {
	if c.ConfidenceThreshold == nil {
		return defaultConfidenceThreshold
	}
	return *c.ConfidenceThreshold
}

// GetStationarySpeedPxPerSec returns the stationary_speed_px_per_sec value or the default.
func (c *TuningConfig) GetStationarySpeedPxPerSec() float64 {
	if c.StationarySpeedPxPerSec == nil {
		return defaultStationarySpeed
	}
	return *c.StationarySpeedPxPerSec
}

// GetNearTargetMeters returns the near_target_meters value or the default.
func (c *TuningConfig) GetNearTargetMeters() float64 {
	if c.NearTargetMeters == nil {
		return defaultNearTargetMeters
	}
	return *c.NearTargetMeters
}

// GetTargetJoint returns the target_joint value or the default.
func (c *TuningConfig) GetTargetJoint() string {
	if c.TargetJoint == nil || *c.TargetJoint == "" {
		return defaultTargetJoint
	}
	return *c.TargetJoint
}

// GetFallbackTargetJoint returns the fallback_target_joint value or the
// default. An explicit empty string disables the fallback.
func (c *TuningConfig) GetFallbackTargetJoint() string {
	if c.FallbackTargetJoint == nil {
		return defaultFallbackTargetJoint
	}
	return *c.FallbackTargetJoint
}

// GetTrackedJoints returns a copy of tracked_joints or the default.
func (c *TuningConfig) GetTrackedJoints() []string {
	if len(c.TrackedJoints) == 0 {
		return append([]string(nil), defaultTrackedJoints...)
	}
	return append([]string(nil), c.TrackedJoints...)
}

// GetTrailLength returns the trail_length value, falling back to the
// history capacity.
func (c *TuningConfig) GetTrailLength() int {
	if c.TrailLength == nil || *c.TrailLength == 0 {
		return c.GetHistoryCapacity()
	}
	return *c.TrailLength
}

// GetWindowMs returns the window_ms value or the default.
func (c *TuningConfig) GetWindowMs() int64 {
	if c.WindowMs == nil {
		return defaultWindowMs
	}
	return *c.WindowMs
}

// GetMaxUsers returns the max_users value or the default.
func (c *TuningConfig) GetMaxUsers() int {
	if c.MaxUsers == nil {
		return defaultMaxUsers
	}
	return *c.MaxUsers
}

// GetFrameInterval returns the frame_interval value or the default.
func (c *TuningConfig) GetFrameInterval() time.Duration {
	return parseDurationOr(c.FrameInterval, defaultFrameInterval)
}

// GetFlushInterval returns the flush_interval value or the default.
func (c *TuningConfig) GetFlushInterval() time.Duration {
	return parseDurationOr(c.FlushInterval, defaultFlushInterval)
}

// GetPixelsPerInch returns the pixels_per_inch value or the default.
func (c *TuningConfig) GetPixelsPerInch() float64 {
	if c.PixelsPerInch == nil {
		return defaultPixelsPerInch
	}
	return *c.PixelsPerInch
}

// GetSpeedUnits returns the speed_units value or the default.
func (c *TuningConfig) GetSpeedUnits() string {
	if c.SpeedUnits == nil || *c.SpeedUnits == "" {
		return defaultSpeedUnits
	}
	return *c.SpeedUnits
}

// GetSerialPort returns the serial_port value. Empty means no serial input.
func (c *TuningConfig) GetSerialPort() string {
	if c.SerialPort == nil {
		return ""
	}
	return *c.SerialPort
}

// GetSerialBaudRate returns the serial_baud_rate value or the default.
func (c *TuningConfig) GetSerialBaudRate() int {
	if c.SerialBaudRate == nil {
		return defaultBaudRate
	}
	return *c.SerialBaudRate
}

// GetImageWidth returns the image_width value or the default.
func (c *TuningConfig) GetImageWidth() int {
	if c.ImageWidth == nil {
		return defaultImageWidth
	}
	return *c.ImageWidth
}

// GetImageHeight returns the image_height value or the default.
func (c *TuningConfig) GetImageHeight() int {
	if c.ImageHeight == nil {
		return defaultImageHeight
	}
	return *c.ImageHeight
}
