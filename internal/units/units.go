// Package units provides length conversions and speed units for display.
// Trajectory math stays in millimetres and pixels; these helpers are for
// callers that report in metres or inches.
package units

import (
	"fmt"
	"strings"
)

// Speed unit constants
const (
	PixelsPerSecond = "px/s"
	InchesPerSecond = "in/s"
	MPS             = "mps"
)

// InchesToMetersFactor is the exact inch length in metres.
const InchesToMetersFactor = 0.0254

// ValidUnits contains all valid speed unit values
var ValidUnits = []string{PixelsPerSecond, InchesPerSecond, MPS}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// MillimetersToMeters converts sensor world coordinates to metres.
func MillimetersToMeters(mm float64) float64 {
	return mm * 0.001
}

// PixelsToInches converts a screen length at the given density.
// A non-positive ppi yields 0.
func PixelsToInches(px, ppi float64) float64 {
	if ppi <= 0 {
		return 0
	}
	return px / ppi
}

// InchesToMeters converts inches to metres.
func InchesToMeters(in float64) float64 {
	return in * InchesToMetersFactor
}

// PixelsToMeters converts a screen length to metres at the given density.
func PixelsToMeters(px, ppi float64) float64 {
	return InchesToMeters(PixelsToInches(px, ppi))
}

// ConvertSpeed converts a screen speed in pixels per second to targetUnits.
// Unknown units return the input unchanged.
func ConvertSpeed(pxPerSec float64, targetUnits string, ppi float64) float64 {
	switch targetUnits {
	case InchesPerSecond:
		return PixelsToInches(pxPerSec, ppi)
	case MPS:
		return PixelsToMeters(pxPerSec, ppi)
	default:
		return pxPerSec
	}
}

// FormatSpeed renders a speed label such as "12.3 in/s".
func FormatSpeed(pxPerSec float64, targetUnits string, ppi float64) string {
	if !IsValid(targetUnits) {
		targetUnits = PixelsPerSecond
	}
	return fmt.Sprintf("%.1f %s", ConvertSpeed(pxPerSec, targetUnits, ppi), targetUnits)
}
