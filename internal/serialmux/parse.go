package serialmux

import "strings"

// Line kinds emitted by the skeleton bridge.
const (
	LineFrame   = "frame"   // {"ts_ms":...,"users":[...]}
	LineStatus  = "status"  // any other JSON object, e.g. device info
	LineAck     = "ack"     // OK / ERR replies to commands
	LineUnknown = "unknown"
)

// ClassifyLine inspects a line from the bridge and returns its kind. It does
// not parse JSON; frames are decoded by the sensor package.
func ClassifyLine(line string) string {
	line = strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(line, "{"):
		if strings.Contains(line, `"ts_ms"`) && strings.Contains(line, `"users"`) {
			return LineFrame
		}
		return LineStatus
	case line == "OK" || strings.HasPrefix(line, "OK ") || strings.HasPrefix(line, "ERR"):
		return LineAck
	default:
		return LineUnknown
	}
}
