// Package csvlog writes per-user joint-position and hand-trajectory CSV
// files from registry snapshots.
package csvlog

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/har/internal/joints"
	"github.com/banshee-data/har/internal/units"
)

const emptyCell = "[,]"

// JointFileName is the joint-position log name for a user, stamped with the
// session start time (e.g. JointPositionData_01_2024-3-7_9-5-30.csv).
func JointFileName(userID int, started time.Time) string {
	return fmt.Sprintf("JointPositionData_%02d_%s.csv", userID, stamp(started))
}

// TrajectoryFileName is the hand-trajectory log name for one tracked joint.
func TrajectoryFileName(userID int, joint joints.JointID, started time.Time) string {
	return fmt.Sprintf("HandTrajectory_%02d_%s_%s.csv", userID, joint, stamp(started))
}

func stamp(t time.Time) string {
	return fmt.Sprintf("%d-%d-%d_%d-%d-%d",
		t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
}

// JointHeader names the joint-position columns. Repeated joints keep their
// position so the header is not deduplicated.
func JointHeader() []string {
	out := make([]string, 0, len(joints.CSVOrder)+1)
	out = append(out, "time_ms")
	for _, id := range joints.CSVOrder {
		out = append(out, string(id))
	}
	return out
}

// JointRow renders one frame of a user's skeleton. Joints below threshold or
// not reported write "[,]".
func JointRow(timeMs int64, obs map[joints.JointID]joints.Observation, threshold float64) []string {
	out := make([]string, 0, len(joints.CSVOrder)+1)
	out = append(out, strconv.FormatInt(timeMs, 10))
	for _, id := range joints.CSVOrder {
		o, ok := obs[id]
		if !ok || !o.Confident(threshold) {
			out = append(out, emptyCell)
			continue
		}
		out = append(out, "["+formatFloat(o.Screen.X, 1)+", "+formatFloat(o.Screen.Y, 1)+"]")
	}
	return out
}

// TrajectoryHeader names the hand-trajectory columns. The speed column is
// suffixed with speedUnit, e.g. speed_px_s.
func TrajectoryHeader(speedUnit string) []string {
	return []string{
		"time_ms", "x_m", "y_m", "z_m", "screen_x", "screen_y",
		"speed_" + unitSuffix(speedUnit), "distance_m", "class",
	}
}

// TrajectoryRow renders the newest sample of a joint.
func TrajectoryRow(js joints.JointState, speedUnit string, ppi float64) []string {
	return []string{
		strconv.FormatInt(js.TimeMs, 10),
		formatFloat(units.MillimetersToMeters(js.World.X), 4),
		formatFloat(units.MillimetersToMeters(js.World.Y), 4),
		formatFloat(units.MillimetersToMeters(js.World.Z), 4),
		formatFloat(js.Screen.X, 2),
		formatFloat(js.Screen.Y, 2),
		formatFloat(units.ConvertSpeed(js.Speed, speedUnit, ppi), 2),
		formatFloat(js.DistanceM, 4),
		js.Class.String(),
	}
}

func unitSuffix(unit string) string {
	if !units.IsValid(unit) {
		unit = units.PixelsPerSecond
	}
	return strings.ReplaceAll(unit, "/", "_")
}

func formatFloat(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}
