package csvlog

import (
	"bytes"
	"encoding/csv"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/har/internal/fsutil"
	"github.com/banshee-data/har/internal/joints"
	"github.com/banshee-data/har/internal/trajectory"
)

var sessionStart = time.Date(2024, 3, 7, 9, 5, 30, 0, time.UTC)

func TestFileNames(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "JointPositionData_01_2024-3-7_9-5-30.csv", JointFileName(1, sessionStart))
	assert.Equal(t, "HandTrajectory_12_left_hand_2024-3-7_9-5-30.csv",
		TrajectoryFileName(12, joints.LeftHand, sessionStart))
}

func TestJointRow(t *testing.T) {
	t.Parallel()

	obs := map[joints.JointID]joints.Observation{
		joints.Head:     {Screen: r2.Vec{X: 320, Y: 240}, Confidence: 1},
		joints.LeftHand: {Screen: r2.Vec{X: 10, Y: 20}, Confidence: 0.3},
	}
	row := JointRow(66, obs, 0.5)

	require.Len(t, row, len(joints.CSVOrder)+1)
	assert.Equal(t, "66", row[0])
	assert.Equal(t, "[320.0, 240.0]", row[1])
	assert.Equal(t, "[,]", row[len(row)-1], "low confidence left hand")
	assert.Equal(t, "[,]", row[2], "neck not reported")
	assert.Len(t, JointHeader(), len(row))
}

func TestTrajectoryRow(t *testing.T) {
	t.Parallel()

	js := joints.JointState{
		Joint:     joints.RightHand,
		HasSample: true,
		TimeMs:    1000,
		World:     r3.Vec{X: 250, Y: -100, Z: 2000},
		Screen:    r2.Vec{X: 400.5, Y: 200},
		Speed:     96,
		DistanceM: 0.25,
		Class:     trajectory.ClassNearTarget,
	}

	want := []string{"1000", "0.2500", "-0.1000", "2.0000", "400.50", "200.00", "1.00", "0.2500", "near_target"}
	if diff := cmp.Diff(want, TrajectoryRow(js, "in/s", 96)); diff != "" {
		t.Errorf("TrajectoryRow mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, "speed_in_s", TrajectoryHeader("in/s")[6])
	assert.Equal(t, "speed_px_s", TrajectoryHeader("furlongs")[6])
}

func trackingUser(id int, timeMs int64, handX float64) joints.UserSnapshot {
	return joints.UserSnapshot{
		UserID: id,
		State:  joints.StateTracking,
		Observations: map[joints.JointID]joints.Observation{
			joints.Head:     {Screen: r2.Vec{X: 320, Y: 240}, Confidence: 1},
			joints.LeftHand: {Screen: r2.Vec{X: handX, Y: 300}, Confidence: 0.9},
		},
		Tracking: joints.Snapshot{
			TimeMs: timeMs,
			Joints: []joints.JointState{
				{Joint: joints.LeftHand, HasSample: true, TimeMs: timeMs, Screen: r2.Vec{X: handX, Y: 300}, Class: trajectory.ClassMoving},
				{Joint: joints.RightHand},
			},
		},
	}
}

func readCSV(t *testing.T, fs *fsutil.MemoryFileSystem, path string) [][]string {
	t.Helper()
	data, err := fs.ReadFile(path)
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	return records
}

func TestLogger_Write(t *testing.T) {
	t.Parallel()

	fs := fsutil.NewMemoryFileSystem()
	l, err := NewLogger(Config{FS: fs, Dir: "out", Started: sessionStart})
	require.NoError(t, err)

	require.NoError(t, l.Write(joints.RegistrySnapshot{TimeMs: 0, Users: []joints.UserSnapshot{
		trackingUser(1, 0, 100),
		{UserID: 2, State: joints.StateCalibrating},
	}}))
	// Same sample time: a joint row but no new trajectory row.
	require.NoError(t, l.Write(joints.RegistrySnapshot{TimeMs: 33, Users: []joints.UserSnapshot{trackingUser(1, 0, 100)}}))
	require.NoError(t, l.Write(joints.RegistrySnapshot{TimeMs: 66, Users: []joints.UserSnapshot{trackingUser(1, 66, 110)}}))
	require.NoError(t, l.Flush())

	assert.Equal(t, []string{
		filepath.Join("out", "HandTrajectory_01_left_hand_2024-3-7_9-5-30.csv"),
		filepath.Join("out", "JointPositionData_01_2024-3-7_9-5-30.csv"),
	}, fs.Files("out"))

	jointRows := readCSV(t, fs, filepath.Join("out", JointFileName(1, sessionStart)))
	require.Len(t, jointRows, 4)
	assert.Equal(t, JointHeader(), jointRows[0])
	assert.Equal(t, "[110.0, 300.0]", jointRows[3][len(jointRows[3])-1])

	trajRows := readCSV(t, fs, filepath.Join("out", TrajectoryFileName(1, joints.LeftHand, sessionStart)))
	require.Len(t, trajRows, 3)
	assert.Equal(t, "66", trajRows[2][0])
	assert.Equal(t, "moving", trajRows[2][8])

	assert.Equal(t, 5, l.Rows())
	require.NoError(t, l.Close())
}

func TestLogger_LostUserReturns(t *testing.T) {
	t.Parallel()

	fs := fsutil.NewMemoryFileSystem()
	l, err := NewLogger(Config{FS: fs, Dir: "out", Started: sessionStart})
	require.NoError(t, err)

	require.NoError(t, l.Write(joints.RegistrySnapshot{Users: []joints.UserSnapshot{trackingUser(3, 0, 1)}}))
	require.NoError(t, l.Write(joints.RegistrySnapshot{
		TimeMs: 33,
		Events: []joints.UserEvent{{UserID: 3, Kind: joints.UserLost}},
	}))
	require.NoError(t, l.Write(joints.RegistrySnapshot{TimeMs: 500, Users: []joints.UserSnapshot{trackingUser(3, 500, 2)}}))
	require.NoError(t, l.Close())

	rows := readCSV(t, fs, filepath.Join("out", JointFileName(3, sessionStart)))
	require.Len(t, rows, 3, "header written once")
	assert.Equal(t, "500", rows[2][0])
}

