// Package testutil provides shared test helpers: HTTP assertions and
// builders for skeleton-bridge frame lines.
package testutil

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// DecodeJSON decodes a recorder body into v and fails the test on error.
func DecodeJSON(t testing.TB, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response body: %v (body %q)", err, rec.Body.String())
	}
}

// JointLine is one joint in a frame line. World coordinates are millimetres.
type JointLine struct {
	Name       string
	X, Y, Z    float64
	Confidence float64
}

// UserLine is one user in a frame line.
type UserLine struct {
	ID     int
	State  string
	CoM    [3]float64
	Joints []JointLine
}

type wireJoint struct {
	P [3]float64 `json:"p"`
	C float64    `json:"c"`
}

type wireUser struct {
	ID     int                  `json:"id"`
	State  string               `json:"state"`
	CoM    [3]float64           `json:"com"`
	Joints map[string]wireJoint `json:"joints,omitempty"`
}

type wireFrame struct {
	TsMs  int64      `json:"ts_ms"`
	Users []wireUser `json:"users"`
}

// FrameLine renders a skeleton-bridge JSON line.
func FrameLine(tsMs int64, users ...UserLine) string {
	f := wireFrame{TsMs: tsMs, Users: []wireUser{}}
	for _, u := range users {
		wu := wireUser{ID: u.ID, State: u.State, CoM: u.CoM}
		if len(u.Joints) > 0 {
			wu.Joints = make(map[string]wireJoint, len(u.Joints))
			for _, j := range u.Joints {
				wu.Joints[j.Name] = wireJoint{P: [3]float64{j.X, j.Y, j.Z}, C: j.Confidence}
			}
		}
		f.Users = append(f.Users, wu)
	}
	b, err := json.Marshal(f)
	if err != nil {
		panic(err)
	}
	return string(b)
}

// HandSweep returns n frame lines for one tracking user whose head sits at
// (0, 0, depth) and whose left hand moves dxMm along X each stepMs.
func HandSweep(n int, stepMs int64, dxMm, depth float64) []string {
	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		lines = append(lines, FrameLine(int64(i)*stepMs, UserLine{
			ID:    1,
			State: "tracking",
			CoM:   [3]float64{0, -200, depth},
			Joints: []JointLine{
				{Name: "head", Z: depth, Confidence: 1},
				{Name: "torso", Y: -300, Z: depth, Confidence: 1},
				{Name: "left_hand", X: 400 + float64(i)*dxMm, Y: -100, Z: depth, Confidence: 0.9},
				{Name: "right_hand", X: -400, Y: -100, Z: depth, Confidence: 0.9},
			},
		}))
	}
	return lines
}

// JoinLines joins frame lines with trailing newlines.
func JoinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
