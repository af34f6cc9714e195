package sensor

import (
	"encoding/json"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/har/internal/joints"
)

// ErrMalformedFrame is returned for lines that are not valid frames.
var ErrMalformedFrame = errors.New("malformed frame")

// Frame is one decoded bridge line.
type Frame struct {
	TimeMs int64
	Users  []UserData
}

// UserData is one user within a frame.
type UserData struct {
	ID           int
	State        joints.UserState
	CenterOfMass r3.Vec
	Joints       map[joints.JointID]joints.Observation
}

type wireJoint struct {
	P []float64 `json:"p"`
	C float64   `json:"c"`
}

type wireUser struct {
	ID     int                  `json:"id"`
	State  string               `json:"state"`
	CoM    []float64            `json:"com"`
	Joints map[string]wireJoint `json:"joints"`
}

type wireFrame struct {
	TsMs  *int64     `json:"ts_ms"`
	Users []wireUser `json:"users"`
}

// ParseFrame decodes one bridge line. Screen positions are filled in with
// proj. A joint without a position is treated as not reported; an unknown
// joint name is an error wrapping joints.ErrUnknownJoint.
func ParseFrame(line []byte, proj Projector) (Frame, error) {
	var wf wireFrame
	if err := json.Unmarshal(line, &wf); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if wf.TsMs == nil {
		return Frame{}, fmt.Errorf("%w: missing ts_ms", ErrMalformedFrame)
	}

	f := Frame{TimeMs: *wf.TsMs, Users: make([]UserData, 0, len(wf.Users))}
	for _, wu := range wf.Users {
		u := UserData{
			ID:     wu.ID,
			State:  joints.ParseUserState(wu.State),
			Joints: make(map[joints.JointID]joints.Observation, len(wu.Joints)),
		}
		if len(wu.CoM) == 3 {
			u.CenterOfMass = r3.Vec{X: wu.CoM[0], Y: wu.CoM[1], Z: wu.CoM[2]}
		}
		for name, wj := range wu.Joints {
			id, err := joints.ParseJoint(name)
			if err != nil {
				return Frame{}, fmt.Errorf("user %d: %w", wu.ID, err)
			}
			if len(wj.P) != 3 {
				continue
			}
			if wj.C < 0 || wj.C > 1 {
				return Frame{}, fmt.Errorf("%w: user %d joint %s confidence %v out of range",
					ErrMalformedFrame, wu.ID, name, wj.C)
			}
			world := r3.Vec{X: wj.P[0], Y: wj.P[1], Z: wj.P[2]}
			u.Joints[id] = joints.Observation{
				World:      world,
				Screen:     proj.ToScreen(world),
				Confidence: wj.C,
			}
		}
		f.Users = append(f.Users, u)
	}
	return f, nil
}

// UserFrames converts the frame into Registry input. Users that are not
// tracking carry no skeleton.
func (f Frame) UserFrames(proj Projector) []joints.UserFrame {
	out := make([]joints.UserFrame, 0, len(f.Users))
	for _, u := range f.Users {
		uf := joints.UserFrame{
			ID:           u.ID,
			State:        u.State,
			CenterOfMass: u.CenterOfMass,
		}
		if u.State == joints.StateTracking {
			uf.Skeleton = &UserSkeleton{joints: u.Joints, proj: proj}
		}
		out = append(out, uf)
	}
	return out
}

// UserSkeleton implements joints.Skeleton over one user's decoded joints.
type UserSkeleton struct {
	joints map[joints.JointID]joints.Observation
	proj   Projector
}

// NewUserSkeleton wraps a joint map.
func NewUserSkeleton(obs map[joints.JointID]joints.Observation, proj Projector) *UserSkeleton {
	return &UserSkeleton{joints: obs, proj: proj}
}

// Joint returns the observation for id.
func (s *UserSkeleton) Joint(id joints.JointID) (joints.Observation, bool) {
	o, ok := s.joints[id]
	return o, ok
}

// ProjectToScreen projects with the frame's Projector.
func (s *UserSkeleton) ProjectToScreen(w r3.Vec) r2.Vec {
	return s.proj.ToScreen(w)
}
