// Package joints orchestrates per-joint trajectory histories for tracked
// users.
//
// Responsibilities: joint naming, the minimal skeleton capability the
// trackers consume, confidence gating, target updates and immutable
// snapshots for consumers running off the frame loop.
// Key types: JointID, Skeleton, Tracker, Registry, Snapshot.
//
// Dependency rule: this package knows nothing about wire formats, files or
// drawing APIs. Sources adapt to Skeleton; sinks read Snapshots.
package joints

import (
	"errors"
	"fmt"
)

// JointID names a tracked anatomical landmark.
type JointID string

const (
	Head          JointID = "head"
	Neck          JointID = "neck"
	Torso         JointID = "torso"
	LeftShoulder  JointID = "left_shoulder"
	LeftElbow     JointID = "left_elbow"
	LeftHand      JointID = "left_hand"
	RightShoulder JointID = "right_shoulder"
	RightElbow    JointID = "right_elbow"
	RightHand     JointID = "right_hand"
	LeftHip       JointID = "left_hip"
	LeftKnee      JointID = "left_knee"
	LeftFoot      JointID = "left_foot"
	RightHip      JointID = "right_hip"
	RightKnee     JointID = "right_knee"
	RightFoot     JointID = "right_foot"
)

// ErrUnknownJoint is returned when a joint name is not recognised.
var ErrUnknownJoint = errors.New("unknown joint")

// AllJoints lists every joint the skeleton reports.
var AllJoints = []JointID{
	Head, Neck, Torso,
	LeftShoulder, LeftElbow, LeftHand,
	RightShoulder, RightElbow, RightHand,
	LeftHip, LeftKnee, LeftFoot,
	RightHip, RightKnee, RightFoot,
}

var labels = map[JointID]string{
	Head:          "head",
	Neck:          "neck",
	Torso:         "torso",
	LeftShoulder:  "left shoulder",
	LeftElbow:     "left elbow",
	LeftHand:      "left hand",
	RightShoulder: "right shoulder",
	RightElbow:    "right elbow",
	RightHand:     "right hand",
	LeftHip:       "left hip",
	LeftKnee:      "left knee",
	LeftFoot:      "left foot",
	RightHip:      "right hip",
	RightKnee:     "right knee",
	RightFoot:     "right foot",
}

// Label returns a human-readable name, e.g. "left hand".
func (j JointID) Label() string {
	if l, ok := labels[j]; ok {
		return l
	}
	return "joint"
}

// Valid reports whether j is a known joint.
func (j JointID) Valid() bool {
	_, ok := labels[j]
	return ok
}

// ParseJoint validates a joint name.
func ParseJoint(name string) (JointID, error) {
	j := JointID(name)
	if !j.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownJoint, name)
	}
	return j, nil
}

// Limb is a pair of joints drawn as a bone.
type Limb struct {
	From, To JointID
}

// Limbs is the skeleton drawn by overlays.
var Limbs = []Limb{
	{Head, Neck},

	{Neck, LeftShoulder},
	{LeftShoulder, LeftElbow},
	{LeftElbow, LeftHand},

	{Neck, RightShoulder},
	{RightShoulder, RightElbow},
	{RightElbow, RightHand},

	{LeftShoulder, Torso},
	{RightShoulder, Torso},

	{Torso, LeftHip},
	{LeftHip, LeftKnee},
	{LeftKnee, LeftFoot},

	{Torso, RightHip},
	{RightHip, RightKnee},
	{RightKnee, RightFoot},

	{LeftHip, RightHip},
}

// CSVOrder is the column order of the joint-position log. Neck and left hip
// appear twice; downstream analysis scripts index columns by position.
var CSVOrder = []JointID{
	Head,
	Neck, LeftShoulder, LeftElbow, Neck,
	RightShoulder, RightElbow,
	Torso, LeftHip, LeftKnee, RightHip, LeftFoot,
	RightKnee, LeftHip, RightFoot, RightHand, LeftHand,
}
