package joints

import (
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/har/internal/monitoring"
)

// UserState is the sensor's per-user skeleton status.
type UserState string

const (
	StateTracking       UserState = "tracking"
	StateCalibrating    UserState = "calibrating"
	StateLookingForPose UserState = "looking_for_pose"
)

// Label is the text shown next to a user.
func (s UserState) Label() string {
	switch s {
	case StateTracking:
		return "Tracking"
	case StateCalibrating:
		return "Calibrating..."
	default:
		return "Looking for pose"
	}
}

// ParseUserState maps a wire state name to a UserState. Unknown names are
// treated as looking for pose.
func ParseUserState(s string) UserState {
	switch UserState(s) {
	case StateTracking, StateCalibrating:
		return UserState(s)
	default:
		return StateLookingForPose
	}
}

// UserFrame is one user's contribution to a sensor frame. Skeleton is nil
// when the sensor has no skeleton for the user yet.
type UserFrame struct {
	ID           int
	State        UserState
	CenterOfMass r3.Vec // millimetres
	Skeleton     Skeleton
}

// UserSnapshot is the published state of one user.
type UserSnapshot struct {
	UserID int       `json:"user_id"`
	State  UserState `json:"state"`
	Label  string    `json:"label"`
	// CoMDistanceM is the centre of mass depth in metres.
	CoMDistanceM float64 `json:"com_distance_m"`
	// TargetDistancesM maps a joint to its straight-line distance from the
	// target joint in metres. Only confident pairs are present.
	TargetDistancesM map[JointID]float64 `json:"target_distances_m,omitempty"`
	// Observations holds every joint the sensor reported this frame,
	// confident or not, for the joint-position log and skeleton drawing.
	Observations map[JointID]Observation `json:"observations,omitempty"`
	Tracking     Snapshot                `json:"tracking"`
}

// RegistrySnapshot is the published state of every user after one frame.
type RegistrySnapshot struct {
	TimeMs int64          `json:"time_ms"`
	Users  []UserSnapshot `json:"users"`
	Events []UserEvent    `json:"events,omitempty"`
}

// User returns the snapshot for id.
func (r RegistrySnapshot) User(id int) (UserSnapshot, bool) {
	for _, u := range r.Users {
		if u.UserID == id {
			return u, true
		}
	}
	return UserSnapshot{}, false
}

// UserEventKind distinguishes user lifecycle events.
type UserEventKind string

const (
	UserNew  UserEventKind = "new_user"
	UserLost UserEventKind = "lost_user"
)

// UserEvent records a user appearing or disappearing between frames.
type UserEvent struct {
	UserID int           `json:"user_id"`
	Kind   UserEventKind `json:"kind"`
}

// DefaultMaxUsers matches the number of users the sensor middleware tracks.
const DefaultMaxUsers = 15

// Registry keeps one Tracker per user. Apply must be called from a single
// goroutine.
type Registry struct {
	config   TrackerConfig
	maxUsers int
	trackers map[int]*Tracker
}

// NewRegistry creates an empty Registry whose trackers share cfg. At most
// maxUsers users are tracked at once; extra users are ignored until a slot
// frees up. maxUsers < 1 selects DefaultMaxUsers.
func NewRegistry(cfg TrackerConfig, maxUsers int) *Registry {
	if maxUsers < 1 {
		maxUsers = DefaultMaxUsers
	}
	return &Registry{
		config:   cfg.withDefaults(),
		maxUsers: maxUsers,
		trackers: make(map[int]*Tracker),
	}
}

// Tracker returns the tracker for a user.
func (r *Registry) Tracker(userID int) (*Tracker, bool) {
	t, ok := r.trackers[userID]
	return t, ok
}

// Users returns the known user IDs in ascending order.
func (r *Registry) Users() []int {
	ids := make([]int, 0, len(r.trackers))
	for id := range r.trackers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Apply processes one sensor frame: it creates trackers for new users, drops
// users that are no longer reported, and updates every remaining tracker.
func (r *Registry) Apply(users []UserFrame, nowMs int64) RegistrySnapshot {
	snap := RegistrySnapshot{TimeMs: nowMs}

	seen := make(map[int]bool, len(users))
	for _, u := range users {
		seen[u.ID] = true
	}
	for _, id := range r.Users() {
		if !seen[id] {
			delete(r.trackers, id)
			snap.Events = append(snap.Events, UserEvent{UserID: id, Kind: UserLost})
			monitoring.Logf("[tracker] lost user %d", id)
		}
	}

	sorted := make([]UserFrame, len(users))
	copy(sorted, users)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for _, u := range sorted {
		t, ok := r.trackers[u.ID]
		if !ok {
			if len(r.trackers) >= r.maxUsers {
				monitoring.Debugf("[tracker] ignoring user %d: %d users already tracked", u.ID, len(r.trackers))
				continue
			}
			t = NewTracker(r.config)
			r.trackers[u.ID] = t
			snap.Events = append(snap.Events, UserEvent{UserID: u.ID, Kind: UserNew})
			monitoring.Logf("[tracker] new user %d", u.ID)
		}

		state := u.State
		if state == "" {
			state = StateLookingForPose
		}
		if state == StateTracking && u.Skeleton != nil {
			t.Update(u.Skeleton, nowMs)
		}

		us := UserSnapshot{
			UserID:       u.ID,
			State:        state,
			Label:        state.Label(),
			CoMDistanceM: u.CenterOfMass.Z * 0.001,
			Tracking:     t.Snapshot(),
		}
		if state == StateTracking && u.Skeleton != nil {
			us.TargetDistancesM = r.targetDistances(u.Skeleton)
			us.Observations = observationsOf(u.Skeleton)
		}
		snap.Users = append(snap.Users, us)
	}
	return snap
}

func (r *Registry) targetDistances(sk Skeleton) map[JointID]float64 {
	ref, ok := sk.Joint(r.config.TargetJoint)
	if !ok || !ref.Confident(r.config.ConfidenceThreshold) {
		return nil
	}
	out := make(map[JointID]float64, len(r.config.Joints))
	for _, id := range r.config.Joints {
		obs, ok := sk.Joint(id)
		if !ok || !obs.Confident(r.config.ConfidenceThreshold) {
			continue
		}
		out[id] = r3.Norm(r3.Sub(obs.World, ref.World)) * 0.001
	}
	return out
}

func observationsOf(sk Skeleton) map[JointID]Observation {
	out := make(map[JointID]Observation, len(AllJoints))
	for _, id := range AllJoints {
		if obs, ok := sk.Joint(id); ok {
			out[id] = obs
		}
	}
	return out
}
