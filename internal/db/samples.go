package db

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/har/internal/joints"
	"github.com/banshee-data/har/internal/sink"
	"github.com/banshee-data/har/internal/trajectory"
)

// HandSample is one stored sample of a tracked joint.
type HandSample struct {
	UserID    int                    `json:"user_id"`
	Joint     joints.JointID         `json:"joint"`
	TimeMs    int64                  `json:"time_ms"`
	World     r3.Vec                 `json:"world_mm"`
	Screen    r2.Vec                 `json:"screen_px"`
	SpeedPxS  float64                `json:"speed_px_s"`
	DistanceM float64                `json:"distance_m"`
	Class     trajectory.MotionClass `json:"class"`
}

// ClassTransition records a joint changing motion class.
type ClassTransition struct {
	UserID int                    `json:"user_id"`
	Joint  joints.JointID         `json:"joint"`
	TimeMs int64                  `json:"time_ms"`
	From   trajectory.MotionClass `json:"from"`
	To     trajectory.MotionClass `json:"to"`
}

type jointKey struct {
	user  int
	joint joints.JointID
}

// Recorder writes registry snapshots into one session. It remembers the
// last stored sample and class per joint so repeated snapshots insert
// nothing. Not safe for concurrent use.
type Recorder struct {
	db        *DB
	sessionID string
	now       func() time.Time
	lastMs    map[jointKey]int64
	lastClass map[jointKey]trajectory.MotionClass
}

var _ sink.SnapshotWriter = (*Recorder)(nil)

// NewRecorder records into an existing session.
func NewRecorder(db *DB, sessionID string) *Recorder {
	return &Recorder{
		db:        db,
		sessionID: sessionID,
		now:       time.Now,
		lastMs:    make(map[jointKey]int64),
		lastClass: make(map[jointKey]trajectory.MotionClass),
	}
}

// SessionID returns the session being recorded.
func (r *Recorder) SessionID() string { return r.sessionID }

// Write implements sink.SnapshotWriter.
func (r *Recorder) Write(snap joints.RegistrySnapshot) error {
	return r.RecordSnapshot(snap)
}

// Flush is a no-op; every snapshot commits its own transaction.
func (r *Recorder) Flush() error { return nil }

// Close ends the session.
func (r *Recorder) Close() error {
	return r.db.EndSession(r.sessionID, r.now())
}

// RecordSnapshot inserts every new joint sample in snap and a transition
// row for each class change, in one transaction.
func (r *Recorder) RecordSnapshot(snap joints.RegistrySnapshot) error {
	for _, ev := range snap.Events {
		if ev.Kind != joints.UserLost {
			continue
		}
		for k := range r.lastMs {
			if k.user == ev.UserID {
				delete(r.lastMs, k)
				delete(r.lastClass, k)
			}
		}
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	sampleStmt, err := tx.Prepare(`INSERT OR IGNORE INTO hand_samples (
		session_id, user_id, joint, time_ms, world_x, world_y, world_z,
		screen_x, screen_y, speed_px_s, distance_m, class
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare sample insert: %w", err)
	}
	defer sampleStmt.Close()

	transStmt, err := tx.Prepare(`INSERT INTO class_transitions (
		session_id, user_id, joint, time_ms, from_class, to_class
	) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare transition insert: %w", err)
	}
	defer transStmt.Close()

	type pending struct {
		key   jointKey
		ms    int64
		class trajectory.MotionClass
	}
	var updates []pending

	for _, u := range snap.Users {
		for _, js := range u.Tracking.Joints {
			if !js.HasSample {
				continue
			}
			key := jointKey{user: u.UserID, joint: js.Joint}
			if last, ok := r.lastMs[key]; ok && js.TimeMs <= last {
				continue
			}
			if _, err := sampleStmt.Exec(
				r.sessionID, u.UserID, string(js.Joint), js.TimeMs,
				js.World.X, js.World.Y, js.World.Z,
				js.Screen.X, js.Screen.Y,
				js.Speed, js.DistanceM, string(js.Class),
			); err != nil {
				return fmt.Errorf("insert sample user=%d joint=%s: %w", u.UserID, js.Joint, err)
			}
			if prev, ok := r.lastClass[key]; ok && prev != js.Class {
				if _, err := transStmt.Exec(
					r.sessionID, u.UserID, string(js.Joint), js.TimeMs, string(prev), string(js.Class),
				); err != nil {
					return fmt.Errorf("insert transition user=%d joint=%s: %w", u.UserID, js.Joint, err)
				}
			}
			updates = append(updates, pending{key: key, ms: js.TimeMs, class: js.Class})
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	for _, p := range updates {
		r.lastMs[p.key] = p.ms
		r.lastClass[p.key] = p.class
	}
	return nil
}

// RecentSamples returns up to limit of the newest samples for one user's
// joint, oldest first.
func (db *DB) RecentSamples(sessionID string, userID int, joint joints.JointID, limit int) ([]HandSample, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`
		SELECT user_id, joint, time_ms, world_x, world_y, world_z,
		       screen_x, screen_y, speed_px_s, distance_m, class
		FROM hand_samples
		WHERE session_id = ? AND user_id = ? AND joint = ?
		ORDER BY time_ms DESC
		LIMIT ?`, sessionID, userID, string(joint), limit)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	var out []HandSample
	for rows.Next() {
		var (
			s         HandSample
			jointName string
			className string
		)
		if err := rows.Scan(&s.UserID, &jointName, &s.TimeMs,
			&s.World.X, &s.World.Y, &s.World.Z,
			&s.Screen.X, &s.Screen.Y, &s.SpeedPxS, &s.DistanceM, &className); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		s.Joint = joints.JointID(jointName)
		s.Class = trajectory.MotionClass(className)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// MaxClassGap is the longest interval between consecutive samples that
// ClassDurations attributes to a class. Longer gaps mean the joint was not
// observed, for example while the user was lost, and count towards nothing.
const MaxClassGap = time.Second

// ClassDurations sums, per motion class, the time a user's joint spent in
// that class. Each sample's class holds until the next sample unless that
// sample is more than MaxClassGap later.
func (db *DB) ClassDurations(sessionID string, userID int, joint joints.JointID) (map[trajectory.MotionClass]time.Duration, error) {
	rows, err := db.Query(`
		SELECT class, SUM(next_ms - time_ms)
		FROM (
			SELECT class, time_ms,
			       LEAD(time_ms) OVER (ORDER BY time_ms) AS next_ms
			FROM hand_samples
			WHERE session_id = ? AND user_id = ? AND joint = ?
		)
		WHERE next_ms IS NOT NULL AND next_ms - time_ms <= ?
		GROUP BY class`, sessionID, userID, string(joint), MaxClassGap.Milliseconds())
	if err != nil {
		return nil, fmt.Errorf("query class durations: %w", err)
	}
	defer rows.Close()

	out := make(map[trajectory.MotionClass]time.Duration)
	for rows.Next() {
		var (
			className string
			ms        int64
		)
		if err := rows.Scan(&className, &ms); err != nil {
			return nil, fmt.Errorf("scan class duration: %w", err)
		}
		out[trajectory.MotionClass(className)] = time.Duration(ms) * time.Millisecond
	}
	return out, rows.Err()
}

// Transitions lists class changes for a user's joint in time order.
func (db *DB) Transitions(sessionID string, userID int, joint joints.JointID) ([]ClassTransition, error) {
	rows, err := db.Query(`
		SELECT user_id, joint, time_ms, from_class, to_class
		FROM class_transitions
		WHERE session_id = ? AND user_id = ? AND joint = ?
		ORDER BY time_ms`, sessionID, userID, string(joint))
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	var out []ClassTransition
	for rows.Next() {
		var (
			t                ClassTransition
			jointName        string
			fromName, toName string
		)
		if err := rows.Scan(&t.UserID, &jointName, &t.TimeMs, &fromName, &toName); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		t.Joint = joints.JointID(jointName)
		t.From = trajectory.MotionClass(fromName)
		t.To = trajectory.MotionClass(toName)
		out = append(out, t)
	}
	return out, rows.Err()
}
