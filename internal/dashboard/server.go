package dashboard

import (
	"errors"
	"fmt"
	"html"
	"net/http"
	"time"

	"github.com/banshee-data/har/internal/db"
	"github.com/banshee-data/har/internal/httputil"
	"github.com/banshee-data/har/internal/joints"
	"github.com/banshee-data/har/internal/trajectory"
	"github.com/banshee-data/har/internal/units"
)

// SampleStore is the read side of the session database. *db.DB implements
// it.
type SampleStore interface {
	RecentSamples(sessionID string, userID int, joint joints.JointID, limit int) ([]db.HandSample, error)
	ClassDurations(sessionID string, userID int, joint joints.JointID) (map[trajectory.MotionClass]time.Duration, error)
	Transitions(sessionID string, userID int, joint joints.JointID) ([]db.ClassTransition, error)
	Sessions(limit int) ([]db.Session, error)
}

// Config configures a Server.
type Config struct {
	State *State

	// Store and SessionID enable the database-backed routes. Store may be
	// nil.
	Store     SampleStore
	SessionID string

	ImageWidth    int // default 640
	ImageHeight   int // default 480
	Thresholds    trajectory.Thresholds
	SpeedUnit     string
	PixelsPerInch float64

	// AssetsHost overrides where the echarts javascript is loaded from.
	AssetsHost string

	// PlotsDir enables /plots/, which lists and serves the PNG plots
	// written at the end of a session.
	PlotsDir string
}

// Server renders the dashboard.
type Server struct {
	cfg Config
}

// NewServer creates a Server. A nil cfg.State gets an empty State.
func NewServer(cfg Config) *Server {
	if cfg.State == nil {
		cfg.State = &State{}
	}
	if cfg.ImageWidth <= 0 {
		cfg.ImageWidth = 640
	}
	if cfg.ImageHeight <= 0 {
		cfg.ImageHeight = 480
	}
	if cfg.Thresholds.StationarySpeed <= 0 || cfg.Thresholds.NearTargetDistance <= 0 {
		cfg.Thresholds = trajectory.DefaultThresholds()
	}
	if !units.IsValid(cfg.SpeedUnit) {
		cfg.SpeedUnit = units.PixelsPerSecond
	}
	return &Server{cfg: cfg}
}

// State returns the state the server reads.
func (s *Server) State() *State { return s.cfg.State }

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/state", getOnly(s.handleState))
	mux.HandleFunc("/api/classes", getOnly(s.handleClasses))
	mux.HandleFunc("/api/transitions", getOnly(s.handleTransitions))
	mux.HandleFunc("/api/sessions", getOnly(s.handleSessions))
	mux.HandleFunc("/charts/speeds", getOnly(s.handleSpeedChart))
	mux.HandleFunc("/charts/trajectory", getOnly(s.handleTrajectoryChart))
	mux.HandleFunc("/charts/distance", getOnly(s.handleDistanceChart))
	if s.cfg.PlotsDir != "" {
		mux.HandleFunc("/plots/", getOnly(s.handlePlots))
	}
	return mux
}

// Handler wraps ServeMux with request logging.
func (s *Server) Handler() http.Handler {
	return httputil.LoggingMiddleware(s.ServeMux())
}

func getOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httputil.MethodNotAllowed(w)
			return
		}
		h(w, r)
	}
}

var (
	errNoFrames     = errors.New("no frames received yet")
	errUserNotFound = errors.New("user not found")
	errNotTracked   = errors.New("joint not tracked")
)

// selection is the user and joint a chart request refers to.
type selection struct {
	userID int
	joint  joints.JointID
}

// parseSelection reads ?user= and ?joint=. Missing values default to the
// first user in the latest snapshot and that user's first tracked joint.
func (s *Server) parseSelection(r *http.Request) (selection, error) {
	hasUser := r.URL.Query().Get("user") != ""
	userID, err := httputil.QueryInt(r, "user", 0)
	if err != nil {
		return selection{}, err
	}
	var joint joints.JointID
	if name := httputil.QueryString(r, "joint", ""); name != "" {
		if joint, err = joints.ParseJoint(name); err != nil {
			return selection{}, err
		}
	}
	if hasUser && joint != "" {
		return selection{userID: userID, joint: joint}, nil
	}

	snap, ok := s.cfg.State.Latest()
	if !ok {
		return selection{}, errNoFrames
	}
	if !hasUser {
		if len(snap.Users) == 0 {
			return selection{}, errUserNotFound
		}
		userID = snap.Users[0].UserID
	}
	if joint == "" {
		u, ok := snap.User(userID)
		if !ok || len(u.Tracking.Joints) == 0 {
			return selection{}, errUserNotFound
		}
		joint = u.Tracking.Joints[0].Joint
	}
	return selection{userID: userID, joint: joint}, nil
}

// writeSelectionError maps a parseSelection or lookup error to a status.
func writeSelectionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errNoFrames):
		httputil.ServiceUnavailable(w, err.Error())
	case errors.Is(err, errUserNotFound), errors.Is(err, errNotTracked):
		httputil.NotFound(w, err.Error())
	default:
		httputil.BadRequest(w, err.Error())
	}
}

// jointState finds the selected joint in the latest snapshot.
func (s *Server) jointState(sel selection) (joints.UserSnapshot, joints.JointState, error) {
	snap, ok := s.cfg.State.Latest()
	if !ok {
		return joints.UserSnapshot{}, joints.JointState{}, errNoFrames
	}
	u, ok := snap.User(sel.userID)
	if !ok {
		return joints.UserSnapshot{}, joints.JointState{}, fmt.Errorf("%w: %d", errUserNotFound, sel.userID)
	}
	js, ok := u.Tracking.Joint(sel.joint)
	if !ok {
		return joints.UserSnapshot{}, joints.JointState{}, fmt.Errorf("%w: %s", errNotTracked, sel.joint)
	}
	return u, js, nil
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.cfg.State.Latest()
	if !ok {
		httputil.ServiceUnavailable(w, errNoFrames.Error())
		return
	}
	httputil.WriteJSONOK(w, snap)
}

// JointClass is one row of /api/classes.
type JointClass struct {
	UserID    int                    `json:"user_id"`
	Joint     joints.JointID         `json:"joint"`
	Class     trajectory.MotionClass `json:"class"`
	Speed     float64                `json:"speed"`
	SpeedUnit string                 `json:"speed_unit"`
	DistanceM float64                `json:"distance_m"`
	// WindowPathPx is the screen path covered during the look-back window.
	WindowPathPx float64 `json:"window_path_px"`
	// DurationsS is the session time spent per class in seconds, present
	// when a session store is configured.
	DurationsS map[trajectory.MotionClass]float64 `json:"durations_s,omitempty"`
}

func (s *Server) handleClasses(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.cfg.State.Latest()
	if !ok {
		httputil.ServiceUnavailable(w, errNoFrames.Error())
		return
	}

	out := make([]JointClass, 0)
	for _, u := range snap.Users {
		for _, js := range u.Tracking.Joints {
			if !js.HasSample {
				continue
			}
			jc := JointClass{
				UserID:    u.UserID,
				Joint:     js.Joint,
				Class:     js.Class,
				Speed:     units.ConvertSpeed(js.Speed, s.cfg.SpeedUnit, s.cfg.PixelsPerInch),
				SpeedUnit: s.cfg.SpeedUnit,
				DistanceM: js.DistanceM,

				WindowPathPx: js.WindowPathPx,
			}
			if s.cfg.Store != nil && s.cfg.SessionID != "" {
				durations, err := s.cfg.Store.ClassDurations(s.cfg.SessionID, u.UserID, js.Joint)
				if err != nil {
					httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
					return
				}
				jc.DurationsS = make(map[trajectory.MotionClass]float64, len(durations))
				for class, d := range durations {
					jc.DurationsS[class] = d.Seconds()
				}
			}
			out = append(out, jc)
		}
	}
	httputil.WriteJSONOK(w, out)
}

func (s *Server) handleTransitions(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Store == nil || s.cfg.SessionID == "" {
		httputil.ServiceUnavailable(w, "no session store")
		return
	}
	sel, err := s.parseSelection(r)
	if err != nil {
		writeSelectionError(w, err)
		return
	}
	transitions, err := s.cfg.Store.Transitions(s.cfg.SessionID, sel.userID, sel.joint)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if transitions == nil {
		transitions = []db.ClassTransition{}
	}
	httputil.WriteJSONOK(w, transitions)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Store == nil {
		httputil.ServiceUnavailable(w, "no session store")
		return
	}
	limit, err := httputil.QueryInt(r, "limit", 20)
	if err != nil || limit < 1 {
		httputil.BadRequest(w, "limit must be a positive integer")
		return
	}
	sessions, err := s.cfg.Store.Sessions(limit)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.WriteJSONOK(w, map[string]any{"current": s.cfg.SessionID, "sessions": sessions})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		httputil.NotFound(w, "not found")
		return
	}
	qs := ""
	if sel, err := s.parseSelection(r); err == nil {
		qs = fmt.Sprintf("?user=%d&joint=%s", sel.userID, sel.joint)
	}
	safeQs := html.EscapeString(qs)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprintf(w, indexHTML, safeQs, safeQs, safeQs)
}

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Hand trajectory dashboard</title>
<style>
body { font-family: sans-serif; margin: 1em; }
iframe { border: 1px solid #ccc; width: 100%%; height: 520px; margin-bottom: 1em; }
</style>
</head>
<body>
<h1>Hand trajectory dashboard</h1>
<p><a href="/api/state">state</a> | <a href="/api/classes">classes</a> | <a href="/api/transitions%s">transitions</a> | <a href="/api/sessions">sessions</a> | <a href="/plots/">plots</a> | <a href="/debug/">debug</a></p>
<iframe src="/charts/speeds"></iframe>
<iframe src="/charts/trajectory%s"></iframe>
<iframe src="/charts/distance%s"></iframe>
</body>
</html>
`
