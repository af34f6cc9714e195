package csvlog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"time"

	"github.com/banshee-data/har/internal/fsutil"
	"github.com/banshee-data/har/internal/joints"
	"github.com/banshee-data/har/internal/monitoring"
	"github.com/banshee-data/har/internal/sink"
	"github.com/banshee-data/har/internal/units"
)

// Config controls where and how CSV files are written.
type Config struct {
	// FS is the filesystem to write through; nil uses the OS.
	FS fsutil.FileSystem
	// Dir receives one file per user and tracked joint.
	Dir string
	// Started stamps every file name of the session.
	Started time.Time
	// ConfidenceThreshold gates joint-position cells.
	ConfidenceThreshold float64
	// SpeedUnit is one of units.ValidUnits; invalid values fall back to px/s.
	SpeedUnit string
	// PixelsPerInch converts screen speeds for in/s and mps.
	PixelsPerInch float64
}

type file struct {
	wc io.WriteCloser
	w  *csv.Writer
}

func (f *file) write(row []string) error {
	return f.w.Write(row)
}

func (f *file) flush() error {
	f.w.Flush()
	return f.w.Error()
}

func (f *file) close() error {
	ferr := f.flush()
	cerr := f.wc.Close()
	return errors.Join(ferr, cerr)
}

var _ sink.SnapshotWriter = (*Logger)(nil)

type userFiles struct {
	joint      *file
	trajectory map[joints.JointID]*file
	lastMs     map[joints.JointID]int64
}

// Logger appends rows for every snapshot it is given. It is not safe for
// concurrent use; a sink.AsyncWriter owns one on its worker goroutine.
type Logger struct {
	cfg   Config
	users map[int]*userFiles
	rows  int
}

// NewLogger creates cfg.Dir if needed.
func NewLogger(cfg Config) (*Logger, error) {
	if cfg.FS == nil {
		cfg.FS = fsutil.OSFileSystem{}
	}
	if cfg.Started.IsZero() {
		cfg.Started = time.Now()
	}
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = joints.DefaultConfidenceThreshold
	}
	if !units.IsValid(cfg.SpeedUnit) {
		cfg.SpeedUnit = units.PixelsPerSecond
	}
	if err := cfg.FS.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create csv dir %s: %w", cfg.Dir, err)
	}
	return &Logger{cfg: cfg, users: make(map[int]*userFiles)}, nil
}

// Rows returns the number of rows written so far, headers excluded.
func (l *Logger) Rows() int { return l.rows }

func (l *Logger) open(name string, header []string) (*file, error) {
	path := filepath.Join(l.cfg.Dir, name)
	// A user that returns within a session continues its earlier file.
	existed := l.cfg.FS.Exists(path)
	wc, err := l.cfg.FS.Append(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	f := &file{wc: wc, w: csv.NewWriter(wc)}
	if existed {
		return f, nil
	}
	if err := f.write(header); err != nil {
		wc.Close()
		return nil, fmt.Errorf("write header %s: %w", path, err)
	}
	monitoring.Logf("[csvlog] opened %s", path)
	return f, nil
}

func (l *Logger) filesFor(userID int) *userFiles {
	uf, ok := l.users[userID]
	if !ok {
		uf = &userFiles{
			trajectory: make(map[joints.JointID]*file),
			lastMs:     make(map[joints.JointID]int64),
		}
		l.users[userID] = uf
	}
	return uf
}

// Write appends one joint-position row per tracking user and one trajectory
// row per joint that stored a new sample since the previous call. Files of
// users reported lost are closed.
func (l *Logger) Write(snap joints.RegistrySnapshot) error {
	var errs []error
	for _, ev := range snap.Events {
		if ev.Kind == joints.UserLost {
			errs = append(errs, l.closeUser(ev.UserID))
		}
	}

	for _, u := range snap.Users {
		if u.State != joints.StateTracking || u.Observations == nil {
			continue
		}
		uf := l.filesFor(u.UserID)

		if uf.joint == nil {
			f, err := l.open(JointFileName(u.UserID, l.cfg.Started), JointHeader())
			if err != nil {
				errs = append(errs, err)
				continue
			}
			uf.joint = f
		}
		if err := uf.joint.write(JointRow(snap.TimeMs, u.Observations, l.cfg.ConfidenceThreshold)); err != nil {
			errs = append(errs, err)
		} else {
			l.rows++
		}

		for _, js := range u.Tracking.Joints {
			if !js.HasSample {
				continue
			}
			if last, ok := uf.lastMs[js.Joint]; ok && js.TimeMs <= last {
				continue
			}
			f, ok := uf.trajectory[js.Joint]
			if !ok {
				var err error
				f, err = l.open(TrajectoryFileName(u.UserID, js.Joint, l.cfg.Started), TrajectoryHeader(l.cfg.SpeedUnit))
				if err != nil {
					errs = append(errs, err)
					continue
				}
				uf.trajectory[js.Joint] = f
			}
			if err := f.write(TrajectoryRow(js, l.cfg.SpeedUnit, l.cfg.PixelsPerInch)); err != nil {
				errs = append(errs, err)
				continue
			}
			uf.lastMs[js.Joint] = js.TimeMs
			l.rows++
		}
	}
	return errors.Join(errs...)
}

// Flush pushes buffered rows of every open file.
func (l *Logger) Flush() error {
	var errs []error
	for _, id := range l.userIDs() {
		uf := l.users[id]
		if uf.joint != nil {
			errs = append(errs, uf.joint.flush())
		}
		for _, f := range uf.trajectory {
			errs = append(errs, f.flush())
		}
	}
	return errors.Join(errs...)
}

// Close flushes and closes every file.
func (l *Logger) Close() error {
	var errs []error
	for _, id := range l.userIDs() {
		errs = append(errs, l.closeUser(id))
	}
	return errors.Join(errs...)
}

func (l *Logger) closeUser(userID int) error {
	uf, ok := l.users[userID]
	if !ok {
		return nil
	}
	delete(l.users, userID)

	var errs []error
	if uf.joint != nil {
		errs = append(errs, uf.joint.close())
	}
	for _, f := range uf.trajectory {
		errs = append(errs, f.close())
	}
	return errors.Join(errs...)
}

func (l *Logger) userIDs() []int {
	ids := make([]int, 0, len(l.users))
	for id := range l.users {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
