package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned when a session ID is unknown.
var ErrSessionNotFound = errors.New("session not found")

// Session is one capture run.
type Session struct {
	ID         string     `json:"session_id"`
	Source     string     `json:"source"`
	ConfigJSON string     `json:"config_json"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
}

// StartSession records a new session. source describes where frames come
// from (a serial port or replay path); configJSON is the effective tuning.
func (db *DB) StartSession(source, configJSON string, startedAt time.Time) (Session, error) {
	if configJSON == "" {
		configJSON = "{}"
	}
	s := Session{
		ID:         uuid.NewString(),
		Source:     source,
		ConfigJSON: configJSON,
		StartedAt:  startedAt.UTC(),
	}
	_, err := db.Exec(
		`INSERT INTO sessions (session_id, source, config_json, started_at) VALUES (?, ?, ?, ?)`,
		s.ID, s.Source, s.ConfigJSON, s.StartedAt.UnixMilli(),
	)
	if err != nil {
		return Session{}, fmt.Errorf("insert session: %w", err)
	}
	return s, nil
}

// EndSession stamps the end time of a session.
func (db *DB) EndSession(id string, endedAt time.Time) error {
	res, err := db.Exec(`UPDATE sessions SET ended_at = ? WHERE session_id = ?`, endedAt.UTC().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("end session %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("end session %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

// GetSession loads one session.
func (db *DB) GetSession(id string) (Session, error) {
	row := db.QueryRow(
		`SELECT session_id, source, config_json, started_at, ended_at FROM sessions WHERE session_id = ?`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, err
}

// Sessions lists the most recent sessions first.
func (db *DB) Sessions(limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(
		`SELECT session_id, source, config_json, started_at, ended_at
		 FROM sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var (
		s       Session
		started int64
		ended   sql.NullInt64
	)
	if err := row.Scan(&s.ID, &s.Source, &s.ConfigJSON, &started, &ended); err != nil {
		return Session{}, err
	}
	s.StartedAt = time.UnixMilli(started).UTC()
	if ended.Valid {
		t := time.UnixMilli(ended.Int64).UTC()
		s.EndedAt = &t
	}
	return s, nil
}
