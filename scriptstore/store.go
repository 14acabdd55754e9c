// Package scriptstore persists autopilot script sources and flight-run
// records in SQLite. Only script text is stored; compiled programs are
// never persisted.
package scriptstore

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ErrScriptNotFound indicates the requested script doesn't exist.
var ErrScriptNotFound = errors.New("script not found")

// Store is the SQLite-backed script library.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens or creates the script library at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS scripts (
		name TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating scripts table: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS flights (
		id TEXT PRIMARY KEY,
		script TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		ended_at TIMESTAMP NOT NULL,
		outcome TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating flights table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save stores a script source under name, replacing any previous version.
func (s *Store) Save(name, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO scripts (name, source, updated_at) VALUES (?, ?, ?)",
		name, source, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving script %q: %w", name, err)
	}
	return nil
}

// Load returns the source of the named script.
func (s *Store) Load(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var source string
	err := s.db.QueryRow("SELECT source FROM scripts WHERE name = ?", name).Scan(&source)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrScriptNotFound
		}
		return "", fmt.Errorf("querying script %q: %w", name, err)
	}
	return source, nil
}

// List returns all stored script names, sorted.
func (s *Store) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query("SELECT name FROM scripts ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing scripts: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning script name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Delete removes the named script.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM scripts WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("deleting script %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrScriptNotFound
	}
	return nil
}

// FlightRecord is one completed script run.
type FlightRecord struct {
	ID        string
	Script    string
	StartedAt time.Time
	EndedAt   time.Time
	Outcome   string
}

// RecordFlight appends a flight record.
func (s *Store) RecordFlight(rec FlightRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"INSERT INTO flights (id, script, started_at, ended_at, outcome) VALUES (?, ?, ?, ?, ?)",
		rec.ID, rec.Script, rec.StartedAt.UTC(), rec.EndedAt.UTC(), rec.Outcome,
	)
	if err != nil {
		return fmt.Errorf("recording flight %q: %w", rec.ID, err)
	}
	return nil
}

// Flights returns the recorded runs of the named script, newest first.
func (s *Store) Flights(script string) ([]FlightRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		"SELECT id, script, started_at, ended_at, outcome FROM flights WHERE script = ? ORDER BY started_at DESC",
		script,
	)
	if err != nil {
		return nil, fmt.Errorf("listing flights for %q: %w", script, err)
	}
	defer rows.Close()

	var recs []FlightRecord
	for rows.Next() {
		var rec FlightRecord
		if err := rows.Scan(&rec.ID, &rec.Script, &rec.StartedAt, &rec.EndedAt, &rec.Outcome); err != nil {
			return nil, fmt.Errorf("scanning flight record: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
