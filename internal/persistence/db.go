// Package persistence records a session ledger in SQLite and an optional
// compressed event journal. Sessions are never restored from it.
package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/stadium-wave/internal/agents"
	"github.com/talgya/stadium-wave/internal/engine"
	"github.com/talgya/stadium-wave/internal/wave"
)

// DB wraps a SQLite connection for the session ledger.
type DB struct {
	conn    *sqlx.DB
	session string
}

// Open opens or creates a SQLite database at the given path. Rows written
// through the returned DB are tagged with the session ID.
func Open(path, session string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// A single connection keeps ":memory:" databases shared.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn, session: session}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS waves (
		id TEXT PRIMARY KEY,
		session TEXT NOT NULL,
		kind TEXT NOT NULL,
		origin TEXT NOT NULL,
		direction TEXT NOT NULL,
		start_time REAL NOT NULL,
		end_time REAL NOT NULL,
		strength REAL NOT NULL,
		score INTEGER NOT NULL,
		success INTEGER NOT NULL,
		results_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session TEXT NOT NULL,
		tick INTEGER NOT NULL,
		time REAL NOT NULL,
		category TEXT NOT NULL,
		kind TEXT NOT NULL,
		description TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS vendor_stats (
		session TEXT NOT NULL,
		vendor_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		quality INTEGER NOT NULL,
		state TEXT NOT NULL,
		points_earned INTEGER NOT NULL,
		points_banked INTEGER NOT NULL,
		served INTEGER NOT NULL,
		splats INTEGER NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (session, vendor_id)
	);

	CREATE TABLE IF NOT EXISTS session_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_tick ON events(tick);
	CREATE INDEX IF NOT EXISTS idx_waves_session ON waves(session);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveWave writes a finished wave. Saving the same wave twice replaces it.
func (db *DB) SaveWave(w wave.Wave) error {
	results, err := json.Marshal(w.Results)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	success := 0
	if w.Success {
		success = 1
	}
	_, err = db.conn.Exec(`INSERT OR REPLACE INTO waves
		(id, session, kind, origin, direction, start_time, end_time, strength, score, success, results_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, db.session, string(w.Kind), w.Origin, w.Direction.String(),
		w.StartTime, w.EndTime, w.Strength, w.Score, success, string(results),
	)
	return err
}

// SaveEvents appends events to the database.
func (db *DB) SaveEvents(events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT INTO events
		(session, tick, time, category, kind, description)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.Exec(db.session, e.Tick, e.Time, e.Category, e.Kind, e.Description); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// SaveVendorStats upserts one row per vendor.
func (db *DB) SaveVendorStats(vendors []agents.Status) error {
	if len(vendors) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT OR REPLACE INTO vendor_stats
		(session, vendor_id, name, type, quality, state, points_earned, points_banked, served, splats, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, v := range vendors {
		_, err := stmt.Exec(db.session, uint64(v.ID), v.Name, v.Type, v.Quality, v.State.String(),
			v.PointsEarned, v.PointsBanked, v.Served, v.Splats, now)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// SaveMeta stores a key-value pair in session metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO session_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM session_meta WHERE key = ?", key)
	return value, err
}

// SaveSession writes the session summary: vendor stats and meta counters.
func (db *DB) SaveSession(sim *engine.Simulation) error {
	snap := sim.Snapshot()
	slog.Info("saving session ledger", "session", snap.SessionID, "tick", snap.Tick, "score", snap.Score)

	if err := db.SaveVendorStats(snap.Vendors); err != nil {
		return fmt.Errorf("save vendor stats: %w", err)
	}
	meta := map[string]string{
		"session_id": snap.SessionID,
		"last_tick":  fmt.Sprintf("%d", snap.Tick),
		"elapsed":    fmt.Sprintf("%.2f", snap.Elapsed),
		"score":      fmt.Sprintf("%d", snap.Score),
	}
	for k, v := range meta {
		if err := db.SaveMeta(k, v); err != nil {
			return fmt.Errorf("save meta %s: %w", k, err)
		}
	}
	return nil
}

// WaveRecord is a stored wave row.
type WaveRecord struct {
	ID        string  `db:"id" json:"id"`
	Session   string  `db:"session" json:"session"`
	Kind      string  `db:"kind" json:"kind"`
	Origin    string  `db:"origin" json:"origin"`
	Direction string  `db:"direction" json:"direction"`
	StartTime float64 `db:"start_time" json:"start_time"`
	EndTime   float64 `db:"end_time" json:"end_time"`
	Strength  float64 `db:"strength" json:"strength"`
	Score     int     `db:"score" json:"score"`
	Success   bool    `db:"success" json:"success"`
	Results   string  `db:"results_json" json:"-"`
}

// RecentWaves returns the most recent N waves, newest first.
func (db *DB) RecentWaves(limit int) ([]WaveRecord, error) {
	var waves []WaveRecord
	err := db.conn.Select(&waves,
		`SELECT id, session, kind, origin, direction, start_time, end_time, strength, score, success, results_json
		FROM waves ORDER BY rowid DESC LIMIT ?`,
		limit,
	)
	return waves, err
}

// RecentEvents returns the most recent N events, newest first.
func (db *DB) RecentEvents(limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		"SELECT tick, time, category, kind, description FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	return events, err
}
