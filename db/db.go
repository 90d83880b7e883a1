package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/grow-controller/internal/model"
)

// Timestamps are stored as fixed-width UTC text so they compare in order.
const timeLayout = "2006-01-02T15:04:05.000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS zone_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	kind TEXT NOT NULL,
	zone_id INTEGER NOT NULL,
	at TEXT NOT NULL,
	msg TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS zone_log_zone ON zone_log (kind, zone_id, at);
CREATE TABLE IF NOT EXISTS sys_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	at TEXT NOT NULL,
	msg TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS watering_runs (
	id TEXT PRIMARY KEY,
	water_id INTEGER NOT NULL,
	outcome TEXT NOT NULL,
	tries INTEGER NOT NULL,
	moisture REAL,
	started_at TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS calibrations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	arm_id INTEGER NOT NULL,
	at TEXT NOT NULL,
	x INTEGER NOT NULL,
	y INTEGER NOT NULL
);`

type WateringRun struct {
	ID       string
	WaterID  uint8
	Outcome  string
	Tries    int
	Moisture model.Reading
	Started  time.Time
	Finished time.Time
	Err      string
}

type Calibration struct {
	ArmID uint8
	At    time.Time
	Drift model.Position
}

// Open opens the history database at path and makes sure the schema exists.
func Open(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite serializes writers; one connection also keeps :memory: databases shared.
	conn.SetMaxOpenConns(1)
	if err := EnsureSchema(conn); err != nil {
		conn.Close()
		return nil, err
	}
	log.Info().Str("path", path).Msg("History database ready")
	return conn, nil
}

func EnsureSchema(conn *sql.DB) error {
	if _, err := conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t.In(model.Location())
}

// Recorder adapts a connection to the history sink used by the manager.
type Recorder struct {
	DB *sql.DB
}

func (r Recorder) RecordZoneLog(e model.ZoneLog) error     { return InsertZoneLog(r.DB, e) }
func (r Recorder) RecordSysLog(e model.SysLog) error       { return InsertSysLog(r.DB, e) }
func (r Recorder) RecordWateringRun(run WateringRun) error { return InsertWateringRun(r.DB, run) }
func (r Recorder) RecordCalibration(c Calibration) error   { return InsertCalibration(r.DB, c) }
