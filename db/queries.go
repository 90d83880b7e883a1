package db

import (
	"database/sql"
	"fmt"

	"github.com/thatsimonsguy/grow-controller/internal/model"
)

// RecentWateringRuns returns the last n watering runs, newest first.
func RecentWateringRuns(db *sql.DB, n int) ([]WateringRun, error) {
	rows, err := db.Query(`SELECT id, water_id, outcome, tries, moisture, started_at, finished_at, error
		FROM watering_runs ORDER BY started_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query watering runs: %w", err)
	}
	defer rows.Close()

	var runs []WateringRun
	for rows.Next() {
		var run WateringRun
		var moisture sql.NullFloat64
		var started, finished string
		if err := rows.Scan(&run.ID, &run.WaterID, &run.Outcome, &run.Tries, &moisture, &started, &finished, &run.Err); err != nil {
			return nil, fmt.Errorf("failed to scan watering run: %w", err)
		}
		run.Moisture = model.MissingReading(run.WaterID)
		if moisture.Valid {
			run.Moisture = model.ValidReading(run.WaterID, float32(moisture.Float64))
		}
		run.Started = parseTime(started)
		run.Finished = parseTime(finished)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RecentSysLog returns the last n system log entries, newest first.
func RecentSysLog(db *sql.DB, n int) ([]model.SysLog, error) {
	rows, err := db.Query(`SELECT at, msg FROM sys_log ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query sys log: %w", err)
	}
	defer rows.Close()

	var out []model.SysLog
	for rows.Next() {
		var at string
		var e model.SysLog
		if err := rows.Scan(&at, &e.Msg); err != nil {
			return nil, fmt.Errorf("failed to scan sys log: %w", err)
		}
		e.Time = parseTime(at)
		out = append(out, e)
	}
	return out, rows.Err()
}

// RecentZoneLog returns the last n log entries of one zone, newest first.
func RecentZoneLog(db *sql.DB, kind model.Kind, id uint8, n int) ([]model.ZoneLog, error) {
	rows, err := db.Query(`SELECT at, msg FROM zone_log WHERE kind = ? AND zone_id = ? ORDER BY id DESC LIMIT ?`,
		kind.String(), id, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query zone log for %s %d: %w", kind, id, err)
	}
	defer rows.Close()

	var out []model.ZoneLog
	for rows.Next() {
		var at string
		e := model.ZoneLog{Kind: kind, ID: id}
		if err := rows.Scan(&at, &e.Msg); err != nil {
			return nil, fmt.Errorf("failed to scan zone log: %w", err)
		}
		e.Time = parseTime(at)
		out = append(out, e)
	}
	return out, rows.Err()
}

func RecentCalibrations(db *sql.DB, armID uint8, n int) ([]Calibration, error) {
	rows, err := db.Query(`SELECT at, x, y FROM calibrations WHERE arm_id = ? ORDER BY id DESC LIMIT ?`, armID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query calibrations: %w", err)
	}
	defer rows.Close()

	var out []Calibration
	for rows.Next() {
		var at string
		c := Calibration{ArmID: armID}
		if err := rows.Scan(&at, &c.Drift.X, &c.Drift.Y); err != nil {
			return nil, fmt.Errorf("failed to scan calibration: %w", err)
		}
		c.At = parseTime(at)
		out = append(out, c)
	}
	return out, rows.Err()
}
