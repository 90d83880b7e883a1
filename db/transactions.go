package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/thatsimonsguy/grow-controller/internal/model"
)

// StartTransaction starts a new database transaction.
func StartTransaction(db *sql.DB) (*sql.Tx, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	return tx, nil
}

// CommitTransaction commits the given transaction.
func CommitTransaction(tx *sql.Tx) error {
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RollbackTransaction rolls back the given transaction.
func RollbackTransaction(tx *sql.Tx) {
	tx.Rollback()
}

func InsertZoneLog(db *sql.DB, e model.ZoneLog) error {
	_, err := db.Exec(`INSERT INTO zone_log (kind, zone_id, at, msg) VALUES (?, ?, ?, ?)`,
		e.Kind.String(), e.ID, formatTime(e.Time), e.Msg)
	if err != nil {
		return fmt.Errorf("insert zone log: %w", err)
	}
	return nil
}

func InsertSysLog(db *sql.DB, e model.SysLog) error {
	_, err := db.Exec(`INSERT INTO sys_log (at, msg) VALUES (?, ?)`, formatTime(e.Time), e.Msg)
	if err != nil {
		return fmt.Errorf("insert sys log: %w", err)
	}
	return nil
}

func InsertWateringRun(db *sql.DB, run WateringRun) error {
	var moisture *float64
	if run.Moisture.Valid {
		v := float64(run.Moisture.Value)
		moisture = &v
	}
	_, err := db.Exec(`INSERT INTO watering_runs (id, water_id, outcome, tries, moisture, started_at, finished_at, error) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.WaterID, run.Outcome, run.Tries, moisture, formatTime(run.Started), formatTime(run.Finished), run.Err)
	if err != nil {
		return fmt.Errorf("insert watering run %s: %w", run.ID, err)
	}
	return nil
}

func InsertCalibration(db *sql.DB, c Calibration) error {
	_, err := db.Exec(`INSERT INTO calibrations (arm_id, at, x, y) VALUES (?, ?, ?, ?)`,
		c.ArmID, formatTime(c.At), c.Drift.X, c.Drift.Y)
	if err != nil {
		return fmt.Errorf("insert calibration: %w", err)
	}
	return nil
}

// PruneBefore deletes history older than t from every table in one
// transaction and returns the number of rows removed.
func PruneBefore(db *sql.DB, t time.Time) (int64, error) {
	tx, err := StartTransaction(db)
	if err != nil {
		return 0, err
	}

	cutoff := formatTime(t)
	var total int64
	for _, stmt := range []string{
		`DELETE FROM zone_log WHERE at < ?`,
		`DELETE FROM sys_log WHERE at < ?`,
		`DELETE FROM watering_runs WHERE finished_at < ?`,
		`DELETE FROM calibrations WHERE at < ?`,
	} {
		res, err := tx.Exec(stmt, cutoff)
		if err != nil {
			RollbackTransaction(tx)
			return 0, fmt.Errorf("prune history: %w", err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, CommitTransaction(tx)
}
