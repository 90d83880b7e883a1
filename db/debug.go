package db

import (
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/thatsimonsguy/grow-controller/internal/model"
)

func openExisting(dbPath string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return conn, nil
}

func PrintWateringRunsCLI(w io.Writer, dbPath string, n int) error {
	conn, err := openExisting(dbPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	runs, err := RecentWateringRuns(conn, n)
	if err != nil {
		return err
	}
	for _, r := range runs {
		moisture := "-"
		if r.Moisture.Valid {
			moisture = fmt.Sprintf("%.1f", r.Moisture.Value)
		}
		fmt.Fprintf(w, "%s water%d %-24s tries=%d moisture=%s took=%s %s\n",
			r.Started.Format(time.DateTime), r.WaterID, r.Outcome, r.Tries, moisture,
			r.Finished.Sub(r.Started).Round(time.Millisecond), r.Err)
	}
	return nil
}

func PrintSysLogCLI(w io.Writer, dbPath string, n int) error {
	conn, err := openExisting(dbPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	entries, err := RecentSysLog(conn, n)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintln(w, e.String())
	}
	return nil
}

func PrintZoneLogCLI(w io.Writer, dbPath string, kind model.Kind, id uint8, n int) error {
	conn, err := openExisting(dbPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	entries, err := RecentZoneLog(conn, kind, id, n)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintln(w, e.String())
	}
	return nil
}

func PrintCalibrationsCLI(w io.Writer, dbPath string, armID uint8, n int) error {
	conn, err := openExisting(dbPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	cals, err := RecentCalibrations(conn, armID, n)
	if err != nil {
		return err
	}
	for _, c := range cals {
		fmt.Fprintf(w, "%s arm%d drift %s\n", c.At.Format(time.DateTime), c.ArmID, c.Drift)
	}
	return nil
}

func PruneCLI(dbPath string, olderThan time.Duration) (int64, error) {
	conn, err := openExisting(dbPath)
	if err != nil {
		return 0, err
	}
	defer conn.Close()
	return PruneBefore(conn, time.Now().Add(-olderThan))
}
