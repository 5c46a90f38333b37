package persistence

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pthm-cable/ecosys/telemetry"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// RunRecord is a stored run.
type RunRecord struct {
	ID         string          `db:"id"`
	StartedAt  string          `db:"started_at"`
	FinishedAt sql.NullString  `db:"finished_at"`
	Seed       int64           `db:"seed"`
	DT         float64         `db:"dt"`
	Scenario   string          `db:"scenario"`
	Config     string          `db:"config_yaml"`
	FinalTime  sql.NullFloat64 `db:"final_time"`
}

// WindowRecord is the headline of a stored telemetry window.
type WindowRecord struct {
	SimTime   float64 `db:"sim_time"`
	Sheep     int     `db:"sheep"`
	Wolves    int     `db:"wolves"`
	Births    int     `db:"births"`
	Deaths    int     `db:"deaths"`
	Kills     int     `db:"kills"`
	FoodStock float64 `db:"food_stock"`
}

// SnapshotRecord describes a stored snapshot without its data.
type SnapshotRecord struct {
	ID       int64          `db:"id"`
	SimTime  float64        `db:"sim_time"`
	Bookmark sql.NullString `db:"bookmark"`
}

// Runs returns every run, oldest first.
func (a *Archive) Runs() ([]RunRecord, error) {
	var runs []RunRecord
	err := a.conn.Select(&runs, `SELECT id, started_at, finished_at, seed, dt, scenario, config_yaml, final_time
		FROM runs ORDER BY started_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	return runs, nil
}

// Run returns one run by ID.
func (a *Archive) Run(id string) (RunRecord, error) {
	var run RunRecord
	err := a.conn.Get(&run, `SELECT id, started_at, finished_at, seed, dt, scenario, config_yaml, final_time
		FROM runs WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return run, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return run, fmt.Errorf("query run %s: %w", id, err)
	}
	return run, nil
}

// Windows returns the windows of a run in time order.
func (a *Archive) Windows(runID string) ([]WindowRecord, error) {
	var windows []WindowRecord
	err := a.conn.Select(&windows, `SELECT sim_time, sheep, wolves, births, deaths, kills, food_stock
		FROM windows WHERE run_id = ? ORDER BY sim_time, id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query windows: %w", err)
	}
	return windows, nil
}

// Bookmarks returns the bookmarks of a run in time order.
func (a *Archive) Bookmarks(runID string) ([]telemetry.Bookmark, error) {
	var rows []struct {
		Type        string  `db:"type"`
		Time        float64 `db:"sim_time"`
		Description string  `db:"description"`
	}
	err := a.conn.Select(&rows, `SELECT type, sim_time, description
		FROM bookmarks WHERE run_id = ? ORDER BY sim_time, id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query bookmarks: %w", err)
	}
	out := make([]telemetry.Bookmark, len(rows))
	for i, r := range rows {
		out[i] = telemetry.Bookmark{Type: telemetry.BookmarkType(r.Type), Time: r.Time, Description: r.Description}
	}
	return out, nil
}

// Snapshots lists the snapshots of a run in time order.
func (a *Archive) Snapshots(runID string) ([]SnapshotRecord, error) {
	var snaps []SnapshotRecord
	err := a.conn.Select(&snaps, `SELECT id, sim_time, bookmark
		FROM snapshots WHERE run_id = ? ORDER BY sim_time, id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	return snaps, nil
}

// LoadSnapshot decodes a stored snapshot.
func (a *Archive) LoadSnapshot(id int64) (*telemetry.Snapshot, error) {
	var data []byte
	err := a.conn.Get(&data, `SELECT data FROM snapshots WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query snapshot %d: %w", id, err)
	}
	return telemetry.DecodeSnapshot(bytes.NewReader(data), true)
}
