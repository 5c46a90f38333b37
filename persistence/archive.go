// Package persistence archives simulation runs in SQLite: one row per
// run, its telemetry windows and bookmarks, and compressed snapshots.
package persistence

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/pthm-cable/ecosys/telemetry"
)

// Archive wraps a SQLite connection holding archived runs.
type Archive struct {
	conn *sqlx.DB
}

// Open opens or creates an archive at the given path.
func Open(path string) (*Archive, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	a := &Archive{conn: conn}
	if err := a.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return a, nil
}

// Close closes the database connection.
func (a *Archive) Close() error {
	return a.conn.Close()
}

func (a *Archive) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		seed INTEGER NOT NULL,
		dt REAL NOT NULL,
		scenario TEXT NOT NULL,
		config_yaml TEXT NOT NULL,
		final_time REAL
	);

	CREATE TABLE IF NOT EXISTS windows (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		sim_time REAL NOT NULL,
		sheep INTEGER NOT NULL,
		wolves INTEGER NOT NULL,
		births INTEGER NOT NULL,
		deaths INTEGER NOT NULL,
		kills INTEGER NOT NULL,
		food_stock REAL NOT NULL,
		stats_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS bookmarks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		sim_time REAL NOT NULL,
		type TEXT NOT NULL,
		description TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		sim_time REAL NOT NULL,
		bookmark TEXT,
		data BLOB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_windows_run ON windows(run_id, sim_time);
	CREATE INDEX IF NOT EXISTS idx_bookmarks_run ON bookmarks(run_id);
	CREATE INDEX IF NOT EXISTS idx_snapshots_run ON snapshots(run_id, sim_time);
	`
	_, err := a.conn.Exec(schema)
	return err
}

// RunInfo describes a run when it starts.
type RunInfo struct {
	Seed     int64
	DT       float64
	Scenario string // input document path or name
	Config   string // configuration as YAML
}

// Run is an open run. It implements telemetry.Sink and
// telemetry.SnapshotSink.
type Run struct {
	archive *Archive
	ID      string
}

var (
	_ telemetry.Sink         = (*Run)(nil)
	_ telemetry.SnapshotSink = (*Run)(nil)
)

// StartRun records a new run and returns it.
func (a *Archive) StartRun(info RunInfo) (*Run, error) {
	id := uuid.NewString()
	_, err := a.conn.Exec(`INSERT INTO runs (id, started_at, seed, dt, scenario, config_yaml)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, now(), info.Seed, info.DT, info.Scenario, info.Config)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return &Run{archive: a, ID: id}, nil
}

// Finish marks the run finished at the given simulated time.
func (r *Run) Finish(simTime float64) error {
	_, err := r.archive.conn.Exec(`UPDATE runs SET finished_at = ?, final_time = ? WHERE id = ?`,
		now(), simTime, r.ID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", r.ID, err)
	}
	return nil
}

// WriteTelemetry archives a window. The full stats are kept as JSON
// next to the headline columns.
func (r *Run) WriteTelemetry(s telemetry.WindowStats) error {
	statsJSON, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal window: %w", err)
	}
	_, err = r.archive.conn.Exec(`INSERT INTO windows
		(run_id, sim_time, sheep, wolves, births, deaths, kills, food_stock, stats_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, s.WindowEnd, s.Sheep, s.Wolves,
		s.SheepBirths+s.WolfBirths, s.SheepDeaths+s.WolfDeaths, s.Kills,
		s.FoodStock, string(statsJSON),
	)
	if err != nil {
		return fmt.Errorf("insert window at %g: %w", s.WindowEnd, err)
	}
	return nil
}

// WriteBookmark archives a bookmark.
func (r *Run) WriteBookmark(b telemetry.Bookmark) error {
	_, err := r.archive.conn.Exec(`INSERT INTO bookmarks (run_id, sim_time, type, description)
		VALUES (?, ?, ?, ?)`, r.ID, b.Time, string(b.Type), b.Description)
	if err != nil {
		return fmt.Errorf("insert bookmark: %w", err)
	}
	return nil
}

// WriteSnapshot archives a zstd-compressed snapshot.
func (r *Run) WriteSnapshot(s *telemetry.Snapshot) error {
	var buf bytes.Buffer
	if err := telemetry.EncodeSnapshot(&buf, s, true); err != nil {
		return err
	}
	var bookmark *string
	if s.Bookmark != nil {
		t := string(s.Bookmark.Type)
		bookmark = &t
	}
	_, err := r.archive.conn.Exec(`INSERT INTO snapshots (run_id, sim_time, bookmark, data)
		VALUES (?, ?, ?, ?)`, r.ID, s.Time, bookmark, buf.Bytes())
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
