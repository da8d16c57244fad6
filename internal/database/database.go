package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"dirsweep/internal/deltree"
)

// Sweep actions
const (
	ActionDelete = "DELETE"  // Target tree deleted
	ActionSkip   = "SKIP"    // Target missing, stale or rejected by the safety validator
	ActionError  = "ERROR"   // Walk failed part way
	ActionDryRun = "DRY_RUN" // Tree counted but left in place
)

// SweepDB manages the SQLite database for sweep history
type SweepDB struct {
	db *sql.DB
}

// SweepRecord is one target sweep
type SweepRecord struct {
	ID           int64            `json:"id"`
	Timestamp    time.Time        `json:"timestamp"`
	Action       string           `json:"action"`
	Path         string           `json:"path"`
	Options      string           `json:"options"`
	Counters     deltree.Counters `json:"counters"`
	Duration     time.Duration    `json:"duration_ns"`
	ErrorKind    string           `json:"error_kind,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
}

// NewSweepDB opens (creating if needed) the history database at dbPath
func NewSweepDB(dbPath string) (*SweepDB, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	// _loc=auto enables automatic DATETIME parsing
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?_loc=auto")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	// Exec rather than Ping so the file is created now
	if _, err = db.Exec("SELECT 1"); err != nil {
		return nil, fmt.Errorf("failed to initialize database (check permissions on %s): %w", dbPath, err)
	}

	// Multiple readers, one writer
	if _, err = db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if _, err = db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}

	sdb := &SweepDB{db: db}
	if err = sdb.initSchema(); err != nil {
		return nil, err
	}

	return sdb, nil
}

func (d *SweepDB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sweeps (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		action TEXT NOT NULL,
		path TEXT NOT NULL,
		options TEXT NOT NULL DEFAULT 'none',

		directories INTEGER NOT NULL DEFAULT 0,
		files INTEGER NOT NULL DEFAULT 0,
		bytes INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,

		error_kind TEXT,
		error_message TEXT,

		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_timestamp ON sweeps(timestamp);
	CREATE INDEX IF NOT EXISTS idx_action ON sweeps(action);
	CREATE INDEX IF NOT EXISTS idx_path ON sweeps(path);
	CREATE INDEX IF NOT EXISTS idx_bytes ON sweeps(bytes);

	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := d.db.Exec(schema)
	return err
}

// RecordSweep inserts a sweep. A zero Timestamp is recorded as now.
func (d *SweepDB) RecordSweep(r SweepRecord) error {
	if r.Action == "" || r.Path == "" {
		return errors.New("sweep record needs an action and a path")
	}
	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	if r.Options == "" {
		r.Options = "none"
	}

	_, err := d.db.Exec(`
	INSERT INTO sweeps (
		timestamp, action, path, options,
		directories, files, bytes, duration_ms,
		error_kind, error_message
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ts.UTC(),
		r.Action,
		r.Path,
		r.Options,
		r.Counters.Directories,
		r.Counters.Files,
		r.Counters.Bytes,
		r.Duration.Milliseconds(),
		nullString(r.ErrorKind),
		nullString(r.ErrorMessage),
	)
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Ping reports whether the database still answers queries
func (d *SweepDB) Ping() error {
	_, err := d.db.Exec("SELECT 1")
	return err
}

// Close closes the database connection
func (d *SweepDB) Close() error {
	return d.db.Close()
}

// Vacuum optimizes the database (run periodically)
func (d *SweepDB) Vacuum() error {
	_, err := d.db.Exec("VACUUM")
	return err
}

// DatabaseStats describes the history database itself
type DatabaseStats struct {
	TotalRecords      int64     `json:"total_records"`
	DatabaseSizeBytes int64     `json:"database_size_bytes"`
	OldestRecord      time.Time `json:"oldest_record,omitempty"`
	NewestRecord      time.Time `json:"newest_record,omitempty"`
}

// GetDatabaseStats returns database statistics
func (d *SweepDB) GetDatabaseStats() (*DatabaseStats, error) {
	stats := &DatabaseStats{}

	if err := d.db.QueryRow("SELECT COUNT(*) FROM sweeps").Scan(&stats.TotalRecords); err != nil {
		return nil, err
	}

	var pageCount, pageSize int64
	if err := d.db.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return nil, err
	}
	if err := d.db.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return nil, err
	}
	stats.DatabaseSizeBytes = pageCount * pageSize

	// MIN/MAX lose the column type, so the driver hands back strings
	var oldest, newest sql.NullString
	err := d.db.QueryRow("SELECT MIN(timestamp), MAX(timestamp) FROM sweeps").Scan(&oldest, &newest)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if t, ok := parseTimestamp(oldest); ok {
		stats.OldestRecord = t
	}
	if t, ok := parseTimestamp(newest); ok {
		stats.NewestRecord = t
	}

	return stats, nil
}

// Layouts the sqlite3 driver may have stored a time.Time in
var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
}

func parseTimestamp(s sql.NullString) (time.Time, bool) {
	if !s.Valid || s.String == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s.String); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
