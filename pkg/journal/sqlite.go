package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteJournal persists probe and event history across container
// restarts. It lives in the log directory so a volume mount covers it.
type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLiteJournal opens (or creates) the journal database.
// WAL mode and a single writer keep concurrent probe/event appends from
// tripping over SQLITE_BUSY.
func NewSQLiteJournal(dbPath string) (*SQLiteJournal, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=10000&_synchronous=NORMAL", dbPath)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	j := &SQLiteJournal{db: db}
	if err := j.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize journal schema: %w", err)
	}

	return j, nil
}

func (j *SQLiteJournal) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS probes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		ok BOOLEAN NOT NULL,
		duration_ns INTEGER NOT NULL,
		status TEXT NOT NULL,
		failures INTEGER NOT NULL,
		error TEXT
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		kind TEXT NOT NULL,
		message TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_probes_timestamp ON probes(timestamp);
	CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
	`

	_, err := j.db.Exec(schema)
	return err
}

// AppendProbe records a probe attempt
func (j *SQLiteJournal) AppendProbe(rec ProbeRecord) error {
	_, err := j.db.Exec(
		`INSERT INTO probes (timestamp, ok, duration_ns, status, failures, error)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Timestamp, rec.OK, int64(rec.Duration), rec.Status, rec.Failures, rec.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to append probe: %w", err)
	}
	return nil
}

// AppendEvent records an operational event
func (j *SQLiteJournal) AppendEvent(ev Event) error {
	_, err := j.db.Exec(
		`INSERT INTO events (timestamp, kind, message) VALUES (?, ?, ?)`,
		ev.Timestamp, ev.Kind, ev.Message,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// RecentProbes returns up to limit probes, newest first
func (j *SQLiteJournal) RecentProbes(limit int) ([]ProbeRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := j.db.Query(
		`SELECT timestamp, ok, duration_ns, status, failures, error
		 FROM probes ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query probes: %w", err)
	}
	defer rows.Close()

	var out []ProbeRecord
	for rows.Next() {
		var rec ProbeRecord
		var durationNS int64
		var errMsg sql.NullString
		if err := rows.Scan(&rec.Timestamp, &rec.OK, &durationNS, &rec.Status, &rec.Failures, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan probe: %w", err)
		}
		rec.Duration = time.Duration(durationNS)
		rec.Error = errMsg.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RecentEvents returns up to limit events, newest first
func (j *SQLiteJournal) RecentEvents(limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := j.db.Query(
		`SELECT timestamp, kind, message FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.Timestamp, &ev.Kind, &ev.Message); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Close closes the database
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
