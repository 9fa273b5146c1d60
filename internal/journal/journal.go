// Package journal persists an audit trail of every command the
// controller submitted: what was injected, when, and how it ended. A
// test oracle that drives an opaque target needs a record of its own
// actions when a run goes wrong.
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS submissions (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    submitted_ns INTEGER NOT NULL,
    kind         TEXT    NOT NULL,
    target_x     INTEGER NOT NULL,
    target_y     INTEGER NOT NULL,
    key_code     INTEGER NOT NULL,
    outcome      TEXT    NOT NULL,
    duration_ms  INTEGER NOT NULL,
    cursor_x     INTEGER NOT NULL,
    cursor_y     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_submissions_time ON submissions(submitted_ns);
`

// Outcome values.
const (
	OutcomeDone        = "done"
	OutcomeTimeout     = "timeout"
	OutcomeNotAttached = "not-attached"
	OutcomeError       = "error"
)

// Entry is one journaled submission.
type Entry struct {
	ID          int64
	SubmittedAt time.Time
	Kind        string
	TargetX     int
	TargetY     int
	KeyCode     int
	Outcome     string
	Duration    time.Duration
	CursorX     int
	CursorY     int
}

// Journal is the SQLite-backed submission journal.
type Journal struct {
	db *sql.DB
}

// Open opens or creates the journal database at path.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=2000")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the database.
func (j *Journal) Close() error { return j.db.Close() }

// Record appends one submission.
func (j *Journal) Record(e Entry) error {
	if e.SubmittedAt.IsZero() {
		e.SubmittedAt = time.Now()
	}
	_, err := j.db.Exec(`
		INSERT INTO submissions
		(submitted_ns, kind, target_x, target_y, key_code, outcome, duration_ms, cursor_x, cursor_y)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SubmittedAt.UnixNano(), e.Kind, e.TargetX, e.TargetY, e.KeyCode,
		e.Outcome, e.Duration.Milliseconds(), e.CursorX, e.CursorY)
	if err != nil {
		return fmt.Errorf("record submission: %w", err)
	}
	return nil
}

// List returns the most recent submissions, newest first. limit <= 0
// means no limit.
func (j *Journal) List(limit int) ([]Entry, error) {
	q := `SELECT id, submitted_ns, kind, target_x, target_y, key_code,
	             outcome, duration_ms, cursor_x, cursor_y
	      FROM submissions ORDER BY submitted_ns DESC`
	args := []any{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := j.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ns int64
		var ms int64
		if err := rows.Scan(&e.ID, &ns, &e.Kind, &e.TargetX, &e.TargetY,
			&e.KeyCode, &e.Outcome, &ms, &e.CursorX, &e.CursorY); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		e.SubmittedAt = time.Unix(0, ns)
		e.Duration = time.Duration(ms) * time.Millisecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
