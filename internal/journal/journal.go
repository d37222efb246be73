// Package journal is an append-only SQLite log of cell executions. It is an
// audit trail only; nothing is ever replayed from it into a namespace.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"nerdbook/internal/logging"
	"nerdbook/internal/notebook"
)

// DefaultLimit caps Recent when no limit is given.
const DefaultLimit = 50

// Entry is one recorded execution.
type Entry struct {
	ID        int64         `json:"id"`
	SessionID string        `json:"sessionId"`
	CellID    int           `json:"cellId"`
	Code      string        `json:"code"`
	Output    string        `json:"output"`
	Status    string        `json:"status"`
	Duration  time.Duration `json:"duration"`
	At        time.Time     `json:"at"`
}

// Session summarizes the executions of one notebook session.
type Session struct {
	ID         string    `json:"id"`
	Executions int       `json:"executions"`
	Failures   int       `json:"failures"`
	First      time.Time `json:"first"`
	Last       time.Time `json:"last"`
}

// Store writes and reads the journal.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

var _ notebook.Recorder = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS executions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	cell_id INTEGER NOT NULL,
	code TEXT NOT NULL,
	output TEXT NOT NULL,
	status TEXT NOT NULL,
	duration_ns INTEGER NOT NULL,
	executed_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_executions_session ON executions(session_id, id);
`

// Open opens (creating if needed) the journal at path. ":memory:" keeps it
// in memory.
func Open(path string) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryJournal, "Open")
	defer timer.Stop()

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		logging.JournalError("failed to open journal at %s: %v", path, err)
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	// One connection: an in-memory database exists per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.JournalDebug("failed to set busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.JournalDebug("failed to set journal_mode=WAL: %v", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize journal schema: %w", err)
	}

	logging.Journal("journal opened at %s", path)
	return &Store{db: db, path: path}, nil
}

// Path returns the database location.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends one execution.
func (s *Store) Record(ctx context.Context, e notebook.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO executions (session_id, cell_id, code, output, status, duration_ns, executed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.CellID, e.Code, e.Output, string(e.Status), int64(e.Duration), at.UnixNano(),
	)
	if err != nil {
		logging.JournalError("failed to record cell %d: %v", e.CellID, err)
		return fmt.Errorf("record execution: %w", err)
	}
	logging.JournalDebug("recorded cell %d (session=%s status=%s)", e.CellID, e.SessionID, e.Status)
	return nil
}

// Recent returns the newest executions first. An empty sessionID matches
// every session.
func (s *Store) Recent(ctx context.Context, sessionID string, limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = DefaultLimit
	}

	query := `SELECT id, session_id, cell_id, code, output, status, duration_ns, executed_at FROM executions`
	args := []any{}
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var durNS, atNS int64
		if err := rows.Scan(&e.ID, &e.SessionID, &e.CellID, &e.Code, &e.Output, &e.Status, &durNS, &atNS); err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}
		e.Duration = time.Duration(durNS)
		e.At = time.Unix(0, atNS)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Sessions lists every session, most recently active first.
func (s *Store) Sessions(ctx context.Context) ([]Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, COUNT(*), SUM(CASE WHEN status = 'error' THEN 1 ELSE 0 END),
		        MIN(executed_at), MAX(executed_at), MAX(id)
		 FROM executions
		 GROUP BY session_id
		 ORDER BY MAX(id) DESC`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var ss Session
		var first, last, lastID int64
		if err := rows.Scan(&ss.ID, &ss.Executions, &ss.Failures, &first, &last, &lastID); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		ss.First = time.Unix(0, first)
		ss.Last = time.Unix(0, last)
		sessions = append(sessions, ss)
	}
	return sessions, rows.Err()
}
