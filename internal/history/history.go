// Package history provides a SQLite-backed ledger of synchronization runs
// and per-file checksums, so watch mode only re-syncs files whose content
// actually changed.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/veleth/ansuz/internal/reconcile"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at    DATETIME NOT NULL,
	finished_at   DATETIME NOT NULL,
	created       INTEGER NOT NULL DEFAULT 0,
	updated       INTEGER NOT NULL DEFAULT 0,
	skipped       INTEGER NOT NULL DEFAULT 0,
	failed        INTEGER NOT NULL DEFAULT 0,
	errors        TEXT NOT NULL DEFAULT '[]',
	decks_created TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS files (
	path      TEXT PRIMARY KEY,
	checksum  TEXT NOT NULL DEFAULT '',
	synced_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// DB wraps a sql.DB with ledger-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("history: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("history: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Run is one recorded synchronization run.
type Run struct {
	ID           int64     `json:"id"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Created      int       `json:"created"`
	Updated      int       `json:"updated"`
	Skipped      int       `json:"skipped"`
	Failed       int       `json:"failed"`
	Errors       []string  `json:"errors,omitempty"`
	DecksCreated []string  `json:"decks_created,omitempty"`
}

// RecordRun appends a finished run to the ledger.
func (db *DB) RecordRun(started, finished time.Time, rep reconcile.Report) (int64, error) {
	errsJSON, _ := json.Marshal(rep.Errors)
	decksJSON, _ := json.Marshal(rep.DecksCreated)
	res, err := db.conn.Exec(`
		INSERT INTO runs (started_at, finished_at, created, updated, skipped, failed, errors, decks_created)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, started, finished, rep.Created, rep.Updated, rep.Skipped, rep.Failed, string(errsJSON), string(decksJSON))
	if err != nil {
		return 0, fmt.Errorf("history: record run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("history: last insert id: %w", err)
	}
	return id, nil
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT id, started_at, finished_at, created, updated, skipped, failed, errors, decks_created
		FROM runs ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var errsJSON, decksJSON string
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Created, &r.Updated,
			&r.Skipped, &r.Failed, &errsJSON, &decksJSON); err != nil {
			return nil, fmt.Errorf("history: scan run: %w", err)
		}
		_ = json.Unmarshal([]byte(errsJSON), &r.Errors)
		_ = json.Unmarshal([]byte(decksJSON), &r.DecksCreated)
		out = append(out, r)
	}
	return out, rows.Err()
}

// AllChecksums returns the last-synced checksum of every known file.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM files`)
	if err != nil {
		return nil, fmt.Errorf("history: all checksums: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var path, cs string
		if err := rows.Scan(&path, &cs); err != nil {
			return nil, fmt.Errorf("history: scan checksum: %w", err)
		}
		out[path] = cs
	}
	return out, rows.Err()
}

// SetFileChecksum records the checksum a file had when it was last synced.
func (db *DB) SetFileChecksum(path, cs string) error {
	_, err := db.conn.Exec(`
		INSERT INTO files (path, checksum, synced_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(path) DO UPDATE SET checksum = excluded.checksum, synced_at = CURRENT_TIMESTAMP
	`, path, cs)
	if err != nil {
		return fmt.Errorf("history: set checksum: %w", err)
	}
	return nil
}
