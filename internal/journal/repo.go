package journal

import (
	"database/sql"
	"fmt"
	"time"
)

// Run is one recorded sync run with its outcome counts.
type Run struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt time.Time
	Created    int
	Updated    int
	Skipped    int
	Failed     int
}

// Record is the journal entry for one document within a run.
type Record struct {
	Path     string
	Title    string
	Outcome  string
	PageID   string
	Version  int
	Checksum string
	Error    string
}

// BeginRun inserts a new run row and returns its ID.
func (db *DB) BeginRun() (int64, error) {
	res, err := db.conn.Exec(`INSERT INTO runs (started_at) VALUES (?)`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("journal: begin run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("journal: run id: %w", err)
	}
	return id, nil
}

// RecordResult appends one document result to a run.
func (db *DB) RecordResult(runID int64, r Record) error {
	_, err := db.conn.Exec(`
		INSERT INTO results (run_id, path, title, outcome, page_id, version, checksum, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, r.Path, r.Title, r.Outcome, r.PageID, r.Version, r.Checksum, r.Error)
	if err != nil {
		return fmt.Errorf("journal: record result: %w", err)
	}
	return nil
}

// FinishRun stamps the run with its end time and outcome counts.
func (db *DB) FinishRun(runID int64, created, updated, skipped, failed int) error {
	_, err := db.conn.Exec(`
		UPDATE runs SET finished_at = ?, created = ?, updated = ?, skipped = ?, failed = ?
		WHERE id = ?
	`, time.Now().UTC(), created, updated, skipped, failed, runID)
	if err != nil {
		return fmt.Errorf("journal: finish run: %w", err)
	}
	return nil
}

// RecentRuns returns the most recent runs, newest first.
func (db *DB) RecentRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.conn.Query(`
		SELECT id, started_at, COALESCE(finished_at, started_at), created, updated, skipped, failed
		FROM runs ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: recent runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Created, &r.Updated, &r.Skipped, &r.Failed); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RunResults returns the per-document records of one run in insertion order.
func (db *DB) RunResults(runID int64) ([]Record, error) {
	rows, err := db.conn.Query(`
		SELECT path, title, outcome, page_id, version, checksum, error
		FROM results WHERE run_id = ? ORDER BY rowid
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("journal: run results: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Path, &r.Title, &r.Outcome, &r.PageID, &r.Version, &r.Checksum, &r.Error); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LastPageID returns the most recently journalled page ID for a document
// path, or empty when the path has never produced a page.
func (db *DB) LastPageID(path string) (string, error) {
	var id string
	err := db.conn.QueryRow(`
		SELECT page_id FROM results
		WHERE path = ? AND page_id != ''
		ORDER BY rowid DESC LIMIT 1
	`, path).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("journal: last page id: %w", err)
	}
	return id, nil
}
