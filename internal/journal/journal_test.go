package journal

import (
	"os"
	"path/filepath"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpen_CreatesParentDir(t *testing.T) {
	base := t.TempDir()
	path := filepath.Join(base, "state", "journal.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Errorf("parent dir missing: %v", err)
	}
}

func TestRunLifecycle(t *testing.T) {
	db := testDB(t)

	runID, err := db.BeginRun()
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if err := db.RecordResult(runID, Record{
		Path: "a.md", Title: "A", Outcome: "created", PageID: "101", Version: 1, Checksum: "abc",
	}); err != nil {
		t.Fatalf("RecordResult: %v", err)
	}
	if err := db.RecordResult(runID, Record{
		Path: "b.md", Title: "B", Outcome: "failed", Error: "boom",
	}); err != nil {
		t.Fatalf("RecordResult: %v", err)
	}
	if err := db.FinishRun(runID, 1, 0, 0, 1); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	runs, err := db.RecentRuns(10)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(runs))
	}
	run := runs[0]
	if run.ID != runID || run.Created != 1 || run.Failed != 1 {
		t.Errorf("run = %+v", run)
	}
	if run.FinishedAt.Before(run.StartedAt) {
		t.Errorf("finished %v before started %v", run.FinishedAt, run.StartedAt)
	}

	records, err := db.RunResults(runID)
	if err != nil {
		t.Fatalf("RunResults: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if records[0].Path != "a.md" || records[1].Path != "b.md" {
		t.Errorf("insertion order not preserved: %+v", records)
	}
	if records[1].Error != "boom" {
		t.Errorf("error = %q", records[1].Error)
	}
}

func TestRecentRuns_NewestFirst(t *testing.T) {
	db := testDB(t)

	first, _ := db.BeginRun()
	second, _ := db.BeginRun()

	runs, err := db.RecentRuns(1)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != second {
		t.Errorf("runs = %+v, want only run %d", runs, second)
	}

	runs, err = db.RecentRuns(10)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != second || runs[1].ID != first {
		t.Errorf("runs = %+v", runs)
	}
}

func TestLastPageID(t *testing.T) {
	db := testDB(t)

	id, err := db.LastPageID("never-synced.md")
	if err != nil {
		t.Fatalf("LastPageID: %v", err)
	}
	if id != "" {
		t.Errorf("id = %q, want empty", id)
	}

	runID, _ := db.BeginRun()
	_ = db.RecordResult(runID, Record{Path: "a.md", Outcome: "created", PageID: "101"})
	_ = db.RecordResult(runID, Record{Path: "a.md", Outcome: "updated", PageID: "202"})
	_ = db.RecordResult(runID, Record{Path: "a.md", Outcome: "failed"})

	id, err = db.LastPageID("a.md")
	if err != nil {
		t.Fatalf("LastPageID: %v", err)
	}
	if id != "202" {
		t.Errorf("id = %q, want latest non-empty page id", id)
	}
}
