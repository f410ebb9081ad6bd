// Package testutil provides shared test helpers for setting up docs
// directories and journal databases.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/ansuz/internal/journal"
	"github.com/starford/ansuz/internal/storage"
)

// TestDocs creates a temporary docs directory with a storage.Provider.
func TestDocs(t *testing.T) (string, storage.Provider) {
	t.Helper()
	docsDir := t.TempDir()
	store, err := storage.NewFS(docsDir)
	if err != nil {
		t.Fatal(err)
	}
	return docsDir, store
}

// WriteDoc writes a file under the docs directory, creating parent folders.
func WriteDoc(t *testing.T, docsDir, rel, content string) {
	t.Helper()
	abs := filepath.Join(docsDir, rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// TestJournal creates a temporary SQLite journal that is automatically cleaned up.
func TestJournal(t *testing.T) *journal.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "ansuz-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := journal.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
