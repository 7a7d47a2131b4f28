package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/veleth/ansuz/internal/reconcile"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecordAndListRuns(t *testing.T) {
	db := openTestDB(t)

	started := time.Now().Add(-time.Minute)
	rep := reconcile.Report{
		Created:      3,
		Skipped:      1,
		Failed:       1,
		Errors:       []string{"deck biology: note rejected"},
		DecksCreated: []string{"biology"},
	}
	id, err := db.RecordRun(started, time.Now(), rep)
	if err != nil {
		t.Fatal(err)
	}
	if id == 0 {
		t.Error("id = 0")
	}

	if _, err := db.RecordRun(time.Now(), time.Now(), reconcile.Report{Created: 1}); err != nil {
		t.Fatal(err)
	}

	runs, err := db.ListRuns(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(runs))
	}
	// Newest first.
	if runs[0].Created != 1 {
		t.Errorf("runs[0].Created = %d, want the latest run first", runs[0].Created)
	}
	first := runs[1]
	if first.Created != 3 || first.Skipped != 1 || first.Failed != 1 {
		t.Errorf("counts = %+v", first)
	}
	if len(first.Errors) != 1 || first.Errors[0] != "deck biology: note rejected" {
		t.Errorf("errors = %v", first.Errors)
	}
	if len(first.DecksCreated) != 1 || first.DecksCreated[0] != "biology" {
		t.Errorf("decks = %v", first.DecksCreated)
	}
}

func TestListRunsRespectsLimit(t *testing.T) {
	db := openTestDB(t)
	for i := 0; i < 5; i++ {
		if _, err := db.RecordRun(time.Now(), time.Now(), reconcile.Report{}); err != nil {
			t.Fatal(err)
		}
	}
	runs, err := db.ListRuns(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 3 {
		t.Errorf("runs = %d, want 3", len(runs))
	}
}

func TestFileChecksums(t *testing.T) {
	db := openTestDB(t)

	if err := db.SetFileChecksum("notes/a.md", "aaa"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetFileChecksum("notes/b.md", "bbb"); err != nil {
		t.Fatal(err)
	}
	// Upsert overwrites.
	if err := db.SetFileChecksum("notes/a.md", "aa2"); err != nil {
		t.Fatal(err)
	}

	got, err := db.AllChecksums()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("checksums = %v", got)
	}
	if got["notes/a.md"] != "aa2" || got["notes/b.md"] != "bbb" {
		t.Errorf("checksums = %v", got)
	}
}

func TestAllChecksumsEmptyLedger(t *testing.T) {
	db := openTestDB(t)
	got, err := db.AllChecksums()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("checksums = %v, want empty", got)
	}
}
