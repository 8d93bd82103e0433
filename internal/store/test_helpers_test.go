package store

import (
	"database/sql"
	"path/filepath"
	"testing"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRecord creates a record with one assignment and a two-rule trace.
func createTestRecord(id, problemID string, seq int64) Record {
	return Record{
		Session: Session{
			ID:        id,
			ProblemID: problemID,
			Left:      "?e@[x]",
			Right:     "S x",
			Conv:      "eq",
			Outcome:   OutcomeUnified,
			Steps:     2,
			Seq:       seq,
		},
		Assignments: []Assignment{{Evar: 1, Body: "S x", Canonical: `{"k":"app"}`}},
		Trace: []TraceRow{
			{Seq: seq + 1, Depth: 1, Rule: "meta-inst"},
			{Seq: seq + 2, Depth: 0, Rule: "evar-rigid", Detail: "?1"},
		},
	}
}

// hasTable reports whether the database has a table named name.
func hasTable(db *sql.DB, name string) bool {
	var found string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", name).Scan(&found)
	return err == nil
}
