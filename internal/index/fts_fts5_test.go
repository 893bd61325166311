//go:build sqlite_fts5

package index

import "testing"

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM objects_fts`).Scan(&count); err != nil {
		t.Fatalf("objects_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	mustIndex(t, db, "fts.md", "---\nid: fts\n---\n# FTS Note\n\nThe index provides powerful full-text search capabilities.\n")

	results, err := db.Search("powerful", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Path != "fts.md" || results[0].Category != "node" || results[0].ID != "fts" {
		t.Errorf("result = %+v", results[0])
	}
	if results[0].Snippet == "" {
		t.Error("expected non-empty snippet")
	}
}

func TestFTS5_DeleteRemovesEntry(t *testing.T) {
	db := testDB(t)
	mustIndex(t, db, "gone.md", "---\nid: gone\n---\nunique-marker words\n")
	if _, err := db.DeleteDocument("gone.md"); err != nil {
		t.Fatal(err)
	}
	results, err := db.Search("words", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results after delete, got %d", len(results))
	}
}
