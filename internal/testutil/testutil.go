// Package testutil provides shared test helpers for setting up vaults and databases.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/headless/internal/index"
	"github.com/starford/headless/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "headless-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name(), index.WithDefaultLangcode("en"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with a storage.Provider.
func TestVault(t *testing.T) (string, storage.Provider) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// WriteDocs writes path -> content into the vault directory.
func WriteDocs(t *testing.T, vaultDir string, docs map[string]string) {
	t.Helper()
	for p, body := range docs {
		full := filepath.Join(vaultDir, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

// IndexedSite writes docs into a fresh vault and syncs them into a fresh
// index.
func IndexedSite(t *testing.T, docs map[string]string) (*index.DB, storage.Provider) {
	t.Helper()
	dir, store := TestVault(t)
	WriteDocs(t, dir, docs)
	db := TestDB(t)
	if err := index.Sync(db, store, discardLogger(), nil); err != nil {
		t.Fatalf("sync: %v", err)
	}
	return db, store
}
