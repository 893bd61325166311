package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/headless/internal/models"
)

func tempVault(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempVault(t)
	content := []byte("---\ntype: node\nid: \"1\"\n---\nWorld\n")
	if err := s.Write("pages/home.md", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("pages/home.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestDeleteAndMove(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("old.md", []byte("data"))
	if err := s.Move("old.md", "sub/new.md"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if _, err := s.Read("old.md"); err == nil {
		t.Error("old path should not exist")
	}
	if err := s.Delete("sub/new.md"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("sub/new.md"); err == nil {
		t.Error("expected error reading deleted file")
	}
}

func TestListDocuments(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("a.md", []byte("a"))
	_ = s.Write("sub/b.md", []byte("b"))
	_ = s.Write("config/site.yaml", []byte("redirects: []"))
	_ = s.Write("readme.txt", []byte("not a document"))
	_ = s.Write(".git/HEAD.md", []byte("hidden"))

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("len = %d, want 3: %+v", len(items), items)
	}
	kinds := map[string]string{}
	for _, it := range items {
		kinds[it.Path] = it.Kind
		if it.Checksum == "" {
			t.Errorf("%s: empty checksum", it.Path)
		}
	}
	if kinds["config/site.yaml"] != models.KindConfig {
		t.Errorf("site.yaml kind = %q", kinds["config/site.yaml"])
	}
	if kinds["sub/b.md"] != models.KindContent {
		t.Errorf("b.md kind = %q", kinds["sub/b.md"])
	}
}

func TestKindOf(t *testing.T) {
	cases := map[string]string{
		"a.md":     models.KindContent,
		"b.YAML":   models.KindConfig,
		"c.yml":    models.KindConfig,
		"d.txt":    "",
		"no-ext":   "",
		"dir/e.md": models.KindContent,
	}
	for in, want := range cases {
		if got := KindOf(in); got != want {
			t.Errorf("KindOf(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempVault(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.md",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteLeavesNoTempFiles(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("atomic.md", []byte("original"))
	if err := s.Write("atomic.md", []byte("updated")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.md")
	if string(got) != "updated" {
		t.Errorf("expected updated content, got %q", got)
	}
	matches, _ := filepath.Glob(filepath.Join(s.Root(), ".headless-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_Invalid(t *testing.T) {
	if _, err := NewFS("/tmp/headless-does-not-exist-" + t.Name()); err == nil {
		t.Error("expected error for non-existent dir")
	}
	f, _ := os.CreateTemp("", "headless-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	if _, err := NewFS(f.Name()); err == nil {
		t.Error("expected error when root is a file")
	}
}
