package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, FormatJSON, slog.LevelInfo)
	logger.Debug("hidden")
	logger.Info("indexed", slog.String("path", "a.md"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if rec["msg"] != "indexed" || rec["path"] != "a.md" {
		t.Errorf("record = %v", rec)
	}
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, FormatText, slog.LevelInfo)
	logger.Info("indexed", slog.String("path", "a.md"))

	out := buf.String()
	if !strings.Contains(out, "indexed") || !strings.Contains(out, "a.md") {
		t.Errorf("output = %q", out)
	}
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Errorf("text format produced JSON: %q", out)
	}
}
