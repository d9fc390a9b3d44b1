package phase

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestMoveFile_CreatesDestinationDir(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "LedgerReport.pdf")
	dst := filepath.Join(dir, "out", "2026-10-15", "ledger.pdf")
	if err := os.WriteFile(src, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := moveFile(src, dst); err != nil {
		t.Fatalf("moveFile: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Errorf("source still exists: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil || string(got) != "%PDF-1.4" {
		t.Errorf("destination = %q, %v", got, err)
	}
}

func TestCopyFile_LeavesNoPartialFile(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "ledger.pdf")
	if err := copyFile(filepath.Join(dir, "missing.pdf"), dst); err == nil {
		t.Fatal("expected error for missing source")
	}
	if _, err := os.Stat(dst + ".part"); !os.IsNotExist(err) {
		t.Errorf("partial file left behind: %v", err)
	}
}

func TestNewestChanged(t *testing.T) {
	t0 := time.Date(2026, 10, 15, 1, 0, 0, 0, time.UTC)
	before := map[string]time.Time{"a.pdf": t0, "b.pdf": t0}
	tests := []struct {
		name  string
		after map[string]time.Time
		want  string
	}{
		{"unchanged", map[string]time.Time{"a.pdf": t0, "b.pdf": t0}, ""},
		{"new file", map[string]time.Time{"a.pdf": t0, "c.pdf": t0.Add(time.Second)}, "c.pdf"},
		{"overwritten", map[string]time.Time{"a.pdf": t0.Add(time.Minute), "b.pdf": t0}, "a.pdf"},
		{"newest wins", map[string]time.Time{"c.pdf": t0.Add(time.Second), "d.pdf": t0.Add(2 * time.Second)}, "d.pdf"},
	}
	for _, tt := range tests {
		if got := newestChanged(before, tt.after); got != tt.want {
			t.Errorf("%s: newestChanged() = %q, want %q", tt.name, got, tt.want)
		}
	}
}
