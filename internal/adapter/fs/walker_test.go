package fs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWalkFindsPDFs(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "b.pdf"), []byte("x"), 0644)
	os.WriteFile(filepath.Join(dir, "a.pdf"), []byte("x"), 0644)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644)
	os.MkdirAll(filepath.Join(dir, ".pav"), 0755)
	os.WriteFile(filepath.Join(dir, ".pav", "c.pdf"), []byte("x"), 0644)

	w := NewWalker([]string{"**/*.pdf"}, []string{"**/.pav/**"})
	files, err := w.Walk(dir)
	if err != nil {
		t.Fatal(err)
	}

	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(files))
	}
	// Sorted by path for deterministic ingest order.
	if filepath.Base(files[0].Path) != "a.pdf" || filepath.Base(files[1].Path) != "b.pdf" {
		t.Errorf("expected [a.pdf b.pdf], got [%s %s]", files[0].Path, files[1].Path)
	}
}

func TestDocID(t *testing.T) {
	if got := DocID("/data/papers/attention.pdf"); got != "attention" {
		t.Errorf("expected attention, got %s", got)
	}
	if got := DocID("plain"); got != "plain" {
		t.Errorf("expected plain, got %s", got)
	}
}
