package usecase

import (
	"os"
	"path/filepath"
	"testing"

	"pav/internal/adapter/analyzer"
	"pav/internal/adapter/bundler"
	"pav/internal/adapter/embedding"
	"pav/internal/adapter/fs"
	"pav/internal/adapter/index"
	"pav/internal/domain"
)

type fakeSegmenter struct {
	segments map[string][]domain.Segment // keyed by file base name
	calls    int
}

func (s *fakeSegmenter) Partition(path string) ([]domain.Segment, error) {
	s.calls++
	return s.segments[filepath.Base(path)], nil
}

func writePDFs(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("%PDF"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func newTestIngester(seg *fakeSegmenter, idx *index.MemoryIndex) *Ingester {
	builder := bundler.New(nil, analyzer.HeuristicCounter{}, nil, 10, 3000, 0)
	walker := fs.NewWalker([]string{"**/*.pdf"}, nil)
	return NewIngester(walker, seg, builder, embedding.NewMockEmbedder(32), idx, 100, false)
}

func TestIngestDir(t *testing.T) {
	dir := writePDFs(t, "alpha.pdf", "beta.pdf")
	seg := &fakeSegmenter{segments: map[string][]domain.Segment{
		"alpha.pdf": {
			{Type: "NarrativeText", Text: "alpha page one", Page: 1},
			{Type: "NarrativeText", Text: "alpha page two", Page: 2},
		},
		"beta.pdf": {
			{Type: "NarrativeText", Text: "beta page one", Page: 1},
		},
	}}
	idx := index.NewMemoryIndex()

	result, err := newTestIngester(seg, idx).IngestDir(dir)
	if err != nil {
		t.Fatal(err)
	}

	if result.Files != 2 {
		t.Errorf("expected 2 files, got %d", result.Files)
	}
	if result.Indexed != 3 {
		t.Errorf("expected 3 indexed bundles, got %d", result.Indexed)
	}

	// One namespace per document.
	for docID, want := range map[string]int{"alpha": 2, "beta": 1} {
		n, err := idx.Count(docID)
		if err != nil {
			t.Fatal(err)
		}
		if n != want {
			t.Errorf("namespace %s: expected %d vectors, got %d", docID, want, n)
		}
	}
}

func TestIngestStoresMetadata(t *testing.T) {
	dir := writePDFs(t, "paper.pdf")
	seg := &fakeSegmenter{segments: map[string][]domain.Segment{
		"paper.pdf": {{Type: "NarrativeText", Text: "the model reaches 92 percent", Page: 3}},
	}}
	idx := index.NewMemoryIndex()
	emb := embedding.NewMockEmbedder(32)

	if _, err := newTestIngester(seg, idx).IngestDir(dir); err != nil {
		t.Fatal(err)
	}

	query, _ := emb.Embed([]string{"accuracy"})
	matches, err := idx.Search("paper", query[0], 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}

	md := matches[0].Metadata
	if md["text"] != "the model reaches 92 percent" {
		t.Errorf("unexpected text metadata %q", md["text"])
	}
	if md["kind"] != "page" || md["page"] != "3" || md["doc_id"] != "paper" {
		t.Errorf("unexpected metadata %+v", md)
	}
	if md["tokens"] == "" || md["tokens"] == "0" {
		t.Errorf("expected stored token cost, got %q", md["tokens"])
	}
}

func TestIngestReplacesNamespace(t *testing.T) {
	dir := writePDFs(t, "paper.pdf")
	seg := &fakeSegmenter{segments: map[string][]domain.Segment{
		"paper.pdf": {
			{Type: "NarrativeText", Text: "first version page one", Page: 1},
			{Type: "NarrativeText", Text: "first version page two", Page: 2},
		},
	}}
	idx := index.NewMemoryIndex()
	ing := newTestIngester(seg, idx)

	if _, err := ing.IngestDir(dir); err != nil {
		t.Fatal(err)
	}

	// The document shrank; re-ingest must not leave stale vectors behind.
	seg.segments["paper.pdf"] = []domain.Segment{
		{Type: "NarrativeText", Text: "second version only page", Page: 1},
	}
	if _, err := ing.IngestDir(dir); err != nil {
		t.Fatal(err)
	}

	n, err := idx.Count("paper")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected namespace replaced with 1 vector, got %d", n)
	}
}

func TestIngestEmptyDir(t *testing.T) {
	dir := t.TempDir()
	idx := index.NewMemoryIndex()
	if _, err := newTestIngester(&fakeSegmenter{}, idx).IngestDir(dir); err == nil {
		t.Error("expected error when no documents match")
	}
}
