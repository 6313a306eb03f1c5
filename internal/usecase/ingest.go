package usecase

import (
	"fmt"
	"strconv"

	"github.com/schollz/progressbar/v3"

	"pav/internal/adapter/bundler"
	"pav/internal/adapter/fs"
	"pav/internal/port"
)

// Ingester runs the document pipeline: discover PDFs, partition them into
// layout segments, build page and media bundles, embed, and upsert into the
// vector index under one namespace per document.
type Ingester struct {
	walker    *fs.Walker
	segmenter port.Segmenter
	builder   *bundler.Builder
	embedder  port.Embedder
	index     port.VectorIndex

	upsertBatch int
	showBar     bool
}

func NewIngester(walker *fs.Walker, segmenter port.Segmenter, builder *bundler.Builder,
	embedder port.Embedder, index port.VectorIndex, upsertBatch int, showBar bool) *Ingester {
	if upsertBatch <= 0 {
		upsertBatch = 100
	}
	return &Ingester{
		walker:      walker,
		segmenter:   segmenter,
		builder:     builder,
		embedder:    embedder,
		index:       index,
		upsertBatch: upsertBatch,
		showBar:     showBar,
	}
}

// IngestResult summarizes one ingest run.
type IngestResult struct {
	Files   int
	Bundles int
	Indexed int
	Skipped int // bundles with no indexable text
	ByDocID map[string]int
}

// IngestDir ingests every matching PDF under root. Each document replaces its
// previous namespace contents.
func (ing *Ingester) IngestDir(root string) (*IngestResult, error) {
	files, err := ing.walker.Walk(root)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no documents matched under %s", root)
	}

	var bar *progressbar.ProgressBar
	if ing.showBar {
		bar = progressbar.Default(int64(len(files)), "ingesting")
	}

	result := &IngestResult{ByDocID: map[string]int{}}
	for _, f := range files {
		docID := fs.DocID(f.Path)
		indexed, skipped, bundles, err := ing.ingestFile(f.Path, docID)
		if err != nil {
			return nil, fmt.Errorf("ingest %s: %w", f.Path, err)
		}
		result.Files++
		result.Bundles += bundles
		result.Indexed += indexed
		result.Skipped += skipped
		result.ByDocID[docID] = indexed
		if bar != nil {
			bar.Add(1)
		}
	}
	return result, nil
}

func (ing *Ingester) ingestFile(path, docID string) (indexed, skipped, total int, err error) {
	segments, err := ing.segmenter.Partition(path)
	if err != nil {
		return 0, 0, 0, err
	}

	bundles, err := ing.builder.Build(docID, segments)
	if err != nil {
		return 0, 0, 0, err
	}
	total = len(bundles)

	var texts []string
	var items []port.IndexItem
	for _, b := range bundles {
		if b.Text == "" {
			skipped++
			continue
		}
		texts = append(texts, b.Text)
		items = append(items, port.IndexItem{
			ID: b.ID,
			Metadata: map[string]string{
				"text":      b.Text,
				"kind":      b.Kind,
				"page":      strconv.Itoa(b.Page),
				"tokens":    strconv.Itoa(b.TokenCost),
				"doc_id":    b.DocID,
				"parent_id": b.ParentID,
			},
		})
	}
	if len(items) == 0 {
		return 0, skipped, total, nil
	}

	vectors, err := ing.embedder.Embed(texts)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("embedding failed: %w", err)
	}
	if len(vectors) != len(items) {
		return 0, 0, 0, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(items))
	}
	for i := range items {
		items[i].Vector = vectors[i]
	}

	// Re-ingesting a document replaces its namespace.
	if err := ing.index.DeleteNamespace(docID); err != nil {
		return 0, 0, 0, fmt.Errorf("failed to clear namespace %s: %w", docID, err)
	}
	for start := 0; start < len(items); start += ing.upsertBatch {
		end := start + ing.upsertBatch
		if end > len(items) {
			end = len(items)
		}
		if err := ing.index.Upsert(docID, items[start:end]); err != nil {
			return 0, 0, 0, fmt.Errorf("upsert failed: %w", err)
		}
	}
	return len(items), skipped, total, nil
}
