package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"pav/internal/adapter/analyzer"
	"pav/internal/adapter/bundler"
	"pav/internal/adapter/fs"
	"pav/internal/adapter/segmenter"
	"pav/internal/usecase"
)

var ingestSkipMedia bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Partition, narrate and index PDF documents",
	Long: `Ingest PDFs under the given directory. Each document is partitioned
into layout elements, figures and tables are rewritten as self-contained
narratives, and everything is embedded and indexed under a namespace named
after the file.

Examples:
  pav ingest .             # Ingest PDFs in the current directory
  pav ingest ./papers      # Ingest a specific directory
  pav ingest --skip-media  # Index page text only, no figure/table narratives`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().BoolVar(&ingestSkipMedia, "skip-media", false, "skip figure/table narrative generation")
}

func runIngest(cmd *cobra.Command, args []string) error {
	path := GetRootDir()
	if len(args) > 0 {
		var err error
		path, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	cfg := GetConfig()

	diskCache := openCache(path)
	if diskCache != nil {
		defer diskCache.Close()
	}

	seg, err := segmenter.NewUnstructuredSegmenter(cfg.Segment.URL, cfg.Segment.APIKeyEnv,
		cfg.Segment.Strategy, time.Duration(cfg.Segment.TimeoutSeconds)*time.Second,
		cfg.Segment.MaxRetries, diskCache)
	if err != nil {
		return fmt.Errorf("failed to create partition client: %w", err)
	}

	model, err := buildModel(cfg)
	if err != nil {
		if !ingestSkipMedia {
			return fmt.Errorf("failed to create answer model (use --skip-media to ingest without narratives): %w", err)
		}
		model = nil
	}
	if ingestSkipMedia {
		model = nil
	}

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	idx, closeIdx, err := buildIndex(cfg, path)
	if err != nil {
		return err
	}
	defer closeIdx()

	counter := analyzer.NewTokenCounter()
	builder := bundler.New(model, counter, diskCache, cfg.Ingest.NeighborBlocks,
		cfg.Ingest.MaxBundleTokens, cfg.Ingest.OverlapTokens)
	walker := fs.NewWalker(cfg.Ingest.Includes, cfg.Ingest.Excludes)

	ingester := usecase.NewIngester(walker, seg, builder, embedder, idx, cfg.Ingest.UpsertBatch, true)

	start := time.Now()
	result, err := ingester.IngestDir(path)
	if err != nil {
		return err
	}

	fmt.Printf("\nIngest complete in %.1fs\n", time.Since(start).Seconds())
	fmt.Printf("  Documents: %d\n", result.Files)
	fmt.Printf("  Bundles:   %d (%d indexed, %d without text)\n", result.Bundles, result.Indexed, result.Skipped)
	for docID, n := range result.ByDocID {
		fmt.Printf("  %s: %d vectors\n", docID, n)
	}

	return nil
}
