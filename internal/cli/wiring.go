package cli

import (
	"fmt"
	"os"
	"time"

	"pav/config"
	"pav/internal/adapter/cache"
	"pav/internal/adapter/embedding"
	"pav/internal/adapter/index"
	"pav/internal/adapter/llm"
	"pav/internal/adapter/store"
	"pav/internal/port"
)

// openCache opens the on-disk API response cache. Failures degrade to no
// caching rather than aborting the command.
func openCache(dir string) *cache.DiskCache {
	if err := config.EnsurePavDir(dir); err != nil {
		fmt.Fprintf(os.Stderr, "warning: cache disabled: %v\n", err)
		return nil
	}
	c, err := cache.NewDiskCache(config.CacheDBPath(dir))
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: cache disabled: %v\n", err)
		return nil
	}
	return c
}

// buildIndex creates the configured vector index. The returned closer is a
// no-op for remote and in-memory providers.
func buildIndex(cfg *config.Config, dir string) (port.VectorIndex, func(), error) {
	switch cfg.Index.Provider {
	case "pinecone":
		idx, err := index.NewPineconeIndex(cfg.Index.Host, cfg.Index.APIKeyEnv)
		if err != nil {
			return nil, nil, err
		}
		return idx, func() {}, nil
	case "memory":
		return index.NewMemoryIndex(), func() {}, nil
	case "local", "":
		if err := config.EnsurePavDir(dir); err != nil {
			return nil, nil, fmt.Errorf("failed to create .pav directory: %w", err)
		}
		idx, err := store.NewBoltIndex(config.IndexDBPath(dir))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open local index: %w", err)
		}
		return idx, func() { idx.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown index provider: %s", cfg.Index.Provider)
	}
}

func buildEmbedder(cfg *config.Config) (port.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "mock":
		return embedding.NewMockEmbedder(cfg.Embedding.Dimension), nil
	case "openai", "":
		return embedding.NewOpenAIEmbedder(cfg.Embedding.APIKeyEnv, cfg.Embedding.Model,
			cfg.Embedding.BaseURL, cfg.Embedding.BatchSize)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Embedding.Provider)
	}
}

func buildModel(cfg *config.Config) (port.AnswerModel, error) {
	return llm.NewGeminiModel(cfg.Answer.APIKeyEnv, cfg.Answer.Model, cfg.Answer.FallbackModel,
		cfg.Answer.BaseURL, time.Duration(cfg.Answer.TimeoutSeconds)*time.Second)
}
