package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the pav tool.
type Config struct {
	Segment   SegmentConfig   `yaml:"segment"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Answer    AnswerConfig    `yaml:"answer"`
	Index     IndexConfig     `yaml:"index"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Pack      PackConfig      `yaml:"pack"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SegmentConfig holds partition API configuration.
type SegmentConfig struct {
	URL            string `yaml:"url"`
	APIKeyEnv      string `yaml:"api_key_env"`
	Strategy       string `yaml:"strategy"` // "hi_res" for layout/images/tables
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"` // "openai", "mock"
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
	BaseURL   string `yaml:"base_url"` // empty uses the provider default
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batch_size"`
}

// AnswerConfig holds QA/vision model configuration.
type AnswerConfig struct {
	Model          string `yaml:"model"`
	FallbackModel  string `yaml:"fallback_model"`
	APIKeyEnv      string `yaml:"api_key_env"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// IndexConfig holds vector index configuration.
type IndexConfig struct {
	Provider  string `yaml:"provider"` // "pinecone", "local", "memory"
	Name      string `yaml:"name"`
	Host      string `yaml:"host"` // pinecone index host, e.g. https://x.svc.pinecone.io
	Cloud     string `yaml:"cloud"`
	Region    string `yaml:"region"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// IngestConfig holds ingestion configuration.
type IngestConfig struct {
	Includes        []string `yaml:"includes"`
	Excludes        []string `yaml:"excludes"`
	NeighborBlocks  int      `yaml:"neighbor_blocks"`   // text blocks kept above/below each figure/table
	MaxBundleTokens int      `yaml:"max_bundle_tokens"` // page text above this splits
	OverlapTokens   int      `yaml:"overlap_tokens"`
	UpsertBatch     int      `yaml:"upsert_batch"`
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK            int     `yaml:"top_k"`
	Relevance       string  `yaml:"relevance"` // "index" score or "cosine" vs query embedding
	Rerank          bool    `yaml:"rerank"`
	RerankModel     string  `yaml:"rerank_model"`
	RerankAPIKeyEnv string  `yaml:"rerank_api_key_env"`
	MinScore        float64 `yaml:"min_score"` // Filter results below this score (0 = disabled)
}

// PackConfig holds context packing configuration.
type PackConfig struct {
	TokenBudget     int     `yaml:"token_budget"`
	DiversityWeight float64 `yaml:"diversity_weight"`
	Output          string  `yaml:"output"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Segment: SegmentConfig{
			URL:            "https://api.unstructuredapp.io/general/v0/general",
			APIKeyEnv:      "UNSTRUCTURED_API_KEY",
			Strategy:       "hi_res",
			TimeoutSeconds: 240,
			MaxRetries:     5,
		},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			APIKeyEnv: "OPENAI_API_KEY",
			Dimension: 1536,
			BatchSize: 64,
		},
		Answer: AnswerConfig{
			Model:          "gemini-2.5-pro",
			FallbackModel:  "gemini-2.5-flash",
			APIKeyEnv:      "GOOGLE_API_KEY",
			TimeoutSeconds: 120,
		},
		Index: IndexConfig{
			Provider:  "local",
			Name:      "pav-quick",
			Cloud:     "aws",
			Region:    "us-east-1",
			APIKeyEnv: "PINECONE_API_KEY",
		},
		Ingest: IngestConfig{
			Includes:        []string{"**/*.pdf"},
			Excludes:        []string{"**/.pav/**"},
			NeighborBlocks:  10,
			MaxBundleTokens: 3000,
			OverlapTokens:   200,
			UpsertBatch:     100,
		},
		Retrieve: RetrieveConfig{
			TopK:            80,
			Relevance:       "index",
			RerankModel:     "bge-reranker-v2-m3",
			RerankAPIKeyEnv: "PINECONE_API_KEY",
		},
		Pack: PackConfig{
			TokenBudget:     3000,
			DiversityWeight: 0.5,
			Output:          "json",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for pav.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "pav.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".pav", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// IndexDBPath returns the path to the local vector index database.
func IndexDBPath(dir string) string {
	return filepath.Join(dir, ".pav", "index.db")
}

// CacheDBPath returns the path to the API response cache database.
func CacheDBPath(dir string) string {
	return filepath.Join(dir, ".pav", "cache.db")
}

// EnsurePavDir ensures the .pav directory exists.
func EnsurePavDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, ".pav"), 0755)
}
