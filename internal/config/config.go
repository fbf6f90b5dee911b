package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL           string  `yaml:"base_url"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	Model             string  `yaml:"model"`
	TimeoutSecs       int     `yaml:"timeout_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	MaxRetries        int     `yaml:"max_retries"`
}

// HashingEmbedderConfig configures the local feature-hashing embedder.
type HashingEmbedderConfig struct {
	Dimension int `yaml:"dimension"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type    string                 `yaml:"type"`
	Hashing *HashingEmbedderConfig `yaml:"hashing,omitempty"`
	OpenAI  *OpenAIEmbedderConfig  `yaml:"openai,omitempty"`
}

// ChunkerConfig configures how documents are split into chunks, in characters.
// Overlap is a pointer so an explicit 0 survives defaulting.
type ChunkerConfig struct {
	TargetSize int  `yaml:"target_size"`
	Overlap    *int `yaml:"overlap,omitempty"`
}

// CacheConfig selects where embeddings are persisted.
type CacheConfig struct {
	Type       string `yaml:"type"`
	Path       string `yaml:"path"`
	PurgeStale bool   `yaml:"purge_stale"`
}

// ExtractorConfig configures the pdftotext backend.
type ExtractorConfig struct {
	Binary      string `yaml:"binary"`
	BBox        bool   `yaml:"bbox"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// IndexerConfig configures batch indexing.
type IndexerConfig struct {
	Workers int `yaml:"workers"`
}

// SearchConfig configures ranking.
type SearchConfig struct {
	Metric string `yaml:"metric"`
	TopK   int    `yaml:"top_k"`
}

// VectorStoreConfig selects an optional external mirror for built indexes.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// SummarizerConfig selects and configures the summarizer.
type SummarizerConfig struct {
	Type         string `yaml:"type"`
	MaxSentences int    `yaml:"max_sentences"`
	MaxKeywords  int    `yaml:"max_keywords"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Cache       CacheConfig       `yaml:"cache"`
	Extractor   ExtractorConfig   `yaml:"extractor"`
	Indexer     IndexerConfig     `yaml:"indexer"`
	Search      SearchConfig      `yaml:"search"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Summarizer  SummarizerConfig  `yaml:"summarizer"`
	Log         LogConfig         `yaml:"log"`
	Server      ServerConfig      `yaml:"server"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/ragspan/config.yaml.
// If neither exists, it writes defaults to ~/.config/ragspan/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ragspan", "config.yaml"), nil
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	cfg := &AppConfig{
		Embedder:    EmbedderConfig{Type: "hashing", Hashing: &HashingEmbedderConfig{Dimension: 512}},
		Chunker:     ChunkerConfig{TargetSize: 400, Overlap: intPtr(50)},
		Cache:       CacheConfig{Type: "sqlite"},
		Extractor:   ExtractorConfig{Binary: "pdftotext", BBox: true, TimeoutSecs: 60},
		Indexer:     IndexerConfig{Workers: 4},
		Search:      SearchConfig{Metric: "cosine", TopK: 5},
		VectorStore: VectorStoreConfig{Type: "none"},
		Summarizer:  SummarizerConfig{Type: "frequency", MaxSentences: 3, MaxKeywords: 10},
		Log:         LogConfig{Level: "info", Pretty: true},
		Server:      ServerConfig{Addr: ":8080"},
	}
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	def := Default()
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = def.Embedder.Type
	}
	if cfg.Embedder.Type == "hashing" {
		if cfg.Embedder.Hashing == nil {
			cfg.Embedder.Hashing = &HashingEmbedderConfig{}
		}
		if cfg.Embedder.Hashing.Dimension == 0 {
			cfg.Embedder.Hashing.Dimension = def.Embedder.Hashing.Dimension
		}
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
		if cfg.Embedder.OpenAI.MaxRetries == 0 {
			cfg.Embedder.OpenAI.MaxRetries = 3
		}
	}
	if cfg.Chunker.TargetSize == 0 {
		cfg.Chunker.TargetSize = def.Chunker.TargetSize
	}
	if cfg.Chunker.Overlap == nil {
		cfg.Chunker.Overlap = def.Chunker.Overlap
	}
	if cfg.Cache.Type == "" {
		cfg.Cache.Type = def.Cache.Type
	}
	if cfg.Extractor.Binary == "" {
		cfg.Extractor.Binary = def.Extractor.Binary
	}
	if cfg.Extractor.TimeoutSecs == 0 {
		cfg.Extractor.TimeoutSecs = def.Extractor.TimeoutSecs
	}
	if cfg.Indexer.Workers == 0 {
		cfg.Indexer.Workers = def.Indexer.Workers
	}
	if cfg.Search.Metric == "" {
		cfg.Search.Metric = def.Search.Metric
	}
	if cfg.Search.TopK == 0 {
		cfg.Search.TopK = def.Search.TopK
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = def.VectorStore.Type
	}
	if cfg.VectorStore.Type == "qdrant" && cfg.VectorStore.Qdrant != nil {
		if cfg.VectorStore.Qdrant.Collection == "" {
			cfg.VectorStore.Qdrant.Collection = "ragspan"
		}
		if cfg.VectorStore.Qdrant.TimeoutSecs == 0 {
			cfg.VectorStore.Qdrant.TimeoutSecs = 15
		}
	}
	if cfg.Summarizer.Type == "" {
		cfg.Summarizer.Type = def.Summarizer.Type
	}
	if cfg.Summarizer.MaxSentences == 0 {
		cfg.Summarizer.MaxSentences = def.Summarizer.MaxSentences
	}
	if cfg.Summarizer.MaxKeywords == 0 {
		cfg.Summarizer.MaxKeywords = def.Summarizer.MaxKeywords
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = def.Server.Addr
	}
}

// Validate reports the first setting that cannot work.
func (c *AppConfig) Validate() error {
	switch c.Embedder.Type {
	case "hashing":
		if c.Embedder.Hashing != nil && c.Embedder.Hashing.Dimension < 0 {
			return fmt.Errorf("embedder.hashing.dimension must be positive")
		}
	case "openai":
	default:
		return fmt.Errorf("unknown embedder: %s", c.Embedder.Type)
	}
	if c.Chunker.TargetSize <= 0 {
		return fmt.Errorf("chunker.target_size must be positive")
	}
	if o := c.Chunker.Overlap; o == nil || *o < 0 || *o >= c.Chunker.TargetSize {
		return fmt.Errorf("chunker.overlap must be >= 0 and < target_size")
	}
	switch c.Cache.Type {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("unknown cache: %s", c.Cache.Type)
	}
	switch c.Search.Metric {
	case "cosine", "dot":
	default:
		return fmt.Errorf("unknown search metric: %s", c.Search.Metric)
	}
	if c.Search.TopK < 0 {
		return fmt.Errorf("search.top_k must be positive")
	}
	switch c.VectorStore.Type {
	case "none":
	case "qdrant":
		if c.VectorStore.Qdrant == nil || c.VectorStore.Qdrant.URL == "" {
			return fmt.Errorf("vector_store.qdrant.url is required")
		}
	default:
		return fmt.Errorf("unknown vector store: %s", c.VectorStore.Type)
	}
	switch c.Summarizer.Type {
	case "frequency", "none":
	default:
		return fmt.Errorf("unknown summarizer: %s", c.Summarizer.Type)
	}
	return nil
}

func intPtr(v int) *int { return &v }
