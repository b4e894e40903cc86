package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ChunkerConfig configures how documents are split into chunks.
// Type "window" cuts character windows; "sentence" groups whole sentences.
type ChunkerConfig struct {
	Type              string `yaml:"type" toml:"type"`
	ChunkSize         int    `yaml:"chunk_size" toml:"chunk_size"`
	Overlap           int    `yaml:"overlap" toml:"overlap"`
	SentenceSnap      bool   `yaml:"sentence_snap" toml:"sentence_snap"`
	SentencesPerChunk int    `yaml:"sentences_per_chunk" toml:"sentences_per_chunk"`
	OverlapSentences  int    `yaml:"overlap_sentences" toml:"overlap_sentences"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL           string  `yaml:"base_url" toml:"base_url"`
	APIKeyEnv         string  `yaml:"api_key_env" toml:"api_key_env"`
	Model             string  `yaml:"model" toml:"model"`
	TimeoutSecs       int     `yaml:"timeout_secs" toml:"timeout_secs"`
	MaxRetries        int     `yaml:"max_retries" toml:"max_retries"`
	RequestsPerSecond float64 `yaml:"requests_per_second" toml:"requests_per_second"`
}

// HashingEmbedderConfig configures the feature-hashing embedder.
type HashingEmbedderConfig struct {
	Dimension int `yaml:"dimension" toml:"dimension"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type      string                `yaml:"type" toml:"type"`
	BatchSize int                   `yaml:"batch_size" toml:"batch_size"`
	Hashing   HashingEmbedderConfig `yaml:"hashing" toml:"hashing"`
	OpenAI    OpenAIEmbedderConfig  `yaml:"openai" toml:"openai"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url" toml:"url"`
	APIKeyEnv   string `yaml:"api_key_env" toml:"api_key_env"`
	Collection  string `yaml:"collection" toml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs" toml:"timeout_secs"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string       `yaml:"type" toml:"type"`
	Qdrant QdrantConfig `yaml:"qdrant" toml:"qdrant"`
}

// RetrievalConfig holds the query-time relevance policy.
type RetrievalConfig struct {
	TopK            int     `yaml:"top_k" toml:"top_k"`
	MaxDistance     float64 `yaml:"max_distance" toml:"max_distance"`
	MinKeywordScore float64 `yaml:"min_keyword_score" toml:"min_keyword_score"`
}

// OpenAIGeneratorConfig configures the OpenAI chat generator.
type OpenAIGeneratorConfig struct {
	BaseURL           string  `yaml:"base_url" toml:"base_url"`
	APIKeyEnv         string  `yaml:"api_key_env" toml:"api_key_env"`
	Model             string  `yaml:"model" toml:"model"`
	RequestsPerSecond float64 `yaml:"requests_per_second" toml:"requests_per_second"`
}

// AnthropicGeneratorConfig configures the Anthropic messages generator.
type AnthropicGeneratorConfig struct {
	BaseURL   string `yaml:"base_url" toml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env" toml:"api_key_env"`
	Model     string `yaml:"model" toml:"model"`
	Version   string `yaml:"version" toml:"version"`
}

// GeneratorConfig selects the language model backend.
type GeneratorConfig struct {
	Type        string                   `yaml:"type" toml:"type"`
	Temperature float32                  `yaml:"temperature" toml:"temperature"`
	MaxTokens   int                      `yaml:"max_tokens" toml:"max_tokens"`
	TimeoutSecs int                      `yaml:"timeout_secs" toml:"timeout_secs"`
	MaxRetries  int                      `yaml:"max_retries" toml:"max_retries"`
	OpenAI      OpenAIGeneratorConfig    `yaml:"openai" toml:"openai"`
	Anthropic   AnthropicGeneratorConfig `yaml:"anthropic" toml:"anthropic"`
}

// PromptsConfig points at optional template overrides.
type PromptsConfig struct {
	SystemFile      string `yaml:"system_file" toml:"system_file"`
	AnswerFile      string `yaml:"answer_file" toml:"answer_file"`
	CompareFile     string `yaml:"compare_file" toml:"compare_file"`
	CompareMaxChars int    `yaml:"compare_max_chars" toml:"compare_max_chars"`
}

// SummarizerConfig selects and configures the summarizer.
type SummarizerConfig struct {
	Type         string `yaml:"type" toml:"type"`
	MaxSentences int    `yaml:"max_sentences" toml:"max_sentences"`
}

// SnapshotConfig locates the on-disk index snapshot. An empty path disables it.
type SnapshotConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// WatchConfig tunes the file watcher used by chat --watch and mcp --watch.
type WatchConfig struct {
	DebounceMillis int `yaml:"debounce_ms" toml:"debounce_ms"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Chunker     ChunkerConfig     `yaml:"chunker" toml:"chunker"`
	Embedder    EmbedderConfig    `yaml:"embedder" toml:"embedder"`
	VectorStore VectorStoreConfig `yaml:"vector_store" toml:"vector_store"`
	Retrieval   RetrievalConfig   `yaml:"retrieval" toml:"retrieval"`
	Generator   GeneratorConfig   `yaml:"generator" toml:"generator"`
	Prompts     PromptsConfig     `yaml:"prompts" toml:"prompts"`
	Summarizer  SummarizerConfig  `yaml:"summarizer" toml:"summarizer"`
	Snapshot    SnapshotConfig    `yaml:"snapshot" toml:"snapshot"`
	Watch       WatchConfig       `yaml:"watch" toml:"watch"`
	Log         LogConfig         `yaml:"log" toml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
// Files ending in .toml are parsed as TOML, everything else as YAML. Keys
// missing from the file keep their default values.
func Load(path string) (*AppConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	if isTOML(path) {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadDefault tries ./config.yaml and ./config.toml first, then ~/.config/rag/config.yaml.
// If none exists, it writes defaults to ~/.config/rag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	for _, p := range []string{"config.yaml", "config.toml"} {
		if _, err := os.Stat(p); err == nil {
			cfg, err := Load(p)
			return cfg, p, err
		}
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
	var (
		data []byte
		err  error
	)
	if isTOML(path) {
		data, err = toml.Marshal(cfg)
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks ranges and component names.
func (c *AppConfig) Validate() error {
	if c.Chunker.ChunkSize <= 0 {
		return fmt.Errorf("chunker.chunk_size must be positive, got %d", c.Chunker.ChunkSize)
	}
	if c.Chunker.Overlap < 0 {
		return fmt.Errorf("chunker.overlap must not be negative, got %d", c.Chunker.Overlap)
	}
	if !oneOf(c.Chunker.Type, "window", "sentence") {
		return fmt.Errorf("chunker.type must be window or sentence, got %q", c.Chunker.Type)
	}
	if !oneOf(c.Embedder.Type, "tfidf", "hashing", "openai") {
		return fmt.Errorf("embedder.type must be tfidf, hashing or openai, got %q", c.Embedder.Type)
	}
	if !oneOf(c.VectorStore.Type, "memory", "qdrant") {
		return fmt.Errorf("vector_store.type must be memory or qdrant, got %q", c.VectorStore.Type)
	}
	if !oneOf(c.Generator.Type, "auto", "none", "openai", "anthropic") {
		return fmt.Errorf("generator.type must be auto, none, openai or anthropic, got %q", c.Generator.Type)
	}
	if c.Retrieval.TopK < 1 {
		return fmt.Errorf("retrieval.top_k must be at least 1, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.MaxDistance < 0 {
		return fmt.Errorf("retrieval.max_distance must not be negative, got %f", c.Retrieval.MaxDistance)
	}
	if c.Retrieval.MinKeywordScore < 0 || c.Retrieval.MinKeywordScore > 1 {
		return fmt.Errorf("retrieval.min_keyword_score must be 0-1, got %f", c.Retrieval.MinKeywordScore)
	}
	if c.Generator.Temperature < 0 || c.Generator.Temperature > 2 {
		return fmt.Errorf("generator.temperature must be 0-2, got %f", c.Generator.Temperature)
	}
	if c.Generator.MaxRetries < 0 || c.Generator.MaxRetries > 10 {
		return fmt.Errorf("generator.max_retries must be 0-10, got %d", c.Generator.MaxRetries)
	}
	if c.Embedder.OpenAI.MaxRetries < 0 || c.Embedder.OpenAI.MaxRetries > 10 {
		return fmt.Errorf("embedder.openai.max_retries must be 0-10, got %d", c.Embedder.OpenAI.MaxRetries)
	}
	return nil
}

// Seconds converts a timeout_secs value to a duration.
func Seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// Env returns the value of the environment variable name, or "" when name is empty.
func Env(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}

func defaultUserConfigPath() (string, error) {
	dir, err := userConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func userConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "rag"), nil
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	snapshot := ""
	if dir, err := userConfigDir(); err == nil {
		snapshot = filepath.Join(dir, "index.db")
	}
	return &AppConfig{
		Chunker: ChunkerConfig{
			Type:              "window",
			ChunkSize:         700,
			Overlap:           150,
			SentenceSnap:      true,
			SentencesPerChunk: 5,
			OverlapSentences:  1,
		},
		Embedder: EmbedderConfig{
			Type:      "tfidf",
			BatchSize: 32,
			Hashing:   HashingEmbedderConfig{Dimension: 384},
			OpenAI: OpenAIEmbedderConfig{
				BaseURL:     "https://api.openai.com/v1",
				APIKeyEnv:   "OPENAI_API_KEY",
				Model:       "text-embedding-3-small",
				TimeoutSecs: 30,
				MaxRetries:  3,
			},
		},
		VectorStore: VectorStoreConfig{
			Type: "memory",
			Qdrant: QdrantConfig{
				URL:         "http://localhost:6333",
				APIKeyEnv:   "QDRANT_API_KEY",
				Collection:  "ragchat",
				TimeoutSecs: 15,
			},
		},
		Retrieval: RetrievalConfig{TopK: 5, MaxDistance: 1.3, MinKeywordScore: 0.1},
		Generator: GeneratorConfig{
			Type:        "auto",
			Temperature: 0.3,
			MaxTokens:   1024,
			TimeoutSecs: 60,
			MaxRetries:  2,
			OpenAI: OpenAIGeneratorConfig{
				BaseURL:   "https://api.openai.com/v1",
				APIKeyEnv: "OPENAI_API_KEY",
				Model:     "gpt-4o-mini",
			},
			Anthropic: AnthropicGeneratorConfig{
				BaseURL:   "https://api.anthropic.com",
				APIKeyEnv: "ANTHROPIC_API_KEY",
				Model:     "claude-3-5-haiku-latest",
				Version:   "2023-06-01",
			},
		},
		Prompts:    PromptsConfig{CompareMaxChars: 12000},
		Summarizer: SummarizerConfig{Type: "frequency", MaxSentences: 5},
		Snapshot:   SnapshotConfig{Path: snapshot},
		Watch:      WatchConfig{DebounceMillis: 500},
		Log:        LogConfig{Level: "info", Format: "text"},
	}
}

// applyConfigDefaults fills zero values a file set explicitly.
func applyConfigDefaults(cfg *AppConfig) {
	cfg.Chunker.Type = strings.ToLower(cfg.Chunker.Type)
	if cfg.Chunker.Type == "" {
		cfg.Chunker.Type = "window"
	}
	cfg.Embedder.Type = strings.ToLower(cfg.Embedder.Type)
	cfg.VectorStore.Type = strings.ToLower(cfg.VectorStore.Type)
	cfg.Generator.Type = strings.ToLower(cfg.Generator.Type)
	if cfg.Embedder.BatchSize <= 0 {
		cfg.Embedder.BatchSize = 32
	}
	if cfg.Embedder.Hashing.Dimension <= 0 {
		cfg.Embedder.Hashing.Dimension = 384
	}
	if cfg.Embedder.OpenAI.APIKeyEnv == "" {
		cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedder.OpenAI.Model == "" {
		cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
	}
	if cfg.Embedder.OpenAI.TimeoutSecs <= 0 {
		cfg.Embedder.OpenAI.TimeoutSecs = 30
	}
	if cfg.VectorStore.Qdrant.TimeoutSecs <= 0 {
		cfg.VectorStore.Qdrant.TimeoutSecs = 15
	}
	if cfg.Generator.TimeoutSecs <= 0 {
		cfg.Generator.TimeoutSecs = 60
	}
	if cfg.Generator.MaxTokens <= 0 {
		cfg.Generator.MaxTokens = 1024
	}
	if cfg.Prompts.CompareMaxChars <= 0 {
		cfg.Prompts.CompareMaxChars = 12000
	}
	if cfg.Summarizer.MaxSentences <= 0 {
		cfg.Summarizer.MaxSentences = 5
	}
	if cfg.Watch.DebounceMillis <= 0 {
		cfg.Watch.DebounceMillis = 500
	}
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}
