// Package app assembles a RAGService from configuration.
package app

import (
	"fmt"
	"log/slog"

	"ragchat/internal/chunker"
	"ragchat/internal/config"
	"ragchat/internal/domain"
	"ragchat/internal/embedding/hashing"
	openaiemb "ragchat/internal/embedding/openai"
	"ragchat/internal/embedding/tfidf"
	"ragchat/internal/generator"
	"ragchat/internal/generator/anthropic"
	openaigen "ragchat/internal/generator/openai"
	"ragchat/internal/loader"
	"ragchat/internal/prompt"
	"ragchat/internal/service"
	"ragchat/internal/snapshot"
	"ragchat/internal/summarizer"
	"ragchat/internal/vectorstore"
	"ragchat/internal/vectorstore/memory"
	"ragchat/internal/vectorstore/qdrant"
)

// NewService builds the service described by cfg.
func NewService(cfg *config.AppConfig, log *slog.Logger) (*service.RAGService, error) {
	emb, err := NewEmbedder(cfg.Embedder)
	if err != nil {
		return nil, err
	}
	gen, err := NewGenerator(cfg.Generator)
	if err != nil {
		return nil, err
	}
	prompts, err := prompt.Load(prompt.Files{
		System:  cfg.Prompts.SystemFile,
		Answer:  cfg.Prompts.AnswerFile,
		Compare: cfg.Prompts.CompareFile,
	})
	if err != nil {
		return nil, err
	}
	var snaps *snapshot.Store
	if cfg.Snapshot.Path != "" {
		snaps = snapshot.New(cfg.Snapshot.Path)
	}
	var sum domain.Summarizer
	if cfg.Summarizer.Type != "none" {
		sum = summarizer.NewFrequencySummarizer()
	}

	log.Debug("components selected",
		"embedder", emb.Name(),
		"vector_store", cfg.VectorStore.Type,
		"generator", gen.Name(),
		"snapshot", cfg.Snapshot.Path,
	)
	return service.NewRAGService(service.Deps{
		Loader:     loader.New(),
		Chunker:    NewChunker(cfg.Chunker),
		Embedder:   emb,
		NewIndex:   NewIndexFactory(cfg.VectorStore),
		Generator:  gen,
		Summarizer: sum,
		Prompts:    prompts,
		Snapshots:  snaps,
		Logger:     log,
	}, service.Options{
		TopK:                cfg.Retrieval.TopK,
		MaxDistance:         cfg.Retrieval.MaxDistance,
		MinKeywordScore:     cfg.Retrieval.MinKeywordScore,
		EmbedBatchSize:      cfg.Embedder.BatchSize,
		SummaryMaxSentences: cfg.Summarizer.MaxSentences,
		CompareMaxChars:     cfg.Prompts.CompareMaxChars,
		Temperature:         cfg.Generator.Temperature,
		MaxTokens:           cfg.Generator.MaxTokens,
	}), nil
}

// NewChunker returns the configured chunker.
func NewChunker(cfg config.ChunkerConfig) domain.Chunker {
	if cfg.Type == "sentence" {
		return chunker.NewSentenceChunker(cfg.SentencesPerChunk, cfg.OverlapSentences)
	}
	return chunker.NewWindowChunker(cfg.ChunkSize, cfg.Overlap, chunker.WithSentenceSnap(cfg.SentenceSnap))
}

// NewEmbedder returns the configured embedder.
func NewEmbedder(cfg config.EmbedderConfig) (domain.Embedder, error) {
	switch cfg.Type {
	case "", "tfidf":
		return tfidf.NewEmbedder(), nil
	case "hashing":
		return hashing.NewEmbedder(cfg.Hashing.Dimension), nil
	case "openai":
		c, err := openaiemb.NewClient(openaiemb.Config{
			BaseURL:           cfg.OpenAI.BaseURL,
			APIKey:            config.Env(cfg.OpenAI.APIKeyEnv),
			Model:             cfg.OpenAI.Model,
			Timeout:           config.Seconds(cfg.OpenAI.TimeoutSecs),
			BatchSize:         cfg.BatchSize,
			MaxRetries:        cfg.OpenAI.MaxRetries,
			RequestsPerSecond: cfg.OpenAI.RequestsPerSecond,
		})
		if err != nil {
			return nil, fmt.Errorf("embedder: %w (set %s)", err, cfg.OpenAI.APIKeyEnv)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown embedder type: %s", cfg.Type)
	}
}

// NewGenerator returns the configured generator. "auto" picks OpenAI when
// its key is set, then Anthropic, and falls back to the null generator.
func NewGenerator(cfg config.GeneratorConfig) (domain.Generator, error) {
	switch cfg.Type {
	case "none":
		return generator.Null{}, nil
	case "openai":
		return newOpenAIGenerator(cfg)
	case "anthropic":
		return newAnthropicGenerator(cfg)
	case "", "auto":
		if config.Env(cfg.OpenAI.APIKeyEnv) != "" {
			return newOpenAIGenerator(cfg)
		}
		if config.Env(cfg.Anthropic.APIKeyEnv) != "" {
			return newAnthropicGenerator(cfg)
		}
		return generator.Null{}, nil
	default:
		return nil, fmt.Errorf("unknown generator type: %s", cfg.Type)
	}
}

func newOpenAIGenerator(cfg config.GeneratorConfig) (domain.Generator, error) {
	g, err := openaigen.New(openaigen.Config{
		BaseURL:           cfg.OpenAI.BaseURL,
		APIKey:            config.Env(cfg.OpenAI.APIKeyEnv),
		Model:             cfg.OpenAI.Model,
		Timeout:           config.Seconds(cfg.TimeoutSecs),
		MaxRetries:        cfg.MaxRetries,
		RequestsPerSecond: cfg.OpenAI.RequestsPerSecond,
	})
	if err != nil {
		return nil, fmt.Errorf("generator: %w (set %s)", err, cfg.OpenAI.APIKeyEnv)
	}
	return g, nil
}

func newAnthropicGenerator(cfg config.GeneratorConfig) (domain.Generator, error) {
	g, err := anthropic.New(anthropic.Config{
		APIKey:     config.Env(cfg.Anthropic.APIKeyEnv),
		BaseURL:    cfg.Anthropic.BaseURL,
		Model:      cfg.Anthropic.Model,
		Version:    cfg.Anthropic.Version,
		Timeout:    config.Seconds(cfg.TimeoutSecs),
		MaxRetries: cfg.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("generator: %w (set %s)", err, cfg.Anthropic.APIKeyEnv)
	}
	return g, nil
}

// NewIndexFactory returns a factory for the configured vector store.
func NewIndexFactory(cfg config.VectorStoreConfig) vectorstore.Factory {
	switch cfg.Type {
	case "qdrant":
		qc := qdrant.Config{
			URL:        cfg.Qdrant.URL,
			APIKey:     config.Env(cfg.Qdrant.APIKeyEnv),
			Collection: cfg.Qdrant.Collection,
			Timeout:    config.Seconds(cfg.Qdrant.TimeoutSecs),
		}
		return func() domain.Index { return qdrant.NewIndex(qc) }
	default:
		return func() domain.Index { return memory.NewIndex() }
	}
}
