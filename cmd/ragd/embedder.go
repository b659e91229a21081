package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragd/internal/config"
	"github.com/kailas-cloud/ragd/internal/domain"
	"github.com/kailas-cloud/ragd/internal/metrics"
	"github.com/kailas-cloud/ragd/internal/repository/embcache"
	"github.com/kailas-cloud/ragd/internal/transport/ollama"
	openaiEmb "github.com/kailas-cloud/ragd/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/ragd/internal/usecase/embedding"
)

// cacheKV is the store the embedding cache needs. Both the local and the remote store satisfy it.
type cacheKV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// ollamaEmbeddingModel returns the embedding model the Ollama client must serve.
func ollamaEmbeddingModel(cfg config.Config) string {
	if cfg.Embedding.Provider == "ollama" {
		return cfg.Embedding.Model
	}
	return cfg.LLM.Model
}

// buildEmbedder assembles the decorator chain: provider -> cached -> instrumented -> instruction.
// It also returns the bare provider for health checks.
func buildEmbedder(
	cfg config.Config,
	llm *ollama.Client,
	instruction string,
	store cacheKV,
	logger *zap.Logger,
) (domain.Embedder, domain.HealthChecker) {
	var base interface {
		domain.Embedder
		domain.HealthChecker
	} = llm
	if cfg.Embedding.Provider == "openai" {
		base = openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Logger:     logger,
		})
	}

	var embedder domain.Embedder = base
	if cfg.Embedding.Cache && store != nil {
		embedder = embcache.New(base, store, cfg.Embedding.Model, metrics.EmbeddingCacheTotal, logger)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(
		embedder, cfg.Embedding.Provider, cfg.Embedding.Model,
		embeddinguc.Options{
			BatchSize:     cfg.Embedding.BatchSize,
			RetryAttempts: cfg.Embedding.RetryAttempts,
		},
		logger,
	)

	// outermost so the cache key covers the instruction
	return domain.NewInstructionEmbedder(embedder, instruction), base
}
