package ollama

import (
	"context"
	"fmt"

	"github.com/ollama/ollama/api"

	"github.com/kailas-cloud/ragd/internal/domain"
	"github.com/kailas-cloud/ragd/internal/metrics"
)

var (
	_ domain.Embedder      = (*Client)(nil)
	_ domain.BatchEmbedder = (*Client)(nil)
	_ domain.HealthChecker = (*Client)(nil)
)

// Embed implements domain.Embedder via /api/embed.
func (c *Client) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := c.BatchEmbed(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{
		Embedding:    res.Embeddings[0],
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

// BatchEmbed implements domain.BatchEmbedder. Embeddings are returned in input order.
func (c *Client) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	call := metrics.StartEmbed(providerName, c.embModel)
	resp, err := c.api.Embed(ctx, &api.EmbedRequest{
		Model: c.embModel,
		Input: texts,
	})
	if err != nil {
		if ctx.Err() != nil {
			call.Fail(metrics.ReasonCanceled)
			return domain.BatchEmbeddingResult{}, fmt.Errorf("embed: %w", ctx.Err())
		}
		call.Fail(metrics.ReasonAPIError)
		return domain.BatchEmbeddingResult{}, fmt.Errorf("embed: %s: %w",
			apiErrorMessage(err), domain.ErrEmbeddingProviderError)
	}

	if len(resp.Embeddings) != len(texts) {
		call.Fail(metrics.ReasonShortResponse)
		return domain.BatchEmbeddingResult{}, fmt.Errorf("embed: got %d vectors for %d inputs: %w",
			len(resp.Embeddings), len(texts), domain.ErrEmbeddingProviderError)
	}
	call.Done(resp.PromptEvalCount, resp.PromptEvalCount)

	return domain.BatchEmbeddingResult{
		Embeddings:   resp.Embeddings,
		PromptTokens: resp.PromptEvalCount,
		TotalTokens:  resp.PromptEvalCount,
	}, nil
}
