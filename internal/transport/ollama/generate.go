package ollama

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragd/internal/domain"
	"github.com/kailas-cloud/ragd/internal/metrics"
)

// Compile-time check: Client implements domain.Generator.
var _ domain.Generator = (*Client)(nil)

// Generate runs a non-streaming completion for prompt.
func (c *Client) Generate(ctx context.Context, prompt string, stop []string) (domain.Generation, error) {
	opts := maps.Clone(c.options)
	if len(stop) > 0 {
		opts["stop"] = stop
	}

	stream := false
	req := &api.GenerateRequest{
		Model:   c.model,
		Prompt:  prompt,
		Stream:  &stream,
		Options: opts,
	}

	var (
		sb   strings.Builder
		last api.GenerateResponse
	)
	start := time.Now()

	err := c.api.Generate(ctx, req, func(resp api.GenerateResponse) error {
		sb.WriteString(resp.Response)
		if resp.Done {
			last = resp
		}
		return nil
	})

	duration := time.Since(start)

	if err != nil {
		status := "error"
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			status = "timeout"
		}
		metrics.LLMRequestsTotal.WithLabelValues(c.model, status).Inc()
		if ctx.Err() != nil {
			return domain.Generation{}, fmt.Errorf("generate: %w", ctx.Err())
		}
		return domain.Generation{}, fmt.Errorf("generate: %s: %w", apiErrorMessage(err), domain.ErrLLMProviderError)
	}

	metrics.LLMRequestsTotal.WithLabelValues(c.model, "success").Inc()
	metrics.LLMRequestDuration.WithLabelValues(c.model).Observe(duration.Seconds())
	metrics.LLMTokensTotal.WithLabelValues(c.model, "prompt").Add(float64(last.PromptEvalCount))
	metrics.LLMTokensTotal.WithLabelValues(c.model, "output").Add(float64(last.EvalCount))

	c.logger.Debug("Generation finished",
		zap.String("model", c.model),
		zap.Duration("duration", duration),
		zap.Int("prompt_tokens", last.PromptEvalCount),
		zap.Int("output_tokens", last.EvalCount),
		zap.String("done_reason", last.DoneReason),
	)

	return domain.Generation{
		Text:         sb.String(),
		PromptTokens: last.PromptEvalCount,
		OutputTokens: last.EvalCount,
		Duration:     duration,
	}, nil
}

// Warmup loads the model into memory with a one-token generation.
func (c *Client) Warmup(ctx context.Context) error {
	stream := false
	opts := maps.Clone(c.options)
	opts["num_predict"] = 1

	req := &api.GenerateRequest{
		Model:   c.model,
		Prompt:  "Hi",
		Stream:  &stream,
		Options: opts,
	}

	start := time.Now()
	if err := c.api.Generate(ctx, req, func(api.GenerateResponse) error { return nil }); err != nil {
		return fmt.Errorf("warmup %s: %s: %w", c.model, apiErrorMessage(err), domain.ErrLLMProviderError)
	}
	c.logger.Info("Model warmed up", zap.String("model", c.model), zap.Duration("duration", time.Since(start)))
	return nil
}
