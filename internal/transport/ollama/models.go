package ollama

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/ragd/internal/domain"
)

// HealthCheck verifies that the server answers and lists models.
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.api.List(ctx); err != nil {
		return fmt.Errorf("list models: %s: %w", apiErrorMessage(err), domain.ErrLLMProviderError)
	}
	return nil
}

// EnsureModels checks that the generation and embedding models are installed.
func (c *Client) EnsureModels(ctx context.Context) error {
	resp, err := c.api.List(ctx)
	if err != nil {
		return fmt.Errorf("list models: %s: %w", apiErrorMessage(err), domain.ErrLLMProviderError)
	}

	installed := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		installed = append(installed, m.Name)
	}

	for _, want := range []string{c.model, c.embModel} {
		if !hasModel(installed, want) {
			return fmt.Errorf("%s (installed: %s): %w", want, strings.Join(installed, ", "), domain.ErrModelNotFound)
		}
	}
	return nil
}

// hasModel matches by exact name or by base name before the tag ("llama3.2" matches "llama3.2:1b").
func hasModel(installed []string, want string) bool {
	wantBase, _, _ := strings.Cut(want, ":")
	for _, name := range installed {
		if name == want {
			return true
		}
		base, _, _ := strings.Cut(name, ":")
		if base == wantBase {
			return true
		}
	}
	return false
}
