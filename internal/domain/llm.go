package domain

import (
	"context"
	"time"
)

// Generator produces a completion for a fully rendered prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, stop []string) (Generation, error)
}

// Generation is the output of a single completion.
type Generation struct {
	Text         string
	PromptTokens int
	OutputTokens int
	Duration     time.Duration
}
