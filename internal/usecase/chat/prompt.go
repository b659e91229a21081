package chat

import (
	"strings"

	"github.com/kailas-cloud/ragd/internal/domain"
)

const promptTemplate = `You are a helpful AI assistant.
Use the following pieces of context to answer the user's question.
If the answer is present in the context, output it directly.
If the answer is NOT in the context, say "I don't have that information."

Context:
{context}

Question: {question}

Answer:`

// StopSequences end generation before the model starts a new turn.
var StopSequences = []string{
	"\n\nQuestion:",
	"\n\nContext:",
	"\nQuestion:",
	"User:",
	"Assistant:",
}

const (
	noDocuments     = "No relevant documents found."
	truncatedMarker = "\n[... truncated ...]"
)

// BuildPrompt renders the answer prompt.
func BuildPrompt(context, question string) string {
	r := strings.NewReplacer("{context}", context, "{question}", question)
	return r.Replace(promptTemplate)
}

// FormatContext dedups retrieved chunks by their leading dedupLen characters,
// collapses whitespace and joins them as a bulleted list capped at maxChars.
func FormatContext(hits []domain.ScoredChunk, dedupLen, maxChars int) string {
	if len(hits) == 0 {
		return noDocuments
	}

	seen := make(map[string]struct{}, len(hits))
	parts := make([]string, 0, len(hits))
	for _, h := range hits {
		fp := strings.TrimSpace(prefix(h.Text, dedupLen))
		if _, dup := seen[fp]; dup {
			continue
		}
		seen[fp] = struct{}{}
		parts = append(parts, "- "+strings.Join(strings.Fields(h.Text), " "))
	}

	out := strings.Join(parts, "\n\n")
	if maxChars > 0 && len([]rune(out)) > maxChars {
		out = prefix(out, maxChars) + truncatedMarker
	}
	return out
}

// prefix returns the first n runes of s.
func prefix(s string, n int) string {
	if n <= 0 {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
