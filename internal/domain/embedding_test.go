package domain

import (
	"context"
	"errors"
	"testing"
)

type stubEmbedder struct {
	result EmbeddingResult
	err    error
	got    []string
}

func (s *stubEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	s.got = append(s.got, text)
	return s.result, s.err
}

type stubBatchEmbedder struct {
	stubEmbedder
	batches [][]string
}

func (s *stubBatchEmbedder) BatchEmbed(_ context.Context, texts []string) (BatchEmbeddingResult, error) {
	s.batches = append(s.batches, texts)
	out := BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	for i := range texts {
		out.Embeddings[i] = []float32{float32(i)}
	}
	return out, nil
}

func TestInstructionEmbedder_PrependsInstruction(t *testing.T) {
	inner := &stubEmbedder{result: EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}}}
	emb := NewInstructionEmbedder(inner, "search_query: ")

	result, err := emb.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.got[0] != "search_query: hello world" {
		t.Errorf("expected prepended text, got %q", inner.got[0])
	}
	if len(result.Embedding) != 3 {
		t.Errorf("expected 3-element vector, got %d", len(result.Embedding))
	}
}

func TestInstructionEmbedder_EmptyInstructionIsPassThrough(t *testing.T) {
	inner := &stubEmbedder{}
	if emb := NewInstructionEmbedder(inner, ""); emb != Embedder(inner) {
		t.Error("expected inner embedder to be returned unchanged")
	}
}

func TestInstructionEmbedder_ErrorPropagation(t *testing.T) {
	innerErr := errors.New("provider down")
	emb := NewInstructionEmbedder(&stubEmbedder{err: innerErr}, "search_document: ")

	_, err := emb.Embed(context.Background(), "hello")
	if !errors.Is(err, innerErr) {
		t.Errorf("expected wrapped inner error, got %v", err)
	}
}

func TestInstructionEmbedder_BatchUsesNativeBatch(t *testing.T) {
	inner := &stubBatchEmbedder{}
	emb := NewInstructionEmbedder(inner, "doc: ").(BatchEmbedder)

	res, err := emb.BatchEmbed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inner.batches) != 1 || inner.batches[0][1] != "doc: b" {
		t.Errorf("unexpected batches: %v", inner.batches)
	}
	if len(res.Embeddings) != 2 {
		t.Errorf("expected 2 embeddings, got %d", len(res.Embeddings))
	}
}

func TestBatchFallback_SumsUsage(t *testing.T) {
	inner := &stubEmbedder{result: EmbeddingResult{Embedding: []float32{1}, PromptTokens: 2, TotalTokens: 3}}

	res, err := EmbedAll(context.Background(), inner, []string{"x", "y", "z"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inner.got) != 3 {
		t.Errorf("expected 3 Embed calls, got %d", len(inner.got))
	}
	if res.PromptTokens != 6 || res.TotalTokens != 9 {
		t.Errorf("usage = %d/%d, want 6/9", res.PromptTokens, res.TotalTokens)
	}
}

func TestBatchFallback_ErrorIndex(t *testing.T) {
	inner := &stubEmbedder{err: errors.New("boom")}
	if _, err := BatchFallback(context.Background(), inner, []string{"a"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestIsSupported(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"manual.pdf", true},
		{"Notes.DOCX", true},
		{"readme.txt", true},
		{"image.png", false},
		{"noext", false},
	}
	for _, tc := range tests {
		if got := IsSupported(tc.name); got != tc.want {
			t.Errorf("IsSupported(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}
