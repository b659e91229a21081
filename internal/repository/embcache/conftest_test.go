package embcache

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragd/internal/db"
	"github.com/kailas-cloud/ragd/internal/domain"
)

// fakeProvider embeds a text as {len(text), 1} and records every text it was
// asked for.
type fakeProvider struct {
	mu     sync.Mutex
	tokens int // per text
	err    error
	calls  int
	seen   []string
}

func (p *fakeProvider) vector(text string) []float32 {
	return []float32{float32(len(text)), 1}
}

func (p *fakeProvider) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.seen = append(p.seen, text)
	if p.err != nil {
		return domain.EmbeddingResult{}, p.err
	}
	return domain.EmbeddingResult{Embedding: p.vector(text), PromptTokens: p.tokens, TotalTokens: p.tokens}, nil
}

func (p *fakeProvider) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.seen = append(p.seen, texts...)
	if p.err != nil {
		return domain.BatchEmbeddingResult{}, p.err
	}
	res := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	for i, t := range texts {
		res.Embeddings[i] = p.vector(t)
	}
	res.PromptTokens = p.tokens * len(texts)
	res.TotalTokens = p.tokens * len(texts)
	return res, nil
}

// memStore is a map-backed store. getErr and setErr, when set, fail every call.
type memStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
	setErr error
	sets   int
}

func newMemStore() *memStore { return &memStore{data: map[string][]byte{}} }

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *memStore) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.sets++
	m.data[key] = value
	return nil
}

// seed stores vec under the cache key ce would use for text.
func seed(t *testing.T, ce *CachedEmbedder, s *memStore, text string, vec []float32) {
	t.Helper()
	s.data[ce.cacheKey(text)] = vectorToCacheBytes(vec)
}

func newTestCache(t *testing.T) (*CachedEmbedder, *fakeProvider, *memStore) {
	t.Helper()
	p := &fakeProvider{tokens: 3}
	s := newMemStore()
	return New(p, s, "nomic-embed-text", nil, zap.NewNop()), p, s
}
