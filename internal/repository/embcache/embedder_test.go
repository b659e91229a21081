package embcache

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragd/internal/db/badger"
)

func TestEmbed_MissThenHit(t *testing.T) {
	ce, p, s := newTestCache(t)
	ctx := context.Background()

	first, err := ce.Embed(ctx, "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Embedding[0] != 5 || first.TotalTokens != 3 {
		t.Fatalf("unexpected miss result: %+v", first)
	}
	if s.sets != 1 {
		t.Fatalf("expected one cache write, got %d", s.sets)
	}

	second, err := ce.Embed(ctx, "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.calls != 1 {
		t.Errorf("provider called %d times, want 1", p.calls)
	}
	if second.Embedding[0] != 5 || second.TotalTokens != 0 {
		t.Errorf("hit should return the cached vector with zero tokens, got %+v", second)
	}
}

func TestEmbed_ProviderError(t *testing.T) {
	ce, p, s := newTestCache(t)
	p.err = errors.New("provider down")

	if _, err := ce.Embed(context.Background(), "x"); !errors.Is(err, p.err) {
		t.Fatalf("expected wrapped provider error, got %v", err)
	}
	if s.sets != 0 {
		t.Error("failed embeddings must not be cached")
	}
}

func TestEmbed_StoreFailuresDegradeToProvider(t *testing.T) {
	ce, p, s := newTestCache(t)
	s.getErr = errors.New("connection reset")
	s.setErr = errors.New("connection reset")

	res, err := ce.Embed(context.Background(), "abc")
	if err != nil {
		t.Fatalf("store errors must not fail the embedding: %v", err)
	}
	if res.Embedding[0] != 3 || p.calls != 1 {
		t.Errorf("expected provider vector, got %+v after %d calls", res, p.calls)
	}
}

func TestEmbed_CorruptEntryIsIgnored(t *testing.T) {
	ce, p, s := newTestCache(t)
	s.data[ce.cacheKey("x")] = []byte{1, 2, 3}

	res, err := ce.Embed(context.Background(), "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.calls != 1 || res.Embedding[0] != 1 {
		t.Errorf("expected provider fallback, got %+v", res)
	}
}

func TestBatchEmbed_OnlyMissesReachProvider(t *testing.T) {
	ce, p, s := newTestCache(t)
	seed(t, ce, s, "cached", []float32{9, 9})

	res, err := ce.BatchEmbed(context.Background(), []string{"a", "cached", "bbb"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 3 {
		t.Fatalf("expected 3 embeddings, got %d", len(res.Embeddings))
	}
	if res.Embeddings[0][0] != 1 || res.Embeddings[1][0] != 9 || res.Embeddings[2][0] != 3 {
		t.Errorf("embeddings out of order: %v", res.Embeddings)
	}
	if strings.Join(p.seen, ",") != "a,bbb" {
		t.Errorf("provider saw %v, want [a bbb]", p.seen)
	}
	if res.TotalTokens != 6 {
		t.Errorf("TotalTokens = %d, want 6", res.TotalTokens)
	}
	if s.sets != 2 {
		t.Errorf("expected 2 cache writes, got %d", s.sets)
	}
}

func TestBatchEmbed_RepeatedTextEmbeddedOnce(t *testing.T) {
	ce, p, _ := newTestCache(t)

	res, err := ce.BatchEmbed(context.Background(), []string{"dup", "x", "dup"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.seen) != 2 {
		t.Errorf("provider saw %v, want each text once", p.seen)
	}
	if res.Embeddings[0] == nil || res.Embeddings[2] == nil || res.Embeddings[2][0] != 3 {
		t.Errorf("both copies need the vector: %v", res.Embeddings)
	}
}

func TestBatchEmbed_AllHits(t *testing.T) {
	ce, p, s := newTestCache(t)
	seed(t, ce, s, "a", []float32{1})
	seed(t, ce, s, "b", []float32{2})

	res, err := ce.BatchEmbed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.calls != 0 || res.TotalTokens != 0 {
		t.Errorf("all hits: calls=%d tokens=%d", p.calls, res.TotalTokens)
	}
}

func TestBatchEmbed_ProviderError(t *testing.T) {
	ce, p, _ := newTestCache(t)
	p.err = errors.New("api down")

	if _, err := ce.BatchEmbed(context.Background(), []string{"a"}); err == nil {
		t.Fatal("expected error from provider")
	}
}

func TestBatchEmbed_Empty(t *testing.T) {
	ce, p, _ := newTestCache(t)

	res, err := ce.BatchEmbed(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Embeddings != nil || p.calls != 0 {
		t.Errorf("expected no work for empty input")
	}
}

func TestBatchEmbed_CountsHitsAndMisses(t *testing.T) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_cache_total"}, []string{"result"})
	p := &fakeProvider{}
	s := newMemStore()
	ce := New(p, s, "m", counter, zap.NewNop())
	seed(t, ce, s, "a", []float32{2})

	if _, err := ce.BatchEmbed(context.Background(), []string{"a", "b", "c"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("hit")); got != 1 {
		t.Errorf("hits = %v, want 1", got)
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("miss")); got != 2 {
		t.Errorf("misses = %v, want 2", got)
	}
}

func TestCacheKey_ScopedByModel(t *testing.T) {
	a := New(&fakeProvider{}, newMemStore(), "model-a", nil, nil)
	b := New(&fakeProvider{}, newMemStore(), "model-b", nil, nil)

	ka, kb := a.cacheKey("same text"), b.cacheKey("same text")
	if ka == kb {
		t.Fatal("cache keys must differ across models")
	}
	if !strings.HasPrefix(ka, "ragd:emb_cache:model-a:") {
		t.Errorf("unexpected key %q", ka)
	}
	if len(ka) != len("ragd:emb_cache:model-a:")+64 {
		t.Errorf("expected hex sha256 suffix, got %q", ka)
	}
}

func TestCachedEmbedder_BadgerStore(t *testing.T) {
	store, err := badger.Open(badger.Config{InMemory: true, Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	p := &fakeProvider{}
	ctx := context.Background()
	ce := New(p, store, "m", nil, zap.NewNop())

	if _, err := ce.BatchEmbed(ctx, []string{"one", "three"}); err != nil {
		t.Fatalf("first batch: %v", err)
	}

	// a fresh decorator over the same store sees the persisted vectors
	again := New(p, store, "m", nil, zap.NewNop())
	res, err := again.BatchEmbed(ctx, []string{"three", "one"})
	if err != nil {
		t.Fatalf("second batch: %v", err)
	}
	if p.calls != 1 {
		t.Errorf("provider called %d times, want 1", p.calls)
	}
	if res.Embeddings[0][0] != 5 || res.Embeddings[1][0] != 3 {
		t.Errorf("unexpected vectors: %v", res.Embeddings)
	}
}
