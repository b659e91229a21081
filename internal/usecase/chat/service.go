// Package chat answers questions from the indexed documents.
package chat

import (
	"context"
	"crypto/md5" //nolint:gosec // cache key, not a security boundary
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragd/internal/domain"
	"github.com/kailas-cloud/ragd/internal/metrics"
)

// Defaults used when Options leaves a field zero.
const (
	DefaultK               = 6
	DefaultMaxContextChars = 12000
	DefaultDedupPrefixLen  = 200
	DefaultTimeout         = 60 * time.Second
)

// Options tunes retrieval and the answer cache. CacheSize 0 disables the cache.
type Options struct {
	K               int
	MaxContextChars int
	DedupPrefixLen  int
	CacheSize       int
	Timeout         time.Duration
}

// Answer is the result of one question.
type Answer struct {
	Text     string
	Sources  []string
	Cached   bool
	TimedOut bool
	Duration time.Duration
}

type indexRef struct {
	idx domain.VectorIndex
}

// Service is the question answering pipeline.
type Service struct {
	embedder  domain.Embedder
	generator domain.Generator
	opts      Options
	cache     *lru.Cache[string, string]
	index     atomic.Pointer[indexRef]
	logger    *zap.Logger
	now       func() time.Time
}

// New creates a chat service with no index installed.
func New(embedder domain.Embedder, generator domain.Generator, opts Options, logger *zap.Logger) (*Service, error) {
	if opts.K <= 0 {
		opts.K = DefaultK
	}
	if opts.MaxContextChars <= 0 {
		opts.MaxContextChars = DefaultMaxContextChars
	}
	if opts.DedupPrefixLen <= 0 {
		opts.DedupPrefixLen = DefaultDedupPrefixLen
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	s := &Service{
		embedder:  embedder,
		generator: generator,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}
	if opts.CacheSize > 0 {
		c, err := lru.New[string, string](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("answer cache: %w", err)
		}
		s.cache = c
	}
	return s, nil
}

// SetIndex installs idx for subsequent questions. Questions already running keep the old one.
func (s *Service) SetIndex(idx domain.VectorIndex) {
	if idx == nil {
		s.index.Store(nil)
		return
	}
	s.index.Store(&indexRef{idx: idx})
}

// Index returns the installed index or nil.
func (s *Service) Index() domain.VectorIndex {
	if ref := s.index.Load(); ref != nil {
		return ref.idx
	}
	return nil
}

// Ready reports whether an index is installed.
func (s *Service) Ready() bool {
	return s.index.Load() != nil
}

// ClearCache drops every cached answer.
func (s *Service) ClearCache() {
	if s.cache != nil {
		s.cache.Purge()
	}
}

// Ask answers question from the installed index.
func (s *Service) Ask(ctx context.Context, question string) (Answer, error) {
	start := s.now()
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, domain.ErrEmptyQuestion
	}

	ref := s.index.Load()
	if ref == nil {
		return Answer{}, domain.ErrNotReady
	}

	key := cacheKey(question)
	if s.cache != nil {
		if text, ok := s.cache.Get(key); ok {
			metrics.AnswerCacheTotal.WithLabelValues("hit").Inc()
			s.logger.Debug("Answer cache hit", zap.String("key", key))
			return Answer{Text: text, Cached: true, Duration: s.now().Sub(start)}, nil
		}
		metrics.AnswerCacheTotal.WithLabelValues("miss").Inc()
	}

	askCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	text, sources, err := s.answer(askCtx, ref.idx, question)
	if err != nil {
		// only our own deadline maps to the fallback; caller cancellation is an error
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			s.logger.Warn("Question timed out",
				zap.Duration("timeout", s.opts.Timeout),
				zap.Int("question_len", len(question)),
			)
			return Answer{Text: NoInformation, TimedOut: true, Duration: s.now().Sub(start)}, nil
		}
		return Answer{}, err
	}

	if s.cache != nil {
		s.cache.Add(key, text)
	}

	ans := Answer{Text: text, Sources: sources, Duration: s.now().Sub(start)}
	s.logger.Info("Question answered",
		zap.Int("question_len", len(question)),
		zap.Int("answer_len", len(text)),
		zap.Strings("sources", sources),
		zap.Duration("duration", ans.Duration),
	)
	return ans, nil
}

func (s *Service) answer(ctx context.Context, idx domain.VectorIndex, question string) (string, []string, error) {
	emb, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return "", nil, fmt.Errorf("embed question: %w", err)
	}

	hits, err := idx.Search(ctx, emb.Embedding, s.opts.K)
	if err != nil {
		return "", nil, fmt.Errorf("search: %w", err)
	}

	contextText := FormatContext(hits, s.opts.DedupPrefixLen, s.opts.MaxContextChars)
	s.logger.Debug("Context assembled",
		zap.Int("hits", len(hits)),
		zap.Int("context_len", len(contextText)),
	)

	gen, err := s.generator.Generate(ctx, BuildPrompt(contextText, question), StopSequences)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return "", nil, err
		}
		if errors.Is(err, domain.ErrLLMProviderError) {
			return "", nil, fmt.Errorf("generate: %w", err)
		}
		return "", nil, fmt.Errorf("generate: %w: %w", domain.ErrLLMProviderError, err)
	}

	return Clean(gen.Text), sources(hits), nil
}

// sources lists distinct source documents in rank order.
func sources(hits []domain.ScoredChunk) []string {
	seen := make(map[string]struct{}, len(hits))
	var out []string
	for _, h := range hits {
		if _, ok := seen[h.Source]; ok {
			continue
		}
		seen[h.Source] = struct{}{}
		out = append(out, h.Source)
	}
	return out
}

func cacheKey(question string) string {
	sum := md5.Sum([]byte(strings.ToLower(question))) //nolint:gosec // see import
	return hex.EncodeToString(sum[:])
}
