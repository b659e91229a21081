// Package pipeline runs the chunk, embed and index steps in order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragd/internal/domain"
	"github.com/kailas-cloud/ragd/internal/loader"
	"github.com/kailas-cloud/ragd/internal/metrics"
)

// DefaultBatchSize is the number of chunks embedded per call.
const DefaultBatchSize = 32

// Service is the processing gate. Only one step runs at a time.
type Service struct {
	docs      DocumentSource
	splitter  Splitter
	embedder  domain.Embedder
	builder   IndexBuilder
	installer Installer
	batchSize int
	logger    *zap.Logger
	now       func() time.Time

	run sync.Mutex // held while a step runs

	mu         sync.RWMutex
	gen        uint64 // bumped by Reset; a step started under an older gen discards its result
	steps      map[Step]*StepStatus
	documents  int
	failedDocs []string
	chunks     []domain.Chunk
	vectors    [][]float32
	tokens     int
	indexed    int
}

// New creates a pipeline service.
func New(
	docs DocumentSource,
	splitter Splitter,
	embedder domain.Embedder,
	builder IndexBuilder,
	installer Installer,
	batchSize int,
	logger *zap.Logger,
) *Service {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	s := &Service{
		docs:      docs,
		splitter:  splitter,
		embedder:  embedder,
		builder:   builder,
		installer: installer,
		batchSize: batchSize,
		logger:    logger,
		now:       time.Now,
	}
	s.resetLocked()
	return s
}

// Run executes a single step.
func (s *Service) Run(ctx context.Context, step Step) (Status, error) {
	if !s.run.TryLock() {
		return s.Status(), fmt.Errorf("%s: %w", step, domain.ErrBusy)
	}
	defer s.run.Unlock()

	err := s.runStep(ctx, step)
	return s.Status(), err
}

// Chunk loads all documents and splits them.
func (s *Service) Chunk(ctx context.Context) (Status, error) { return s.Run(ctx, StepChunk) }

// Embed vectorises the chunks.
func (s *Service) Embed(ctx context.Context) (Status, error) { return s.Run(ctx, StepEmbed) }

// Index builds the vector index and installs it.
func (s *Service) Index(ctx context.Context) (Status, error) { return s.Run(ctx, StepIndex) }

// Process runs every step in order, stopping at the first failure.
func (s *Service) Process(ctx context.Context) (Status, error) {
	if !s.run.TryLock() {
		return s.Status(), fmt.Errorf("process: %w", domain.ErrBusy)
	}
	defer s.run.Unlock()

	for _, step := range Steps {
		if err := s.runStep(ctx, step); err != nil {
			return s.Status(), err
		}
	}
	return s.Status(), nil
}

// Reset returns every step to pending and drops intermediate results.
// The installed index keeps serving until the next Index step.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	s.logger.Info("Pipeline reset")
}

// OnDocumentsChanged matches library.ChangeFunc.
func (s *Service) OnDocumentsChanged(_ context.Context, name string) {
	s.logger.Debug("Documents changed", zap.String("name", name))
	s.Reset()
}

// Status returns a copy of the current state.
func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		Steps:         make([]StepStatus, 0, len(Steps)),
		Documents:     s.documents,
		FailedDocs:    append([]string(nil), s.failedDocs...),
		Chunks:        len(s.chunks),
		Vectors:       len(s.vectors),
		EmbedTokens:   s.tokens,
		IndexBackend:  s.builder.Kind(),
		IndexedChunks: s.indexed,
	}
	for _, step := range Steps {
		st.Steps = append(st.Steps, *s.steps[step])
	}
	return st
}

func (s *Service) resetLocked() {
	s.gen++
	s.steps = make(map[Step]*StepStatus, len(Steps))
	for _, step := range Steps {
		s.steps[step] = &StepStatus{Step: step, State: StatePending}
		metrics.PipelineProgress.WithLabelValues(string(step)).Set(0)
	}
	s.documents = 0
	s.failedDocs = nil
	s.chunks = nil
	s.vectors = nil
	s.tokens = 0
}

// runStep checks ordering, marks the step running and dispatches. s.run is held.
func (s *Service) runStep(ctx context.Context, step Step) error {
	gen, err := s.begin(step)
	if err != nil {
		return err
	}

	start := s.now()
	log := s.logger.With(zap.String("step", string(step)))
	log.Info("Pipeline step started")

	switch step {
	case StepChunk:
		err = s.chunk(ctx, gen)
	case StepEmbed:
		err = s.embed(ctx, gen)
	case StepIndex:
		err = s.index(ctx, gen)
	}

	duration := s.now().Sub(start)
	metrics.PipelineStepDuration.WithLabelValues(string(step)).Observe(duration.Seconds())

	s.finish(step, gen, err)

	if err != nil {
		metrics.PipelineStepsTotal.WithLabelValues(string(step), "error").Inc()
		log.Error("Pipeline step failed", zap.Duration("duration", duration), zap.Error(err))
		return fmt.Errorf("%s: %w", step, err)
	}
	metrics.PipelineStepsTotal.WithLabelValues(string(step), "success").Inc()
	log.Info("Pipeline step completed", zap.Duration("duration", duration))
	return nil
}

func (s *Service) begin(step Step) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev := previous(step); prev != "" && s.steps[prev].State != StateDone {
		return 0, fmt.Errorf("%s requires %s to complete first: %w", step, prev, domain.ErrStepOrder)
	}

	// rerunning a step invalidates everything after it
	invalidate := false
	for _, st := range Steps {
		if st == step {
			invalidate = true
		}
		if invalidate {
			*s.steps[st] = StepStatus{Step: st, State: StatePending}
			metrics.PipelineProgress.WithLabelValues(string(st)).Set(0)
		}
	}

	now := s.now()
	ss := s.steps[step]
	ss.State = StateRunning
	ss.StartedAt = &now
	return s.gen, nil
}

func (s *Service) finish(step Step, gen uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		return
	}
	now := s.now()
	ss := s.steps[step]
	ss.FinishedAt = &now
	if err != nil {
		ss.State = StateFailed
		ss.Error = err.Error()
		return
	}
	ss.State = StateDone
	metrics.PipelineProgress.WithLabelValues(string(step)).Set(1)
}

var errReset = errors.New("pipeline was reset while the step was running")

func (s *Service) chunk(ctx context.Context, gen uint64) error {
	paths, err := s.docs.Paths(ctx)
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}
	if len(paths) == 0 {
		return domain.ErrNoDocuments
	}

	s.setProgress(StepChunk, gen, 0, len(paths))

	docs, failed := loader.LoadAll(paths, s.logger)
	if len(docs) == 0 {
		return fmt.Errorf("all %d documents failed to load: %w", len(failed), domain.ErrNoDocuments)
	}
	chunks := s.splitter.ChunkAll(docs)
	if len(chunks) == 0 {
		return fmt.Errorf("documents produced no chunks: %w", domain.ErrNoDocuments)
	}

	failedNames := make([]string, len(failed))
	for i, f := range failed {
		failedNames[i] = filepath.Base(f.Path)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return errReset
	}
	s.documents = len(docs)
	s.failedDocs = failedNames
	s.chunks = chunks
	s.vectors = nil
	s.tokens = 0
	s.steps[StepChunk].Done = len(paths)
	s.steps[StepChunk].Total = len(paths)

	s.logger.Info("Documents chunked",
		zap.Int("documents", len(docs)),
		zap.Int("failed", len(failed)),
		zap.Int("chunks", len(chunks)),
	)
	return nil
}

func (s *Service) embed(ctx context.Context, gen uint64) error {
	s.mu.RLock()
	chunks := s.chunks
	s.mu.RUnlock()

	if len(chunks) == 0 {
		return fmt.Errorf("nothing to embed: %w", domain.ErrNoDocuments)
	}

	vectors := make([][]float32, 0, len(chunks))
	tokens := 0
	s.setProgress(StepEmbed, gen, 0, len(chunks))

	for start := 0; start < len(chunks); start += s.batchSize {
		end := min(start+s.batchSize, len(chunks))
		texts := make([]string, end-start)
		for i := range texts {
			texts[i] = chunks[start+i].Text
		}

		res, err := domain.EmbedAll(ctx, s.embedder, texts)
		if err != nil {
			return fmt.Errorf("embed chunks [%d:%d]: %w", start, end, err)
		}
		if len(res.Embeddings) != len(texts) {
			return fmt.Errorf("embed chunks [%d:%d]: got %d vectors: %w",
				start, end, len(res.Embeddings), domain.ErrEmbeddingProviderError)
		}
		vectors = append(vectors, res.Embeddings...)
		tokens += res.TotalTokens

		s.setProgress(StepEmbed, gen, end, len(chunks))
		s.logger.Debug("Embedding progress", zap.Int("done", end), zap.Int("total", len(chunks)))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return errReset
	}
	s.vectors = vectors
	s.tokens = tokens
	return nil
}

func (s *Service) index(ctx context.Context, gen uint64) error {
	s.mu.RLock()
	chunks, vectors := s.chunks, s.vectors
	s.mu.RUnlock()

	if len(vectors) == 0 || len(vectors) != len(chunks) {
		return fmt.Errorf("have %d chunks and %d vectors: %w", len(chunks), len(vectors), domain.ErrNoDocuments)
	}

	s.setProgress(StepIndex, gen, 0, len(chunks))

	idx, err := s.builder.Build(ctx, chunks, vectors)
	if err != nil {
		return fmt.Errorf("build %s index: %w", s.builder.Kind(), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return errReset
	}

	s.installer.SetIndex(idx)
	s.installer.ClearCache()
	s.indexed = idx.Len()
	s.steps[StepIndex].Done = len(chunks)
	s.steps[StepIndex].Total = len(chunks)
	metrics.IndexedChunks.Set(float64(idx.Len()))

	s.logger.Info("Vector index installed",
		zap.String("backend", s.builder.Kind()),
		zap.Int("chunks", idx.Len()),
		zap.Int("dimensions", idx.Dimensions()),
	)
	return nil
}

func (s *Service) setProgress(step Step, gen uint64, done, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	ss := s.steps[step]
	ss.Done, ss.Total = done, total
	if total > 0 {
		metrics.PipelineProgress.WithLabelValues(string(step)).Set(float64(done) / float64(total))
	}
}

func previous(step Step) Step {
	for i, st := range Steps {
		if st == step && i > 0 {
			return Steps[i-1]
		}
	}
	return ""
}
