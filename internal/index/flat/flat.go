// Package flat is an exact in-process cosine similarity index.
package flat

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/kailas-cloud/ragd/internal/domain"
)

var _ domain.VectorIndex = (*Index)(nil)

// Index stores L2-normalised vectors; cosine similarity is the dot product.
type Index struct {
	mu      sync.RWMutex
	dim     int
	chunks  []domain.Chunk
	vectors [][]float32
}

// New creates an empty index with the given dimensionality.
func New(dim int) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid dimension %d", dim)
	}
	return &Index{dim: dim}, nil
}

// Build creates an index from parallel chunk and vector slices.
// The dimensionality is taken from the first vector.
func Build(chunks []domain.Chunk, vectors [][]float32) (*Index, error) {
	if len(vectors) == 0 {
		return nil, fmt.Errorf("build flat index: %w", domain.ErrNoDocuments)
	}
	idx, err := New(len(vectors[0]))
	if err != nil {
		return nil, err
	}
	if err := idx.Add(chunks, vectors); err != nil {
		return nil, err
	}
	return idx, nil
}

// Add appends chunks with their vectors. Nothing is added on error.
func (i *Index) Add(chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d != %d", len(chunks), len(vectors))
	}

	normed := make([][]float32, len(vectors))
	for j, v := range vectors {
		if len(v) != i.dim {
			return fmt.Errorf("vector %d has %d dimensions, want %d: %w",
				j, len(v), i.dim, domain.ErrVectorDimMismatch)
		}
		normed[j] = normalize(v)
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	i.chunks = append(i.chunks, chunks...)
	i.vectors = append(i.vectors, normed...)
	return nil
}

// Search returns up to k chunks by descending cosine similarity.
// Equal scores keep insertion order.
func (i *Index) Search(ctx context.Context, vector []float32, k int) ([]domain.ScoredChunk, error) {
	if len(vector) != i.dim {
		return nil, fmt.Errorf("query has %d dimensions, want %d: %w",
			len(vector), i.dim, domain.ErrVectorDimMismatch)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	if k <= 0 || len(i.vectors) == 0 {
		return nil, nil
	}

	q := normalize(vector)
	order := make([]int, len(i.vectors))
	scores := make([]float64, len(i.vectors))
	for j, v := range i.vectors {
		order[j] = j
		scores[j] = dot(q, v)
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	k = min(k, len(order))
	out := make([]domain.ScoredChunk, k)
	for j := range k {
		out[j] = domain.ScoredChunk{Chunk: i.chunks[order[j]], Score: scores[order[j]]}
	}
	return out, nil
}

// Len returns the number of indexed chunks.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.vectors)
}

// Dimensions returns the vector dimensionality.
func (i *Index) Dimensions() int {
	return i.dim
}

// Entries returns copies of the stored chunks and normalised vectors for persistence.
func (i *Index) Entries() ([]domain.Chunk, [][]float32) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return append([]domain.Chunk(nil), i.chunks...), append([][]float32(nil), i.vectors...)
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}
	inv := 1 / math.Sqrt(sum)
	for j, x := range v {
		out[j] = float32(float64(x) * inv)
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for j := range a {
		sum += float64(a[j]) * float64(b[j])
	}
	return sum
}
