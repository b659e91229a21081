package vectors

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/ragd/internal/db"
	"github.com/kailas-cloud/ragd/internal/domain"
)

var _ domain.VectorIndex = (*Index)(nil)

// Index is a handle to a built FT index.
type Index struct {
	store  db.Searcher
	ftName string
	meta   Meta
}

// Search runs a KNN query and maps hits back to chunks.
func (i *Index) Search(ctx context.Context, vector []float32, k int) ([]domain.ScoredChunk, error) {
	if len(vector) != i.meta.Dimensions {
		return nil, fmt.Errorf("query has %d dimensions, want %d: %w",
			len(vector), i.meta.Dimensions, domain.ErrVectorDimMismatch)
	}
	if k <= 0 || i.meta.Count == 0 {
		return nil, nil
	}

	hits, err := i.store.SearchKNN(ctx, &db.KNNQuery{
		Index:  i.ftName,
		Vector: vector,
		K:      k,
		Return: returnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("knn search: %w", err)
	}

	out := make([]domain.ScoredChunk, 0, len(hits))
	for _, e := range hits {
		pos, _ := strconv.Atoi(e.Fields[fieldPosition])
		out = append(out, domain.ScoredChunk{
			Chunk: domain.Chunk{
				ID:     e.Fields[fieldID],
				Source: e.Fields[fieldSource],
				Index:  pos,
				Text:   e.Fields[fieldText],
			},
			Score: e.Similarity,
		})
	}
	return out, nil
}

// Len returns the number of chunks written at build time.
func (i *Index) Len() int { return i.meta.Count }

// Dimensions returns the vector dimensionality.
func (i *Index) Dimensions() int { return i.meta.Dimensions }

// Meta returns the build metadata.
func (i *Index) Meta() Meta { return i.meta }
