package pipeline

import (
	"context"

	"github.com/kailas-cloud/ragd/internal/domain"
)

// DocumentSource lists the documents to process.
type DocumentSource interface {
	Paths(ctx context.Context) ([]string, error)
}

// Splitter turns documents into chunks.
type Splitter interface {
	ChunkAll(docs []domain.Document) []domain.Chunk
}

// IndexBuilder builds and persists the vector index.
type IndexBuilder interface {
	Kind() string
	Build(ctx context.Context, chunks []domain.Chunk, vecs [][]float32) (domain.VectorIndex, error)
}

// Installer receives the freshly built index.
type Installer interface {
	SetIndex(idx domain.VectorIndex)
	ClearCache()
}
