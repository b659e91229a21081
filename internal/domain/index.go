package domain

import "context"

// VectorIndex is a read-only similarity index over embedded chunks.
type VectorIndex interface {
	Search(ctx context.Context, vector []float32, k int) ([]ScoredChunk, error)
	Len() int
	Dimensions() int
}

// KeyPrefix namespaces every key ragd writes to a shared store.
const KeyPrefix = "ragd:"
