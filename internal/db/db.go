// Package db holds the storage contracts for the remote Valkey/Redis store
// and the FT chunk index schema it serves.
package db

import (
	"context"
	"time"
)

// Store is the remote store. Consumers depend on the narrow sub-interfaces.
type Store interface {
	Pinger
	KVStore
	HashStore
	IndexManager
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore holds opaque values: cached embeddings and index metadata.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, keys ...string) error
}

// Hash is one chunk hash to write.
type Hash struct {
	Key    string
	Fields map[string]string
}

// HashStore writes chunk hashes and finds them again for cleanup.
type HashStore interface {
	HSetMulti(ctx context.Context, hashes []Hash) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	Del(ctx context.Context, keys ...string) error
}

// IndexManager creates and drops FT indexes.
type IndexManager interface {
	CreateIndex(ctx context.Context, idx *ChunkIndex) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Searcher runs KNN queries against an FT index.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) ([]Hit, error)
}
