// Package index binds the vector index implementations to a configured name.
package index

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/ragd/internal/domain"
	"github.com/kailas-cloud/ragd/internal/index/flat"
	"github.com/kailas-cloud/ragd/internal/repository/snapshot"
	"github.com/kailas-cloud/ragd/internal/repository/vectors"
)

// Backend builds, persists and reopens the named vector index.
type Backend interface {
	Kind() string
	Build(ctx context.Context, chunks []domain.Chunk, vecs [][]float32) (domain.VectorIndex, error)
	Open(ctx context.Context) (domain.VectorIndex, error)
}

// Flat keeps the index in process and persists snapshots to Badger.
type Flat struct {
	repo  *snapshot.Repo
	name  string
	model string
}

// NewFlat creates the flat backend.
func NewFlat(repo *snapshot.Repo, name, model string) *Flat {
	return &Flat{repo: repo, name: name, model: model}
}

// Kind returns "flat".
func (f *Flat) Kind() string { return "flat" }

// Build creates the index and saves a snapshot.
func (f *Flat) Build(ctx context.Context, chunks []domain.Chunk, vecs [][]float32) (domain.VectorIndex, error) {
	idx, err := flat.Build(chunks, vecs)
	if err != nil {
		return nil, err
	}
	if _, err := f.repo.Save(ctx, f.name, f.model, idx); err != nil {
		return nil, err
	}
	return idx, nil
}

// Open loads the saved snapshot, or fails with domain.ErrIndexNotFound.
func (f *Flat) Open(ctx context.Context) (domain.VectorIndex, error) {
	idx, meta, err := f.repo.Load(ctx, f.name)
	if err != nil {
		return nil, err
	}
	if meta.Model != "" && meta.Model != f.model {
		return nil, fmt.Errorf("snapshot %s was built with model %q, configured %q: %w",
			f.name, meta.Model, f.model, domain.ErrIndexNotFound)
	}
	return idx, nil
}

// Valkey stores vectors in a valkey-search or Redis FT index.
type Valkey struct {
	repo  *vectors.Repo
	name  string
	model string
}

// NewValkey creates the valkey backend.
func NewValkey(repo *vectors.Repo, name, model string) *Valkey {
	return &Valkey{repo: repo, name: name, model: model}
}

// Kind returns "valkey".
func (v *Valkey) Kind() string { return "valkey" }

// Build replaces the FT index.
func (v *Valkey) Build(ctx context.Context, chunks []domain.Chunk, vecs [][]float32) (domain.VectorIndex, error) {
	return v.repo.Build(ctx, v.name, v.model, chunks, vecs)
}

// Open attaches to the existing FT index.
func (v *Valkey) Open(ctx context.Context) (domain.VectorIndex, error) {
	idx, err := v.repo.Open(ctx, v.name)
	if err != nil {
		return nil, err
	}
	if m := idx.Meta().Model; m != "" && m != v.model {
		return nil, fmt.Errorf("index %s was built with model %q, configured %q: %w",
			v.name, m, v.model, domain.ErrIndexNotFound)
	}
	return idx, nil
}
