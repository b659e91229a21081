// Package vectors stores chunk vectors in a Valkey/Redis FT index.
package vectors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragd/internal/db"
	"github.com/kailas-cloud/ragd/internal/db/redis"
	"github.com/kailas-cloud/ragd/internal/domain"
)

const writeBatch = 500

// Chunk hash fields.
const (
	fieldID       = "id"
	fieldSource   = "source"
	fieldPosition = "position"
	fieldText     = "text"
	fieldVector   = "vector"
)

var returnFields = []string{fieldID, fieldSource, fieldPosition, fieldText}

// store is the consumer interface for the repository.
type store interface {
	db.KVStore
	db.HashStore
	db.IndexManager
	db.Searcher
}

// Options selects the FT vector algorithm.
type Options struct {
	Algorithm      db.VectorAlgorithm // HNSW or FLAT
	M              int
	EFConstruction int
	Logger         *zap.Logger // nil means no logging
}

// Meta describes a built index. Generation names the FT index and chunk
// prefix the meta key currently points at.
type Meta struct {
	Generation string    `json:"generation,omitempty"`
	Dimensions int       `json:"dimensions"`
	Count      int       `json:"count"`
	Model      string    `json:"model,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// generation falls back to the bare name for metas written before generations existed.
func (m Meta) generation(name string) string {
	if m.Generation == "" {
		return name
	}
	return m.Generation
}

// Repo builds and opens FT indexes over chunk hashes.
type Repo struct {
	store store
	opts  Options
	now   func() time.Time
}

// New creates a repository.
func New(s store, opts Options) *Repo {
	if opts.Algorithm == "" {
		opts.Algorithm = db.VectorHNSW
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Repo{store: s, opts: opts, now: time.Now}
}

// Build writes the chunks into a fresh generation of the index under name.
// The meta key moves to the new generation only after every chunk is written,
// and the previous generation is dropped after that. On failure the previous
// generation stays untouched. A failed drop of the previous generation is logged.
func (r *Repo) Build(
	ctx context.Context, name, model string, chunks []domain.Chunk, vectors [][]float32,
) (*Index, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("chunks and vectors length mismatch: %d != %d", len(chunks), len(vectors))
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("build index %s: %w", name, domain.ErrNoDocuments)
	}
	dim := len(vectors[0])
	for i := range vectors {
		if len(vectors[i]) != dim {
			return nil, fmt.Errorf("vector %d has %d dimensions, want %d: %w",
				i, len(vectors[i]), dim, domain.ErrVectorDimMismatch)
		}
	}

	prev, err := r.readMeta(ctx, name)
	if err != nil && !errors.Is(err, db.ErrKeyNotFound) {
		return nil, err
	}

	createdAt := r.now().UTC()
	gen := name + "-" + strconv.FormatInt(createdAt.UnixNano(), 10)

	def, err := r.definition(gen, dim)
	if err != nil {
		return nil, err
	}
	if err := r.store.CreateIndex(ctx, def); err != nil {
		return nil, fmt.Errorf("create index %s: %w", name, err)
	}

	meta := Meta{Generation: gen, Dimensions: dim, Count: len(chunks), Model: model, CreatedAt: createdAt}
	if err := r.write(ctx, name, gen, chunks, vectors, meta); err != nil {
		if derr := r.dropGeneration(ctx, gen); derr != nil {
			err = errors.Join(err, derr)
		}
		return nil, err
	}

	// the new generation is already live, so a failed cleanup only leaks keys
	if prev != nil {
		if old := prev.generation(name); old != gen {
			if err := r.dropGeneration(ctx, old); err != nil {
				r.opts.Logger.Warn("Failed to drop previous index generation",
					zap.String("generation", old), zap.Error(err))
			}
		}
	}

	return &Index{store: r.store, ftName: indexName(gen), meta: meta}, nil
}

func (r *Repo) write(
	ctx context.Context, name, gen string, chunks []domain.Chunk, vectors [][]float32, meta Meta,
) error {
	items := make([]db.Hash, 0, min(writeBatch, len(chunks)))
	for i := range chunks {
		items = append(items, db.Hash{
			Key: chunkKey(gen, i),
			Fields: map[string]string{
				fieldID:       chunks[i].ID,
				fieldSource:   chunks[i].Source,
				fieldPosition: strconv.Itoa(chunks[i].Index),
				fieldText:     chunks[i].Text,
				fieldVector:   redis.VectorToBytes(vectors[i]),
			},
		})
		if len(items) == writeBatch {
			if err := r.store.HSetMulti(ctx, items); err != nil {
				return fmt.Errorf("write chunks: %w", err)
			}
			items = items[:0]
		}
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("write chunks: %w", err)
	}

	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}
	if err := r.store.Set(ctx, metaKey(name), data); err != nil {
		return fmt.Errorf("write meta: %w", err)
	}
	return nil
}

// Open attaches to the generation the meta key points at.
func (r *Repo) Open(ctx context.Context, name string) (*Index, error) {
	meta, err := r.readMeta(ctx, name)
	if errors.Is(err, db.ErrKeyNotFound) {
		return nil, fmt.Errorf("index %s has no meta: %w", name, domain.ErrIndexNotFound)
	}
	if err != nil {
		return nil, err
	}

	ft := indexName(meta.generation(name))
	exists, err := r.store.IndexExists(ctx, ft)
	if err != nil {
		return nil, fmt.Errorf("check index %s: %w", name, err)
	}
	if !exists {
		return nil, fmt.Errorf("index %s: %w", name, domain.ErrIndexNotFound)
	}
	return &Index{store: r.store, ftName: ft, meta: *meta}, nil
}

func (r *Repo) readMeta(ctx context.Context, name string) (*Meta, error) {
	data, err := r.store.Get(ctx, metaKey(name))
	if errors.Is(err, db.ErrKeyNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("read meta: %w", err)
	}
	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse meta: %w", err)
	}
	return &meta, nil
}

// dropGeneration removes one FT index and its chunk hashes.
func (r *Repo) dropGeneration(ctx context.Context, gen string) error {
	if err := r.store.DropIndex(ctx, indexName(gen)); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index %s: %w", gen, err)
	}

	keys, err := r.store.Scan(ctx, chunkPrefix(gen)+"*")
	if err != nil {
		return fmt.Errorf("scan chunks: %w", err)
	}
	for start := 0; start < len(keys); start += writeBatch {
		end := min(start+writeBatch, len(keys))
		if err := r.store.Del(ctx, keys[start:end]...); err != nil {
			return fmt.Errorf("delete chunks: %w", err)
		}
	}
	return nil
}

func (r *Repo) definition(name string, dim int) (*db.ChunkIndex, error) {
	idx := &db.ChunkIndex{
		Name:     indexName(name),
		Prefix:   chunkPrefix(name),
		Tags:     []string{fieldSource},
		Numerics: []string{fieldPosition},
		Vector: db.VectorField{
			Name:      fieldVector,
			Dim:       dim,
			Algorithm: r.opts.Algorithm,
		},
	}
	if r.opts.Algorithm == db.VectorHNSW {
		idx.Vector.M = r.opts.M
		idx.Vector.EFConstruction = r.opts.EFConstruction
	}
	if err := idx.Validate(); err != nil {
		return nil, err
	}
	return idx, nil
}

func indexName(name string) string   { return domain.KeyPrefix + name + ":idx" }
func metaKey(name string) string     { return domain.KeyPrefix + name + ":meta" }
func chunkPrefix(name string) string { return domain.KeyPrefix + "chunk:" + name + ":" }

func chunkKey(name string, i int) string {
	return chunkPrefix(name) + strconv.Itoa(i)
}
