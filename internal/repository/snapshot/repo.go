// Package snapshot persists flat indexes in the embedded key-value store.
package snapshot

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/kailas-cloud/ragd/internal/db"
	"github.com/kailas-cloud/ragd/internal/db/badger"
	"github.com/kailas-cloud/ragd/internal/domain"
	"github.com/kailas-cloud/ragd/internal/index/flat"
)

// store is the consumer interface over db/badger.
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetMulti(ctx context.Context, items []badger.Item) error
	Iterate(ctx context.Context, prefix string, fn func(key string, value []byte) error) error
	DropPrefix(ctx context.Context, prefix string) error
}

// Meta describes a saved snapshot.
type Meta struct {
	Dimensions int       `json:"dimensions"`
	Count      int       `json:"count"`
	Model      string    `json:"model,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Repo saves and loads named flat index snapshots.
type Repo struct {
	store store
	now   func() time.Time
}

// New creates a snapshot repository.
func New(s store) *Repo {
	return &Repo{store: s, now: time.Now}
}

// Save replaces any snapshot stored under name. The meta key is written last,
// so a snapshot interrupted mid-write is reported as missing.
func (r *Repo) Save(ctx context.Context, name, model string, idx *flat.Index) (Meta, error) {
	if err := r.Delete(ctx, name); err != nil {
		return Meta{}, err
	}

	chunks, vectors := idx.Entries()
	items := make([]badger.Item, len(chunks))
	for i := range chunks {
		val, err := encodeEntry(chunks[i], vectors[i])
		if err != nil {
			return Meta{}, fmt.Errorf("encode chunk %s: %w", chunks[i].ID, err)
		}
		items[i] = badger.Item{Key: chunkKey(name, i), Value: val}
	}
	if err := r.store.SetMulti(ctx, items); err != nil {
		return Meta{}, fmt.Errorf("save snapshot %s: %w", name, err)
	}

	meta := Meta{
		Dimensions: idx.Dimensions(),
		Count:      len(chunks),
		Model:      model,
		CreatedAt:  r.now().UTC(),
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return Meta{}, fmt.Errorf("marshal meta: %w", err)
	}
	if err := r.store.Set(ctx, metaKey(name), data); err != nil {
		return Meta{}, fmt.Errorf("save snapshot meta %s: %w", name, err)
	}
	return meta, nil
}

// Load rebuilds the index saved under name.
func (r *Repo) Load(ctx context.Context, name string) (*flat.Index, Meta, error) {
	meta, err := r.Meta(ctx, name)
	if err != nil {
		return nil, Meta{}, err
	}

	idx, err := flat.New(meta.Dimensions)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("snapshot %s: %w", name, err)
	}

	chunks := make([]domain.Chunk, 0, meta.Count)
	vectors := make([][]float32, 0, meta.Count)
	err = r.store.Iterate(ctx, chunkPrefix(name), func(key string, value []byte) error {
		c, v, err := decodeEntry(value)
		if err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		chunks = append(chunks, c)
		vectors = append(vectors, v)
		return nil
	})
	if err != nil {
		return nil, Meta{}, fmt.Errorf("load snapshot %s: %w", name, err)
	}
	if len(chunks) != meta.Count {
		return nil, Meta{}, fmt.Errorf("snapshot %s: meta says %d chunks, found %d", name, meta.Count, len(chunks))
	}
	if err := idx.Add(chunks, vectors); err != nil {
		return nil, Meta{}, fmt.Errorf("snapshot %s: %w", name, err)
	}
	return idx, meta, nil
}

// Meta returns the metadata of the snapshot under name.
func (r *Repo) Meta(ctx context.Context, name string) (Meta, error) {
	data, err := r.store.Get(ctx, metaKey(name))
	if errors.Is(err, db.ErrKeyNotFound) {
		return Meta{}, fmt.Errorf("snapshot %s: %w", name, domain.ErrIndexNotFound)
	}
	if err != nil {
		return Meta{}, fmt.Errorf("read snapshot meta %s: %w", name, err)
	}

	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return Meta{}, fmt.Errorf("parse snapshot meta %s: %w", name, err)
	}
	return meta, nil
}

// Exists reports whether a complete snapshot is stored under name.
func (r *Repo) Exists(ctx context.Context, name string) (bool, error) {
	_, err := r.Meta(ctx, name)
	if errors.Is(err, domain.ErrIndexNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Delete removes the snapshot under name. Deleting a missing snapshot is not an error.
func (r *Repo) Delete(ctx context.Context, name string) error {
	if err := r.store.DropPrefix(ctx, prefix(name)); err != nil {
		return fmt.Errorf("delete snapshot %s: %w", name, err)
	}
	return nil
}

func prefix(name string) string      { return domain.KeyPrefix + "snapshot:" + name + ":" }
func metaKey(name string) string     { return prefix(name) + "meta" }
func chunkPrefix(name string) string { return prefix(name) + "chunk:" }

// Zero-padded so that key order is insertion order.
func chunkKey(name string, i int) string {
	return fmt.Sprintf("%s%08d", chunkPrefix(name), i)
}

// encodeEntry lays out [u32 json length][chunk json][le float32 vector].
func encodeEntry(c domain.Chunk, v []float32) ([]byte, error) {
	js, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 4+len(js)+4*len(v))
	binary.LittleEndian.PutUint32(buf, uint32(len(js))) //nolint:gosec // chunk json is far below 4GiB
	copy(buf[4:], js)
	off := 4 + len(js)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[off+4*i:], math.Float32bits(f))
	}
	return buf, nil
}

func decodeEntry(b []byte) (domain.Chunk, []float32, error) {
	if len(b) < 4 {
		return domain.Chunk{}, nil, errors.New("entry too short")
	}
	n := int(binary.LittleEndian.Uint32(b))
	if 4+n > len(b) || (len(b)-4-n)%4 != 0 {
		return domain.Chunk{}, nil, fmt.Errorf("corrupt entry: json length %d, total %d", n, len(b))
	}

	var c domain.Chunk
	if err := json.Unmarshal(b[4:4+n], &c); err != nil {
		return domain.Chunk{}, nil, err
	}

	raw := b[4+n:]
	v := make([]float32, len(raw)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	return c, v, nil
}
