package redis

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/ragd/internal/db"
)

// ScoreField is the distance attribute FT.SEARCH attaches to KNN hits.
const ScoreField = "__vector_score"

// CreateIndex runs FT.CREATE for a validated chunk index.
func (s *Store) CreateIndex(ctx context.Context, idx *db.ChunkIndex) error {
	if err := idx.Validate(); err != nil {
		return fmt.Errorf("index definition: %w", err)
	}

	cmd := s.client.B().Arbitrary("FT.CREATE").Args(idx.CreateArgs()...).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		if serverErr(err, "already exists") {
			return db.ErrIndexExists
		}
		return &db.Error{Op: "FT.CREATE", Key: idx.Name, Err: err}
	}
	return nil
}

// DropIndex removes an FT index. Indexed hashes are left in place.
func (s *Store) DropIndex(ctx context.Context, name string) error {
	cmd := s.client.B().Arbitrary("FT.DROPINDEX").Args(name).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		if unknownIndex(err) {
			return db.ErrIndexNotFound
		}
		return &db.Error{Op: "FT.DROPINDEX", Key: name, Err: err}
	}
	return nil
}

// IndexExists probes an FT index with FT.INFO.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	cmd := s.client.B().Arbitrary("FT.INFO").Args(name).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		if unknownIndex(err) {
			return false, nil
		}
		return false, &db.Error{Op: "FT.INFO", Key: name, Err: err}
	}
	return true, nil
}

// Redis says "Unknown index name", valkey-search says "Index ... not found".
func unknownIndex(err error) bool {
	return serverErr(err, "unknown index name") || serverErr(err, "not found")
}

// SearchKNN runs a DIALECT 2 KNN query. Cosine distances become similarities.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) ([]db.Hit, error) {
	switch {
	case q.Index == "":
		return nil, fmt.Errorf("index name is required")
	case len(q.Vector) == 0:
		return nil, fmt.Errorf("query vector is required")
	case q.K <= 0:
		return nil, fmt.Errorf("k must be positive, got %d", q.K)
	}

	k := strconv.Itoa(q.K)
	args := []string{q.Index, "*=>[KNN " + k + " @vector $vec]"}
	if len(q.Return) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(q.Return)+1))
		args = append(args, q.Return...)
		args = append(args, ScoreField)
	}
	args = append(args,
		"SORTBY", ScoreField,
		"LIMIT", "0", k,
		"PARAMS", "2", "vec", VectorToBytes(q.Vector),
		"DIALECT", "2",
	)

	raw, err := s.client.Do(ctx, s.client.B().Arbitrary("FT.SEARCH").Args(args...).Build()).ToArray()
	if err != nil {
		return nil, &db.Error{Op: "FT.SEARCH", Key: q.Index, Err: err}
	}
	return parseHits(raw)
}

// parseHits reads the RESP2 reply [total, key1, fields1, key2, fields2, ...].
func parseHits(raw []rueidis.RedisMessage) ([]db.Hit, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	if _, err := raw[0].AsInt64(); err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}

	hits := make([]db.Hit, 0, (len(raw)-1)/2)
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		pairs, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}

		h := db.Hit{Key: key, Fields: make(map[string]string, len(pairs)/2)}
		for j := 0; j+1 < len(pairs); j += 2 {
			name, nerr := pairs[j].ToString()
			value, verr := pairs[j+1].ToString()
			if nerr == nil && verr == nil {
				h.Fields[name] = value
			}
		}
		if d, err := strconv.ParseFloat(h.Fields[ScoreField], 64); err == nil {
			h.Similarity = 1 - d
		}
		delete(h.Fields, ScoreField)
		hits = append(hits, h)
	}
	return hits, nil
}

// VectorToBytes encodes a vector as little-endian FLOAT32 for HSET and query params.
func VectorToBytes(v []float32) string {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return string(buf)
}

// BytesToVector decodes a blob written by VectorToBytes.
func BytesToVector(s string) ([]float32, error) {
	if len(s)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(s))
	}
	b := []byte(s)
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
