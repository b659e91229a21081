package db

import (
	"errors"
	"strings"
	"testing"
)

func chunkIndex() *ChunkIndex {
	return &ChunkIndex{
		Name:     "ragd:rag_index:idx",
		Prefix:   "ragd:chunk:rag_index:",
		Tags:     []string{"source"},
		Numerics: []string{"position"},
		Vector:   VectorField{Name: "vector", Dim: 768, Algorithm: VectorHNSW, M: 16, EFConstruction: 200},
	}
}

func TestChunkIndex_CreateArgsHNSW(t *testing.T) {
	got := strings.Join(chunkIndex().CreateArgs(), " ")
	want := "ragd:rag_index:idx ON HASH PREFIX 1 ragd:chunk:rag_index: SCHEMA " +
		"source TAG position NUMERIC " +
		"vector VECTOR HNSW 10 TYPE FLOAT32 DIM 768 DISTANCE_METRIC COSINE M 16 EF_CONSTRUCTION 200"
	if got != want {
		t.Errorf("args mismatch:\ngot:  %s\nwant: %s", got, want)
	}
}

func TestChunkIndex_CreateArgsFlat(t *testing.T) {
	idx := chunkIndex()
	idx.Tags, idx.Numerics = nil, nil
	idx.Vector.Algorithm = VectorFlat

	got := strings.Join(idx.CreateArgs(), " ")
	want := "ragd:rag_index:idx ON HASH PREFIX 1 ragd:chunk:rag_index: SCHEMA " +
		"vector VECTOR FLAT 6 TYPE FLOAT32 DIM 768 DISTANCE_METRIC COSINE"
	if got != want {
		t.Errorf("args mismatch:\ngot:  %s\nwant: %s", got, want)
	}
}

func TestChunkIndex_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *ChunkIndex)
		want   string
	}{
		{"valid", func(*ChunkIndex) {}, ""},
		{"bad name", func(c *ChunkIndex) { c.Name = "has space" }, "invalid index name"},
		{"empty name", func(c *ChunkIndex) { c.Name = "" }, "invalid index name"},
		{"no prefix", func(c *ChunkIndex) { c.Prefix = "" }, "prefix"},
		{"zero dim", func(c *ChunkIndex) { c.Vector.Dim = 0 }, "dimension"},
		{"unknown algorithm", func(c *ChunkIndex) { c.Vector.Algorithm = "IVF" }, "algorithm"},
		{"duplicate", func(c *ChunkIndex) { c.Numerics = []string{"source"} }, "duplicate"},
		{"clashes with vector", func(c *ChunkIndex) { c.Tags = []string{"vector"} }, "duplicate"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			idx := chunkIndex()
			tc.mutate(idx)
			err := idx.Validate()
			if tc.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want containing %q", err, tc.want)
			}
		})
	}
}

func TestError_Format(t *testing.T) {
	base := errors.New("boom")

	e := &Error{Op: "HSET", Key: "k1", Err: base}
	if e.Error() != "HSET k1: boom" {
		t.Errorf("Error() = %q", e.Error())
	}
	if !errors.Is(e, base) {
		t.Error("expected Unwrap to expose the cause")
	}
	if (&Error{Op: "SCAN", Err: base}).Error() != "SCAN: boom" {
		t.Error("unexpected format without key")
	}
}
