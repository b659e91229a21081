package db

import (
	"errors"
	"fmt"
	"strconv"
)

// VectorAlgorithm selects the FT vector index algorithm.
type VectorAlgorithm string

const (
	// VectorHNSW is approximate search over an HNSW graph.
	VectorHNSW VectorAlgorithm = "HNSW"
	// VectorFlat is exact brute-force search.
	VectorFlat VectorAlgorithm = "FLAT"
)

// VectorField is the embedding attribute of a chunk index. Distance is always cosine.
type VectorField struct {
	Name           string
	Dim            int
	Algorithm      VectorAlgorithm
	M              int // HNSW only, 0 = server default
	EFConstruction int // HNSW only, 0 = server default
}

// ChunkIndex is an FT index over chunk hashes sharing one key prefix.
type ChunkIndex struct {
	Name     string
	Prefix   string
	Tags     []string
	Numerics []string
	Vector   VectorField
}

// Validate checks names, duplicates and the vector shape.
func (c *ChunkIndex) Validate() error {
	if !validName(c.Name) {
		return fmt.Errorf("invalid index name %q", c.Name)
	}
	if c.Prefix == "" {
		return errors.New("key prefix is required")
	}
	if c.Vector.Name == "" {
		return errors.New("vector field name is required")
	}
	if c.Vector.Dim <= 0 {
		return fmt.Errorf("vector dimension must be positive, got %d", c.Vector.Dim)
	}
	switch c.Vector.Algorithm {
	case VectorHNSW, VectorFlat:
	default:
		return fmt.Errorf("unknown vector algorithm %q", c.Vector.Algorithm)
	}

	seen := map[string]bool{c.Vector.Name: true}
	for _, names := range [][]string{c.Tags, c.Numerics} {
		for _, n := range names {
			if n == "" {
				return errors.New("empty field name")
			}
			if seen[n] {
				return fmt.Errorf("duplicate field %q", n)
			}
			seen[n] = true
		}
	}
	return nil
}

// CreateArgs returns the FT.CREATE arguments after the command name.
func (c *ChunkIndex) CreateArgs() []string {
	args := []string{c.Name, "ON", "HASH", "PREFIX", "1", c.Prefix, "SCHEMA"}
	for _, t := range c.Tags {
		args = append(args, t, "TAG")
	}
	for _, n := range c.Numerics {
		args = append(args, n, "NUMERIC")
	}

	attrs := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(c.Vector.Dim),
		"DISTANCE_METRIC", "COSINE",
	}
	if c.Vector.Algorithm == VectorHNSW {
		if c.Vector.M > 0 {
			attrs = append(attrs, "M", strconv.Itoa(c.Vector.M))
		}
		if c.Vector.EFConstruction > 0 {
			attrs = append(attrs, "EF_CONSTRUCTION", strconv.Itoa(c.Vector.EFConstruction))
		}
	}
	args = append(args, c.Vector.Name, "VECTOR", string(c.Vector.Algorithm), strconv.Itoa(len(attrs)))
	return append(args, attrs...)
}

// validName accepts [a-zA-Z0-9_:-]+.
func validName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_', r == ':', r == '-':
		default:
			return false
		}
	}
	return true
}
