// Package chunker splits document text into overlapping chunks for embedding.
package chunker

import (
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/ragd/internal/domain"
)

// Splitter is a recursive character splitter. It tries each separator in order and
// recurses into pieces that are still too large, then merges neighbours back up to
// Size runes, carrying up to Overlap runes from the previous chunk. A separator
// stays attached to the start of the piece that follows it.
type Splitter struct {
	size       int
	overlap    int
	separators []string
}

// New creates a Splitter. An empty separator list means split on runes only.
func New(size, overlap int, separators []string) (*Splitter, error) {
	if size <= 0 {
		return nil, errors.New("chunk size must be positive")
	}
	if overlap < 0 || overlap >= size {
		return nil, errors.New("chunk overlap must be in [0, size)")
	}
	if len(separators) == 0 {
		separators = []string{""}
	}
	return &Splitter{size: size, overlap: overlap, separators: separators}, nil
}

// Split returns the chunk texts for text. Whitespace-only chunks are dropped.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.split(text, s.separators)
}

// Chunk splits a document and tags each chunk with its source name.
func (s *Splitter) Chunk(doc domain.Document) []domain.Chunk {
	texts := s.Split(doc.Content)
	chunks := make([]domain.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = domain.Chunk{
			ID:     doc.Name + ":" + strconv.Itoa(i),
			Source: doc.Name,
			Index:  i,
			Text:   t,
		}
	}
	return chunks
}

// ChunkAll splits every document, preserving document order.
func (s *Splitter) ChunkAll(docs []domain.Document) []domain.Chunk {
	var out []domain.Chunk
	for i := range docs {
		out = append(out, s.Chunk(docs[i])...)
	}
	return out
}

func (s *Splitter) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var rest []string
	for i, sep := range separators {
		if sep == "" {
			separator = ""
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	var out, good []string
	for _, piece := range splitOn(text, separator) {
		if runeLen(piece) < s.size {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			out = append(out, s.merge(good)...)
			good = nil
		}
		if len(rest) == 0 {
			out = append(out, piece)
		} else {
			out = append(out, s.split(piece, rest)...)
		}
	}
	if len(good) > 0 {
		out = append(out, s.merge(good)...)
	}
	return out
}

// merge packs pieces into chunks of at most size runes. Pieces already carry
// their separators, so they are concatenated as is.
func (s *Splitter) merge(pieces []string) []string {
	var docs, current []string
	total := 0

	join := func() {
		if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
			docs = append(docs, doc)
		}
	}

	for _, p := range pieces {
		l := runeLen(p)
		if total+l > s.size && len(current) > 0 {
			join()
			for total > s.overlap || (total > 0 && total+l > s.size) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}
		total += l
		current = append(current, p)
	}
	join()

	return docs
}

// splitOn cuts text before each separator. Empty pieces are dropped.
func splitOn(text, separator string) []string {
	var parts []string
	if separator == "" {
		parts = make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			parts = append(parts, string(r))
		}
	} else {
		raw := strings.Split(text, separator)
		parts = make([]string, 0, len(raw))
		parts = append(parts, raw[0])
		for _, p := range raw[1:] {
			parts = append(parts, separator+p)
		}
	}

	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
