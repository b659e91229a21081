package chunker

import (
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/kailas-cloud/ragd/internal/domain"
)

var defaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

func mustNew(t *testing.T, size, overlap int) *Splitter {
	t.Helper()
	s, err := New(size, overlap, defaultSeparators)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(0, 0, nil); err == nil {
		t.Error("expected error for zero size")
	}
	if _, err := New(10, 10, nil); err == nil {
		t.Error("expected error for overlap == size")
	}
	if _, err := New(10, -1, nil); err == nil {
		t.Error("expected error for negative overlap")
	}
}

func TestSplit_Empty(t *testing.T) {
	s := mustNew(t, 10, 0)
	if got := s.Split("  \n "); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestSplit_ShortText(t *testing.T) {
	s := mustNew(t, 800, 150)
	got := s.Split("  short text  ")
	if !reflect.DeepEqual(got, []string{"short text"}) {
		t.Errorf("got %q", got)
	}
}

func TestSplit_Paragraphs(t *testing.T) {
	s := mustNew(t, 10, 0)
	got := s.Split("aaaa\n\nbbbb\n\ncccc")
	want := []string{"aaaa\n\nbbbb", "cccc"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSplit_WordOverlap(t *testing.T) {
	s := mustNew(t, 13, 5)
	got := s.Split("one two three four five six")
	want := []string{"one two three", "four five", "five six"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSplit_KeepsSeparators(t *testing.T) {
	tests := []struct {
		name string
		size int
		text string
		want []string
	}{
		{
			name: "sentence boundary",
			size: 25,
			text: "First sentence here. Second one here.",
			want: []string{"First sentence here", ". Second one here."},
		},
		{
			name: "fits in one chunk",
			size: 50,
			text: "First sentence here. Second one here.",
			want: []string{"First sentence here. Second one here."},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustNew(t, tt.size, 0).Split(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSplit_NoTextLostWithoutOverlap(t *testing.T) {
	text := "First sentence here. Second sentence here. Third one."
	chunks := mustNew(t, 20, 0).Split(text)

	strip := func(s string) string { return strings.Join(strings.Fields(s), "") }
	if got, want := strip(strings.Join(chunks, "")), strip(text); got != want {
		t.Errorf("chunks %q lose text:\ngot:  %s\nwant: %s", chunks, got, want)
	}
}

func TestSplit_FallsBackToRunes(t *testing.T) {
	s := mustNew(t, 4, 0)
	got := s.Split("абвгдеёж")
	want := []string{"абвг", "деёж"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSplit_NeverExceedsSize(t *testing.T) {
	s := mustNew(t, 50, 10)
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 40) +
		"\n\n" + strings.Repeat("x", 170)

	chunks := s.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected many chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if n := utf8.RuneCountInString(c); n > 50 {
			t.Errorf("chunk %d has %d runes (> 50): %q", i, n, c)
		}
		if strings.TrimSpace(c) != c {
			t.Errorf("chunk %d is not trimmed: %q", i, c)
		}
	}
}

func TestChunk_IDsAndSource(t *testing.T) {
	s := mustNew(t, 10, 0)
	chunks := s.ChunkAll([]domain.Document{
		{Name: "a.txt", Content: "aaaa\n\nbbbb\n\ncccc"},
		{Name: "b.txt", Content: "dddd"},
	})

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	wantIDs := []string{"a.txt:0", "a.txt:1", "b.txt:0"}
	for i, c := range chunks {
		if c.ID != wantIDs[i] {
			t.Errorf("chunk %d id = %q, want %q", i, c.ID, wantIDs[i])
		}
	}
	if chunks[2].Source != "b.txt" || chunks[2].Index != 0 {
		t.Errorf("unexpected chunk: %+v", chunks[2])
	}
}
