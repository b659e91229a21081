package index

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/ragd/internal/db/badger"
	"github.com/kailas-cloud/ragd/internal/domain"
	"github.com/kailas-cloud/ragd/internal/repository/snapshot"
)

func newSnapshotRepo(t *testing.T) *snapshot.Repo {
	t.Helper()
	s, err := badger.Open(badger.Config{InMemory: true})
	if err != nil {
		t.Fatalf("badger.Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return snapshot.New(s)
}

func TestFlat_BuildThenOpen(t *testing.T) {
	repo := newSnapshotRepo(t)
	ctx := context.Background()
	b := NewFlat(repo, "rag_index", "m1")

	if _, err := b.Open(ctx); !errors.Is(err, domain.ErrIndexNotFound) {
		t.Fatalf("expected ErrIndexNotFound before build, got %v", err)
	}

	built, err := b.Build(ctx, []domain.Chunk{{ID: "a:0", Text: "a"}}, [][]float32{{1, 0}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if built.Len() != 1 {
		t.Errorf("Len = %d, want 1", built.Len())
	}

	opened, err := b.Open(ctx)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if opened.Len() != 1 || opened.Dimensions() != 2 {
		t.Errorf("opened Len=%d Dim=%d", opened.Len(), opened.Dimensions())
	}
}

func TestFlat_OpenRejectsOtherModel(t *testing.T) {
	repo := newSnapshotRepo(t)
	ctx := context.Background()

	if _, err := NewFlat(repo, "rag_index", "m1").Build(ctx, []domain.Chunk{{ID: "a:0"}}, [][]float32{{1}}); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := NewFlat(repo, "rag_index", "m2").Open(ctx); !errors.Is(err, domain.ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound for model change, got %v", err)
	}
}
