package pipeline_test

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragd/internal/chunker"
	dbBadger "github.com/kailas-cloud/ragd/internal/db/badger"
	"github.com/kailas-cloud/ragd/internal/domain"
	"github.com/kailas-cloud/ragd/internal/index"
	"github.com/kailas-cloud/ragd/internal/repository/snapshot"
	"github.com/kailas-cloud/ragd/internal/usecase/chat"
	"github.com/kailas-cloud/ragd/internal/usecase/library"
	"github.com/kailas-cloud/ragd/internal/usecase/pipeline"
)

// topicEmbedder places texts on a france/fruit axis so retrieval is deterministic.
type topicEmbedder struct{}

func (topicEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	t := strings.ToLower(text)
	v := []float32{
		float32(strings.Count(t, "france") + strings.Count(t, "paris")),
		float32(strings.Count(t, "banana")),
		0.1,
	}
	return domain.EmbeddingResult{Embedding: v, PromptTokens: 1, TotalTokens: 1}, nil
}

type recordingGenerator struct {
	mu      sync.Mutex
	prompts []string
}

func (g *recordingGenerator) Generate(_ context.Context, prompt string, _ []string) (domain.Generation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	return domain.Generation{Text: "The capital is Paris."}, nil
}

func openBadger(t *testing.T, dir string) *dbBadger.Store {
	t.Helper()
	s, err := dbBadger.Open(dbBadger.Config{Dir: dir})
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	return s
}

func TestUploadProcessAsk(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	dataDir := filepath.Join(root, "data")
	logger := zap.NewNop()

	lib, err := library.New(filepath.Join(root, "docs"), filepath.Join(root, "removed"), logger)
	if err != nil {
		t.Fatalf("library.New: %v", err)
	}
	uploads := map[string]string{
		"france.txt": "Paris is the capital of France.",
		"fruit.txt":  "A banana is a yellow fruit rich in potassium.",
	}
	for name, body := range uploads {
		if _, err := lib.Upload(ctx, name, strings.NewReader(body), false); err != nil {
			t.Fatalf("Upload %s: %v", name, err)
		}
	}

	splitter, err := chunker.New(200, 20, []string{"\n\n", "\n", " ", ""})
	if err != nil {
		t.Fatalf("chunker.New: %v", err)
	}

	store := openBadger(t, dataDir)
	gen := &recordingGenerator{}
	chatSvc, err := chat.New(topicEmbedder{}, gen, chat.Options{K: 1}, logger)
	if err != nil {
		t.Fatalf("chat.New: %v", err)
	}
	backend := index.NewFlat(snapshot.New(store), "rag_index", "stub")
	svc := pipeline.New(lib, splitter, topicEmbedder{}, backend, chatSvc, 0, logger)

	if _, err := chatSvc.Ask(ctx, "What is the capital of France?"); err == nil {
		t.Fatal("expected an error before the pipeline ran")
	}

	st, err := svc.Process(ctx)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if st.Documents != 2 || st.IndexedChunks != 2 {
		t.Errorf("unexpected status: documents=%d indexed=%d", st.Documents, st.IndexedChunks)
	}

	ans, err := chatSvc.Ask(ctx, "What is the capital of France?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if strings.TrimSpace(ans.Text) == "" {
		t.Fatal("expected a non-empty answer")
	}
	if len(ans.Sources) != 1 || ans.Sources[0] != "france.txt" {
		t.Errorf("expected france.txt as the only source, got %v", ans.Sources)
	}
	if len(gen.prompts) != 1 || !strings.Contains(gen.prompts[0], "Paris is the capital of France.") {
		t.Errorf("relevant chunk missing from prompt: %q", gen.prompts)
	}
	if strings.Contains(gen.prompts[0], "banana") {
		t.Errorf("irrelevant chunk reached the prompt: %q", gen.prompts[0])
	}

	if err := store.Close(); err != nil {
		t.Fatalf("close badger: %v", err)
	}

	reopened := openBadger(t, dataDir)
	t.Cleanup(func() { _ = reopened.Close() })

	idx, err := index.NewFlat(snapshot.New(reopened), "rag_index", "stub").Open(ctx)
	if err != nil {
		t.Fatalf("Open snapshot: %v", err)
	}
	if idx.Len() != 2 || idx.Dimensions() != 3 {
		t.Errorf("reopened index: len=%d dimensions=%d", idx.Len(), idx.Dimensions())
	}
}
