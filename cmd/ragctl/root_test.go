package main

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragd/internal/transport/tcp"
	"github.com/kailas-cloud/ragd/internal/usecase/chat"
	"github.com/kailas-cloud/ragd/internal/usecase/pipeline"
)

type echoAsker struct{}

func (echoAsker) Ask(_ context.Context, q string) (chat.Answer, error) {
	return chat.Answer{Text: "echo: " + q, Duration: 250 * time.Millisecond}, nil
}
func (echoAsker) Ready() bool { return true }

type staticStatus struct{}

func (staticStatus) Status() pipeline.Status { return pipeline.Status{Documents: 3} }

func startServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := tcp.NewServer(tcp.Config{}, echoAsker{}, staticStatus{}, zap.NewNop())
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return ln.Addr().String()
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAsk(t *testing.T) {
	addr := startServer(t)

	out, err := run(t, "", "--server", addr, "ask", "what", "is", "ragd?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if !strings.Contains(out, "echo: what is ragd?") {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(out, "(0.25s)") {
		t.Errorf("missing time in %q", out)
	}
}

func TestChat(t *testing.T) {
	addr := startServer(t)

	out, err := run(t, "first\nsecond\nexit\nignored\n", "--server", addr, "chat")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if !strings.Contains(out, "echo: first") || !strings.Contains(out, "echo: second") {
		t.Errorf("output = %q", out)
	}
	if strings.Contains(out, "ignored") {
		t.Errorf("loop did not stop at exit: %q", out)
	}
}

func TestPingAndStatusTCP(t *testing.T) {
	addr := startServer(t)

	out, err := run(t, "", "--server", addr, "ping")
	if err != nil || strings.TrimSpace(out) != "pong" {
		t.Fatalf("ping: %q, %v", out, err)
	}

	out, err = run(t, "", "--server", addr, "status", "--tcp")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "ready: true") || !strings.Contains(out, "documents: 3") {
		t.Errorf("output = %q", out)
	}
}

func TestPipelineCommands(t *testing.T) {
	var paths []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		_, _ = w.Write([]byte(`{"steps":[{"step":"chunk","state":"done","done":2,"total":2}],"chunks":9}`))
	}))
	defer ts.Close()

	for _, step := range []string{"chunk", "process", "reset"} {
		out, err := run(t, "", "--api", ts.URL, "pipeline", step)
		if err != nil {
			t.Fatalf("pipeline %s: %v", step, err)
		}
		if !strings.Contains(out, "chunks: 9") {
			t.Errorf("pipeline %s output = %q", step, out)
		}
	}

	want := []string{"POST /pipeline/chunk", "POST /pipeline/process", "POST /pipeline/reset"}
	if strings.Join(paths, ",") != strings.Join(want, ",") {
		t.Errorf("paths = %v, want %v", paths, want)
	}
}

func TestDocsUpload_MissingFile(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	_, err := run(t, "", "--api", ts.URL, "docs", "upload", "/nonexistent/file.txt")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
