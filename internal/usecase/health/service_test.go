package health

import (
	"context"
	"errors"
	"testing"
)

// --- Mocks ---

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

type mockProvider struct {
	err error
}

func (m *mockProvider) HealthCheck(_ context.Context) error { return m.err }

type mockIndex struct {
	ready bool
}

func (m *mockIndex) Ready() bool { return m.ready }

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(Deps{
		LLM:       &mockProvider{},
		Embedding: &mockProvider{},
		Database:  &mockPinger{},
		Index:     &mockIndex{ready: true},
	})
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	for _, name := range []string{"llm", "embedding", "database", "index"} {
		if r.Checks[name] != CheckOK {
			t.Errorf("expected %s %q, got %q", name, CheckOK, r.Checks[name])
		}
	}
}

func TestCheck_Failures(t *testing.T) {
	tests := []struct {
		name  string
		deps  Deps
		check string
		want  CheckResult
	}{
		{
			name:  "llm down",
			deps:  Deps{LLM: &mockProvider{err: errors.New("conn refused")}, Index: &mockIndex{ready: true}},
			check: "llm",
			want:  CheckError,
		},
		{
			name:  "embedding down",
			deps:  Deps{Embedding: &mockProvider{err: errors.New("timeout")}},
			check: "embedding",
			want:  CheckError,
		},
		{
			name:  "database down",
			deps:  Deps{Database: &mockPinger{err: errors.New("db down")}},
			check: "database",
			want:  CheckError,
		},
		{
			name:  "index not built",
			deps:  Deps{LLM: &mockProvider{}, Index: &mockIndex{}},
			check: "index",
			want:  CheckNotReady,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := New(tc.deps).Check(context.Background())

			if r.Status != Degraded {
				t.Errorf("expected %q, got %q", Degraded, r.Status)
			}
			if r.Checks[tc.check] != tc.want {
				t.Errorf("expected %s %q, got %q", tc.check, tc.want, r.Checks[tc.check])
			}
		})
	}
}

func TestCheck_NoDatabase(t *testing.T) {
	svc := New(Deps{LLM: &mockProvider{}, Embedding: &mockProvider{}})
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if _, ok := r.Checks["database"]; ok {
		t.Error("database check should be absent when no database is configured")
	}
}
