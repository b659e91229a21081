package badger

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragd/internal/db"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{InMemory: true, Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_GetSetDel(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, db.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}

	if err := s.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "v" {
		t.Errorf("Get = %q, want v", got)
	}

	if err := s.Del(ctx, "k", "never-existed"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if _, err := s.Get(ctx, "k"); !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound after Del, got %v", err)
	}
}

func TestStore_IterateAndDropPrefix(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.SetMulti(ctx, []Item{
		{Key: "a:2", Value: []byte("two")},
		{Key: "a:1", Value: []byte("one")},
		{Key: "b:1", Value: []byte("other")},
	})
	if err != nil {
		t.Fatalf("SetMulti: %v", err)
	}

	var keys []string
	err = s.Iterate(ctx, "a:", func(key string, _ []byte) error {
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	if len(keys) != 2 || keys[0] != "a:1" || keys[1] != "a:2" {
		t.Fatalf("Iterate keys = %v, want [a:1 a:2]", keys)
	}

	if err := s.DropPrefix(ctx, "a:"); err != nil {
		t.Fatalf("DropPrefix: %v", err)
	}
	if _, err := s.Get(ctx, "a:1"); !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("expected a:1 dropped, got %v", err)
	}
	if _, err := s.Get(ctx, "b:1"); err != nil {
		t.Errorf("b:1 should survive DropPrefix: %v", err)
	}
}

func TestStore_IterateStopsOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_ = s.SetMulti(ctx, []Item{{Key: "p:1", Value: nil}, {Key: "p:2", Value: nil}})

	stop := errors.New("stop")
	calls := 0
	err := s.Iterate(ctx, "p:", func(string, []byte) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Fatalf("expected stop error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestStore_PingAfterClose(t *testing.T) {
	s, err := Open(Config{InMemory: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	_ = s.Close()
	if err := s.Ping(context.Background()); !errors.Is(err, db.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
