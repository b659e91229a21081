package redis

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/ragd/internal/db"
)

func newMockStore(t *testing.T) (*Store, *mock.Client) {
	t.Helper()
	c := mock.NewClient(gomock.NewController(t))
	return NewStoreForTest(c), c
}

func commandIs(name string) gomock.Matcher {
	return mock.MatchFn(func(cmd []string) bool { return cmd[0] == name })
}

func TestNewStore_NoAddrs(t *testing.T) {
	if _, err := NewStore(Config{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestPing(t *testing.T) {
	tests := []struct {
		name    string
		result  rueidis.RedisResult
		wantErr bool
	}{
		{"pong", mock.Result(mock.RedisString("PONG")), false},
		{"timeout", mock.ErrorResult(context.DeadlineExceeded), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, c := newMockStore(t)
			c.EXPECT().Do(gomock.Any(), mock.Match("PING")).Return(tc.result)

			err := s.Ping(context.Background())
			if (err != nil) != tc.wantErr {
				t.Fatalf("Ping() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestWaitForReady_RecoversAfterFailure(t *testing.T) {
	s, c := newMockStore(t)
	gomock.InOrder(
		c.EXPECT().Do(gomock.Any(), mock.Match("PING")).
			Return(mock.ErrorResult(errors.New("connection refused"))),
		c.EXPECT().Do(gomock.Any(), mock.Match("PING")).
			Return(mock.Result(mock.RedisString("PONG"))),
	)

	if err := s.WaitForReady(context.Background(), 2*time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWaitForReady_Timeout(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(errors.New("connection refused"))).
		AnyTimes()

	err := s.WaitForReady(context.Background(), 250*time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestGet(t *testing.T) {
	tests := []struct {
		name      string
		result    rueidis.RedisResult
		want      string
		wantErrIs error
		wantDBErr bool
	}{
		{name: "value", result: mock.Result(mock.RedisBlobString("v")), want: "v"},
		{name: "missing", result: mock.Result(mock.RedisNil()), wantErrIs: db.ErrKeyNotFound},
		{name: "network", result: mock.ErrorResult(context.DeadlineExceeded), wantDBErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, c := newMockStore(t)
			c.EXPECT().Do(gomock.Any(), mock.Match("GET", "emb:k")).Return(tc.result)

			got, err := s.Get(context.Background(), "emb:k")
			switch {
			case tc.wantErrIs != nil:
				if !errors.Is(err, tc.wantErrIs) {
					t.Fatalf("expected %v, got %v", tc.wantErrIs, err)
				}
			case tc.wantDBErr:
				var dbErr *db.Error
				if !errors.As(err, &dbErr) || dbErr.Op != "GET" || dbErr.Key != "emb:k" {
					t.Fatalf("expected GET db.Error, got %v", err)
				}
				if errors.Is(err, db.ErrKeyNotFound) {
					t.Error("network errors must not look like a miss")
				}
			default:
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if string(got) != tc.want {
					t.Errorf("Get() = %q, want %q", got, tc.want)
				}
			}
		})
	}
}

func TestSet(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().Do(gomock.Any(), mock.Match("SET", "emb:k", "payload")).
		Return(mock.Result(mock.RedisString("OK")))

	if err := s.Set(context.Background(), "emb:k", []byte("payload")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDel(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().Do(gomock.Any(), mock.Match("DEL", "k1", "k2")).
		Return(mock.Result(mock.RedisInt64(2)))

	if err := s.Del(context.Background(), "k1", "k2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// no keys, no round-trip
	if err := NewStoreForTest(nil).Del(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHSetMulti(t *testing.T) {
	hashes := []db.Hash{
		{Key: "ragd:chunk:docs:0", Fields: map[string]string{"text": "a"}},
		{Key: "ragd:chunk:docs:1", Fields: map[string]string{"text": "b"}},
	}

	t.Run("ok", func(t *testing.T) {
		s, c := newMockStore(t)
		c.EXPECT().DoMulti(gomock.Any(), commandIs("HSET"), commandIs("HSET")).
			Return([]rueidis.RedisResult{
				mock.Result(mock.RedisInt64(1)),
				mock.Result(mock.RedisInt64(1)),
			})

		if err := s.HSetMulti(context.Background(), hashes); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("second fails", func(t *testing.T) {
		s, c := newMockStore(t)
		c.EXPECT().DoMulti(gomock.Any(), gomock.Any(), gomock.Any()).
			Return([]rueidis.RedisResult{
				mock.Result(mock.RedisInt64(1)),
				mock.Result(mock.RedisError("OOM command not allowed")),
			})

		err := s.HSetMulti(context.Background(), hashes)
		var dbErr *db.Error
		if !errors.As(err, &dbErr) || dbErr.Key != "ragd:chunk:docs:1" {
			t.Fatalf("expected HSET error on second key, got %v", err)
		}
	})

	t.Run("empty", func(t *testing.T) {
		if err := NewStoreForTest(nil).HSetMulti(context.Background(), nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestScan_FollowsCursor(t *testing.T) {
	s, c := newMockStore(t)
	gomock.InOrder(
		c.EXPECT().Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "SCAN" && cmd[1] == "0"
		})).Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(17),
			mock.RedisArray(mock.RedisString("ragd:chunk:docs:0")),
		))),
		c.EXPECT().Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "SCAN" && cmd[1] == "17"
		})).Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(0),
			mock.RedisArray(mock.RedisString("ragd:chunk:docs:1")),
		))),
	)

	keys, err := s.Scan(context.Background(), "ragd:chunk:docs:*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 2 || keys[0] != "ragd:chunk:docs:0" || keys[1] != "ragd:chunk:docs:1" {
		t.Fatalf("unexpected keys: %v", keys)
	}
}

func testIndex() *db.ChunkIndex {
	return &db.ChunkIndex{
		Name:     "ragd:docs:idx",
		Prefix:   "ragd:chunk:docs:",
		Tags:     []string{"source"},
		Numerics: []string{"position"},
		Vector: db.VectorField{
			Name: "vector", Dim: 4, Algorithm: db.VectorHNSW, M: 16, EFConstruction: 200,
		},
	}
}

func TestCreateIndex(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().Do(gomock.Any(), mock.Match(
		"FT.CREATE", "ragd:docs:idx", "ON", "HASH", "PREFIX", "1", "ragd:chunk:docs:",
		"SCHEMA",
		"source", "TAG",
		"position", "NUMERIC",
		"vector", "VECTOR", "HNSW", "10",
		"TYPE", "FLOAT32", "DIM", "4", "DISTANCE_METRIC", "COSINE",
		"M", "16", "EF_CONSTRUCTION", "200",
	)).Return(mock.Result(mock.RedisString("OK")))

	if err := s.CreateIndex(context.Background(), testIndex()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateIndex_AlreadyExists(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().Do(gomock.Any(), commandIs("FT.CREATE")).
		Return(mock.Result(mock.RedisError("Index already exists")))

	if err := s.CreateIndex(context.Background(), testIndex()); !errors.Is(err, db.ErrIndexExists) {
		t.Errorf("expected ErrIndexExists, got %v", err)
	}
}

func TestCreateIndex_InvalidDefinition(t *testing.T) {
	idx := testIndex()
	idx.Vector.Dim = 0

	// rejected before any command is sent
	if err := NewStoreForTest(nil).CreateIndex(context.Background(), idx); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestDropIndex_NotFound(t *testing.T) {
	for _, msg := range []string{
		"Unknown Index name",
		"Index with name 'ragd:docs:idx' not found",
	} {
		t.Run(msg, func(t *testing.T) {
			s, c := newMockStore(t)
			c.EXPECT().Do(gomock.Any(), mock.Match("FT.DROPINDEX", "ragd:docs:idx")).
				Return(mock.Result(mock.RedisError(msg)))

			if err := s.DropIndex(context.Background(), "ragd:docs:idx"); !errors.Is(err, db.ErrIndexNotFound) {
				t.Errorf("expected ErrIndexNotFound, got %v", err)
			}
		})
	}
}

func TestIndexExists(t *testing.T) {
	s, c := newMockStore(t)
	gomock.InOrder(
		c.EXPECT().Do(gomock.Any(), mock.Match("FT.INFO", "a")).
			Return(mock.Result(mock.RedisArray(mock.RedisString("index_name"), mock.RedisString("a")))),
		c.EXPECT().Do(gomock.Any(), mock.Match("FT.INFO", "b")).
			Return(mock.Result(mock.RedisError("Unknown Index name"))),
		c.EXPECT().Do(gomock.Any(), mock.Match("FT.INFO", "c")).
			Return(mock.ErrorResult(context.DeadlineExceeded)),
	)

	ctx := context.Background()
	if ok, err := s.IndexExists(ctx, "a"); err != nil || !ok {
		t.Errorf("IndexExists(a) = %v, %v; want true, nil", ok, err)
	}
	if ok, err := s.IndexExists(ctx, "b"); err != nil || ok {
		t.Errorf("IndexExists(b) = %v, %v; want false, nil", ok, err)
	}
	if _, err := s.IndexExists(ctx, "c"); err == nil {
		t.Error("IndexExists(c): expected transport error")
	}
}

func TestSearchKNN(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
		return cmd[0] == "FT.SEARCH" &&
			cmd[1] == "ragd:docs:idx" &&
			cmd[2] == "*=>[KNN 6 @vector $vec]" &&
			cmd[3] == "RETURN" && cmd[4] == "3" && cmd[7] == ScoreField
	})).Return(mock.Result(mock.RedisArray(
		mock.RedisInt64(1),
		mock.RedisString("ragd:chunk:docs:a.txt:0"),
		mock.RedisArray(
			mock.RedisString("text"), mock.RedisString("hello"),
			mock.RedisString("source"), mock.RedisString("a.txt"),
			mock.RedisString(ScoreField), mock.RedisString("0.25"),
		),
	)))

	hits, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		Index:  "ragd:docs:idx",
		Vector: []float32{0.1, 0.2},
		K:      6,
		Return: []string{"text", "source"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	h := hits[0]
	if h.Key != "ragd:chunk:docs:a.txt:0" || h.Fields["source"] != "a.txt" {
		t.Errorf("unexpected hit: %+v", h)
	}
	if _, ok := h.Fields[ScoreField]; ok {
		t.Error("score attribute should not leak into fields")
	}
	if math.Abs(h.Similarity-0.75) > 1e-9 {
		t.Errorf("Similarity = %f, want 0.75", h.Similarity)
	}
}

func TestSearchKNN_NoHits(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().Do(gomock.Any(), commandIs("FT.SEARCH")).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(0))))

	hits, err := s.SearchKNN(context.Background(), &db.KNNQuery{Index: "idx", Vector: []float32{1}, K: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("expected no hits, got %v", hits)
	}
}

func TestSearchKNN_RejectsBadQuery(t *testing.T) {
	s := NewStoreForTest(nil)
	for name, q := range map[string]*db.KNNQuery{
		"no index":  {Vector: []float32{1}, K: 1},
		"no vector": {Index: "idx", K: 1},
		"zero k":    {Index: "idx", Vector: []float32{1}},
	} {
		if _, err := s.SearchKNN(context.Background(), q); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestVectorBytes(t *testing.T) {
	v := []float32{1, -2.5, 0, 3.25}
	blob := VectorToBytes(v)
	if len(blob) != 16 {
		t.Fatalf("blob length = %d, want 16", len(blob))
	}

	got, err := BytesToVector(blob)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range v {
		if got[i] != v[i] {
			t.Fatalf("got %v, want %v", got, v)
		}
	}

	if _, err := BytesToVector("abc"); err == nil {
		t.Error("expected error for truncated blob")
	}
}
