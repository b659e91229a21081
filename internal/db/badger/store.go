// Package badger implements the embedded key-value store used by the flat
// index backend for snapshots and by the embedding cache when no Valkey or
// Redis is configured.
package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragd/internal/db"
)

var _ db.KVStore = (*Store)(nil)

// Store wraps a badger database.
type Store struct {
	db *badger.DB
}

// Config holds open options.
type Config struct {
	Dir      string
	InMemory bool // tests only
	Logger   *zap.Logger
}

// Open opens or creates a database in cfg.Dir.
func Open(cfg Config) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Dir)
	}

	if cfg.Logger != nil {
		opts = opts.WithLogger(&zapLogger{l: cfg.Logger.Sugar()})
	} else {
		opts = opts.WithLogger(nil)
	}

	bdb, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger %s: %w", cfg.Dir, err)
	}
	return &Store{db: bdb}, nil
}

// Ping reports whether the database is open.
func (s *Store) Ping(_ context.Context) error {
	if s.db.IsClosed() {
		return db.ErrClosed
	}
	return nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close badger: %w", err)
	}
	return nil
}

// Get returns a copy of the value stored at key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, db.ErrKeyNotFound
	}
	if err != nil {
		return nil, &db.Error{Op: "get", Key: key, Err: err}
	}
	return out, nil
}

// Set stores value at key.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return &db.Error{Op: "set", Key: key, Err: err}
	}
	return nil
}

// Del removes keys. Missing keys are ignored.
func (s *Store) Del(_ context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, k := range keys {
		if err := wb.Delete([]byte(k)); err != nil {
			return &db.Error{Op: "del", Err: err}
		}
	}
	if err := wb.Flush(); err != nil {
		return &db.Error{Op: "del", Err: err}
	}
	return nil
}

// Item is a key-value pair passed to SetMulti.
type Item struct {
	Key   string
	Value []byte
}

// SetMulti writes items in one batch. Batches larger than a single transaction are split.
func (s *Store) SetMulti(_ context.Context, items []Item) error {
	if len(items) == 0 {
		return nil
	}
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, it := range items {
		if err := wb.Set([]byte(it.Key), it.Value); err != nil {
			return &db.Error{Op: "set batch", Err: err}
		}
	}
	if err := wb.Flush(); err != nil {
		return &db.Error{Op: "set batch", Err: err}
	}
	return nil
}

// Iterate calls fn with each key under prefix in key order.
// value is only valid for the duration of the call.
func (s *Store) Iterate(ctx context.Context, prefix string, fn func(key string, value []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			err := item.Value(func(val []byte) error {
				return fn(string(item.Key()), val)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// DropPrefix deletes every key under prefix.
func (s *Store) DropPrefix(_ context.Context, prefix string) error {
	if err := s.db.DropPrefix([]byte(prefix)); err != nil {
		return &db.Error{Op: "drop prefix", Key: prefix, Err: err}
	}
	return nil
}

// zapLogger adapts zap to badger.Logger. Badger's info output is demoted to debug.
type zapLogger struct {
	l *zap.SugaredLogger
}

func (z *zapLogger) Errorf(f string, v ...any)   { z.l.Errorf(f, v...) }
func (z *zapLogger) Warningf(f string, v ...any) { z.l.Warnf(f, v...) }
func (z *zapLogger) Infof(f string, v ...any)    { z.l.Debugf(f, v...) }
func (z *zapLogger) Debugf(f string, v ...any)   { z.l.Debugf(f, v...) }
