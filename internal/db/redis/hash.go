package redis

import (
	"context"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/ragd/internal/db"
)

const scanCount = 500

// HSetMulti writes hashes in one pipelined round-trip. The first failure is returned.
func (s *Store) HSetMulti(ctx context.Context, hashes []db.Hash) error {
	if len(hashes) == 0 {
		return nil
	}

	cmds := make(rueidis.Commands, 0, len(hashes))
	for _, h := range hashes {
		fv := s.client.B().Hset().Key(h.Key).FieldValue()
		for k, v := range h.Fields {
			fv = fv.FieldValue(k, v)
		}
		cmds = append(cmds, fv.Build())
	}

	for i, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return &db.Error{Op: "HSET", Key: hashes[i].Key, Err: err}
		}
	}
	return nil
}

// Scan collects every key matching pattern.
func (s *Store) Scan(ctx context.Context, pattern string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		cmd := s.client.B().Scan().Cursor(cursor).Match(pattern).Count(scanCount).Build()
		entry, err := s.client.Do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, &db.Error{Op: "SCAN", Err: err}
		}
		keys = append(keys, entry.Elements...)
		if cursor = entry.Cursor; cursor == 0 {
			return keys, nil
		}
	}
}
