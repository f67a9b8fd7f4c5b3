package redis

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/reviewsearch/internal/db"
)

// hsetPipelineSize bounds how many HSETs share one DoMulti call.
const hsetPipelineSize = 256

// HSetMulti writes the hashes in pipelined chunks and stops at the first chunk
// with a failed write. The error names the first failing key and how many
// writes of that chunk failed; earlier chunks stay written.
func (s *Store) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	for start := 0; start < len(items); start += hsetPipelineSize {
		chunk := items[start:min(start+hsetPipelineSize, len(items))]
		if err := s.hsetChunk(ctx, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) hsetChunk(ctx context.Context, items []db.HashSetItem) error {
	cmds := make(rueidis.Commands, len(items))
	for i, item := range items {
		cmd := s.b().Hset().Key(item.Key).FieldValue()
		for k, v := range item.Fields {
			cmd = cmd.FieldValue(k, v)
		}
		cmds[i] = cmd.Build()
	}

	var (
		firstKey string
		firstErr error
		failed   int
	)
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			if firstErr == nil {
				firstKey, firstErr = items[i].Key, err
			}
			failed++
		}
	}
	if firstErr != nil {
		return &db.Error{
			Op:  db.OpHSet,
			Key: firstKey,
			Err: fmt.Errorf("%w (%d of %d writes failed)", firstErr, failed, len(items)),
		}
	}
	return nil
}
