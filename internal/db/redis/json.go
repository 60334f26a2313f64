package redis

import (
	"context"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/docflat/internal/db"
)

// JSONSet writes a row document at key. With path "$" the whole document is
// replaced.
func (s *Store) JSONSet(ctx context.Context, key, path string, data []byte) error {
	if err := s.do(ctx, s.jsonSet(key, path, data)).Error(); err != nil {
		return &db.Error{Op: db.OpJSONSet, Key: key, Err: err}
	}
	return nil
}

// JSONSetMulti writes many row documents in one round trip. The first
// rejected document is reported with its key.
func (s *Store) JSONSetMulti(ctx context.Context, items []db.JSONSetItem) error {
	if len(items) == 0 {
		return nil
	}

	cmds := make(rueidis.Commands, len(items))
	for i, item := range items {
		cmds[i] = s.jsonSet(item.Key, item.Path, item.Data)
	}
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return &db.Error{Op: db.OpJSONSet, Key: items[i].Key, Err: err}
		}
	}
	return nil
}

func (s *Store) jsonSet(key, path string, data []byte) rueidis.Completed {
	if path == "" {
		path = "$"
	}
	return s.b().JsonSet().Key(key).Path(path).Value(rueidis.BinaryString(data)).Build()
}
