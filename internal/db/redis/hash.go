package redis

import (
	"context"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/docflat/internal/db"
)

// HReplace makes fields the whole content of the hash at key. Fields of an
// earlier version of the row do not survive.
func (s *Store) HReplace(ctx context.Context, key string, fields map[string]string) error {
	return s.HReplaceMulti(ctx, []db.HashSetItem{{Key: key, Fields: fields}})
}

// HReplaceMulti replaces many hashes in one round trip. Each row is a DEL
// followed by an HSET; a row without fields is only deleted.
func (s *Store) HReplaceMulti(ctx context.Context, items []db.HashSetItem) error {
	if len(items) == 0 {
		return nil
	}

	cmds := make(rueidis.Commands, 0, 2*len(items))
	keys := make([]string, 0, 2*len(items))
	for _, item := range items {
		cmds = append(cmds, s.b().Del().Key(item.Key).Build())
		keys = append(keys, item.Key)
		if len(item.Fields) == 0 {
			continue
		}
		hset := s.b().Hset().Key(item.Key).FieldValue()
		for k, v := range item.Fields {
			hset = hset.FieldValue(k, v)
		}
		cmds = append(cmds, hset.Build())
		keys = append(keys, item.Key)
	}

	for i, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return &db.Error{Op: db.OpHSet, Key: keys[i], Err: err}
		}
	}
	return nil
}
