package row

import (
	"context"
	"encoding/binary"
	"math"
	"testing"

	"github.com/kailas-cloud/docflat/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	jsonSetFn       func(ctx context.Context, key, path string, data []byte) error
	jsonSetMultiFn  func(ctx context.Context, items []db.JSONSetItem) error
	hreplaceFn      func(ctx context.Context, key string, fields map[string]string) error
	hreplaceMultiFn func(ctx context.Context, items []db.HashSetItem) error
	scanFn          func(ctx context.Context, pattern string) ([]string, error)
	delFn           func(ctx context.Context, keys ...string) (int, error)
	createIndexFn   func(ctx context.Context, def *db.IndexDefinition) error
	countFn         func(ctx context.Context, name string) (int, error)
	dropIndexFn     func(ctx context.Context, name string) error
	indexExistsFn   func(ctx context.Context, name string) (bool, error)
}

func (m *mockStore) JSONSet(ctx context.Context, key, path string, data []byte) error {
	if m.jsonSetFn != nil {
		return m.jsonSetFn(ctx, key, path, data)
	}
	return nil
}

func (m *mockStore) JSONSetMulti(ctx context.Context, items []db.JSONSetItem) error {
	if m.jsonSetMultiFn != nil {
		return m.jsonSetMultiFn(ctx, items)
	}
	return nil
}

func (m *mockStore) HReplaceMulti(ctx context.Context, items []db.HashSetItem) error {
	if m.hreplaceMultiFn != nil {
		return m.hreplaceMultiFn(ctx, items)
	}
	return nil
}

func (m *mockStore) HReplace(ctx context.Context, key string, fields map[string]string) error {
	if m.hreplaceFn != nil {
		return m.hreplaceFn(ctx, key, fields)
	}
	return nil
}

func (m *mockStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	if m.scanFn != nil {
		return m.scanFn(ctx, pattern)
	}
	return nil, nil
}

func (m *mockStore) Del(ctx context.Context, keys ...string) (int, error) {
	if m.delFn != nil {
		return m.delFn(ctx, keys...)
	}
	return len(keys), nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) DropIndex(ctx context.Context, name string) error {
	if m.dropIndexFn != nil {
		return m.dropIndexFn(ctx, name)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return false, nil
}

func (m *mockStore) CountDocuments(ctx context.Context, name string) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx, name)
	}
	return 0, nil
}

func newTestRepo(t *testing.T, storage db.StorageType) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, "", storage, true), ms
}

func bytesToVector(s string) []float32 {
	b := []byte(s)
	if len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
