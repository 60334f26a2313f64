package embedding

import (
	"context"
	"errors"
	"testing"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/docflat/internal/domain"
	"github.com/kailas-cloud/docflat/internal/metrics"
)

type mockEmbedder struct {
	result domain.EmbeddingResult
	err    error
	got    string
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.got = text
	return m.result, m.err
}

func TestInstrumentedEmbedder_Success(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}}}
	p := NewInstrumentedEmbedder(inner, "test", "test-model", 0)

	res, err := p.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, res.Embedding, 3)
	assert.Equal(t, "hello", inner.got)
}

func TestInstrumentedEmbedder_Error(t *testing.T) {
	inner := &mockEmbedder{err: errors.New("provider down")}
	p := NewInstrumentedEmbedder(inner, "test", "test-model", 0)

	_, err := p.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, inner.err)
}

func TestInstrumentedEmbedder_Truncates(t *testing.T) {
	inner := &mockEmbedder{}
	p := NewInstrumentedEmbedder(inner, "test", "truncation-model", 5)
	truncated := metrics.EmbeddingTruncatedTotal.WithLabelValues("truncation-model")
	before := testutil.ToFloat64(truncated)

	_, err := p.Embed(context.Background(), "привет")
	require.NoError(t, err)
	assert.Equal(t, "пр", inner.got)
	assert.True(t, utf8.ValidString(inner.got))

	_, err = p.Embed(context.Background(), "hi")
	require.NoError(t, err)
	assert.InDelta(t, 1, testutil.ToFloat64(truncated)-before, 0)
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		limit int
		want  string
		cut   bool
	}{
		{"hello", 0, "hello", false},
		{"hello", 10, "hello", false},
		{"hello", 5, "hello", false},
		{"hello world", 5, "hello", true},
		{"ёж", 1, "", true},
		{"ёж", 3, "ё", true},
	}
	for _, tc := range tests {
		got, cut := truncate(tc.in, tc.limit)
		assert.Equal(t, tc.want, got, tc.in)
		assert.Equal(t, tc.cut, cut, tc.in)
	}
}
