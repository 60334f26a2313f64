// Package embedding decorates the embedding provider for use inside import runs.
package embedding

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docflat/internal/domain"
	"github.com/kailas-cloud/docflat/internal/logger"
	"github.com/kailas-cloud/docflat/internal/metrics"
)

// InstrumentedEmbedder wraps Embedder with input truncation and run-scoped logging.
// Transport metrics (requests, duration, tokens) are recorded in transport/openai.
type InstrumentedEmbedder struct {
	inner    domain.Embedder
	provider string
	model    string
	maxBytes int
}

// NewInstrumentedEmbedder wraps an embedder. Texts longer than maxBytes are
// cut at a rune boundary; zero disables the limit.
func NewInstrumentedEmbedder(inner domain.Embedder, provider, model string, maxBytes int) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{
		inner:    inner,
		provider: provider,
		model:    model,
		maxBytes: maxBytes,
	}
}

// Embed truncates text if needed and delegates to the inner embedder.
func (p *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	log := logger.FromContext(ctx)

	if cut, ok := truncate(text, p.maxBytes); ok {
		log.Debug("Embedding input truncated",
			zap.Int("bytes", len(text)),
			zap.Int("limit", p.maxBytes),
		)
		metrics.EmbeddingTruncatedTotal.WithLabelValues(p.model).Inc()
		text = cut
	}

	start := time.Now()
	result, err := p.inner.Embed(ctx, text)
	duration := time.Since(start)

	if err != nil {
		log.Error("Embedding request failed",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	log.Debug("Embedding request completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("total_tokens", result.TotalTokens),
	)
	return result, nil
}

// truncate cuts s to at most limit bytes without splitting a rune.
func truncate(s string, limit int) (string, bool) {
	if limit <= 0 || len(s) <= limit {
		return s, false
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut], true
}
