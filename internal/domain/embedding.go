package domain

import (
	"context"
	"fmt"
	"strings"
)

// Embedder is the shared text vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// HealthChecker verifies embedding provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the embedding vector and token usage through the decorator chain.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// DocumentEmbedder turns the content column of a row into provider input.
// Surrounding whitespace is dropped and the document instruction, if any,
// is prepended. Blank text fails with ErrEmptyDocument before any request.
type DocumentEmbedder struct {
	inner       Embedder
	instruction string
}

// NewDocumentEmbedder wraps inner. It sits outermost so that cache keys
// include the instruction.
func NewDocumentEmbedder(inner Embedder, instruction string) *DocumentEmbedder {
	return &DocumentEmbedder{inner: inner, instruction: instruction}
}

// Embed vectorizes one document.
func (e *DocumentEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	body := strings.TrimSpace(text)
	if body == "" {
		return EmbeddingResult{}, ErrEmptyDocument
	}
	result, err := e.inner.Embed(ctx, e.instruction+body)
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("embed document: %w", err)
	}
	return result, nil
}
