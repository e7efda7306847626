// Package embedder defines the embedding capability consumed by the indexing
// core and its provider implementations. Documents and queries are embedded
// through two named operations because asymmetric models encode them
// differently; symmetric providers simply treat them the same.
package embedder

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Common errors
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrProviderFailed    = errors.New("embedding provider failed")
	ErrUnsupportedModel  = errors.New("unsupported model")
	ErrEmptyText         = errors.New("text cannot be empty")
	ErrBatchTooLarge     = errors.New("batch size exceeds limit")
	ErrCountMismatch     = errors.New("provider returned wrong number of embeddings")
	ErrNoProviderEnabled = errors.New("no embedding provider configured")
)

// HardMaxBatchSize is the absolute per-call cap enforced by every provider,
// independent of the configured batch bound.
const HardMaxBatchSize = 100

// Embedder is the embedding capability. Implementations must return vectors
// that map positionally back to the input texts.
type Embedder interface {
	// EmbedDocuments embeds a batch of document texts in one backend call.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery embeds a search query, using the query-specific mode where
	// the model distinguishes it from document embedding.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the embedding dimension, or 0 if not yet known.
	Dimension() int

	// ModelID identifies the provider/model pair that partitions the
	// embedding table. Vectors from different ModelIDs are never mixed.
	ModelID() string

	// Close releases any resources held by the embedder.
	Close() error
}

// Cache provides in-memory LRU caching of query vectors by content hash.
type Cache struct {
	cache *lru.Cache[string, []float32]
}

// NewCache creates an embedding cache with LRU eviction.
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = 10000
	}
	cache, err := lru.New[string, []float32](maxLen)
	if err != nil {
		cache, _ = lru.New[string, []float32](10000)
	}
	return &Cache{cache: cache}
}

// Get retrieves a copy of a cached vector. Returning a copy keeps caller
// mutations out of the cache.
func (c *Cache) Get(hash string) ([]float32, bool) {
	vec, ok := c.cache.Get(hash)
	if !ok {
		return nil, false
	}
	out := make([]float32, len(vec))
	copy(out, vec)
	return out, true
}

// Set stores a vector, evicting the least recently used entry at capacity.
func (c *Cache) Set(hash string, vec []float32) {
	c.cache.Add(hash, vec)
}

// Len returns the current cache size.
func (c *Cache) Len() int {
	return c.cache.Len()
}

// ValidateTexts validates a batch of texts before dispatch.
func ValidateTexts(texts []string) error {
	if len(texts) == 0 {
		return fmt.Errorf("%w: no texts provided", ErrInvalidInput)
	}
	if len(texts) > HardMaxBatchSize {
		return fmt.Errorf("%w: max %d texts allowed", ErrBatchTooLarge, HardMaxBatchSize)
	}
	for i, text := range texts {
		if text == "" {
			return fmt.Errorf("%w: text at index %d is empty", ErrInvalidInput, i)
		}
	}
	return nil
}
