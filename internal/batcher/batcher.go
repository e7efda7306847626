// Package batcher turns a burst of chunk texts into the minimum number of
// embedding calls: deduplicate by content hash, subtract vectors already
// stored for the active model, and dispatch the rest in bounded batches.
package batcher

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/semindex/semindex/internal/embedder"
	"github.com/semindex/semindex/internal/storage"
	"github.com/semindex/semindex/pkg/types"
)

// Result reports the outcome of one embedding cycle. A hash appears either in
// Vectors, in Failed, or was already stored; never partially computed.
type Result struct {
	// Vectors maps content hash to its freshly computed embedding.
	Vectors map[string][]float32

	// Failed holds hashes whose batch failed this cycle. Their owning
	// files must not be committed; they retry on the next update.
	Failed map[string]bool

	// Calls counts backend calls actually made this cycle.
	Calls int

	// Skipped counts hashes satisfied from the embedding table.
	Skipped int

	// Errors collects per-batch failures for caller visibility.
	Errors []error
}

// Batcher groups deduplicated embedding work into bounded batches and
// dispatches them concurrently.
type Batcher struct {
	embedder     embedder.Embedder
	storage      storage.Storage
	maxBatchSize int
	workers      int
}

// New creates a Batcher. maxBatchSize is the configured texts-per-call bound;
// workers bounds concurrent in-flight batches.
func New(emb embedder.Embedder, store storage.Storage, maxBatchSize, workers int) *Batcher {
	if maxBatchSize < 1 {
		maxBatchSize = 1
	}
	if maxBatchSize > embedder.HardMaxBatchSize {
		maxBatchSize = embedder.HardMaxBatchSize
	}
	if workers < 1 {
		workers = 1
	}
	return &Batcher{
		embedder:     emb,
		storage:      store,
		maxBatchSize: maxBatchSize,
		workers:      workers,
	}
}

// EmbedChunks computes embeddings for every distinct chunk text not already
// stored for the active model. For B missing texts and bound M, exactly
// ceil(B/M) backend calls are issued, each carrying at most M texts.
func (b *Batcher) EmbedChunks(ctx context.Context, chunks []types.Chunk) (*Result, error) {
	// Two chunks with identical text anywhere in the codebase share one
	// computation, keyed by content hash.
	texts := make(map[string]string, len(chunks))
	for _, chunk := range chunks {
		texts[chunk.ContentHash] = chunk.Content
	}

	hashes := make([]string, 0, len(texts))
	for h := range texts {
		hashes = append(hashes, h)
	}
	sort.Strings(hashes) // deterministic batch composition

	missing, err := b.storage.MissingEmbeddings(ctx, hashes, b.embedder.ModelID())
	if err != nil {
		return nil, fmt.Errorf("check stored embeddings: %w", err)
	}

	result := &Result{
		Vectors: make(map[string][]float32, len(missing)),
		Failed:  make(map[string]bool),
		Skipped: len(hashes) - len(missing),
	}

	if len(missing) == 0 {
		return result, nil
	}

	batches := partition(missing, b.maxBatchSize)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)

	for _, batch := range batches {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			batchTexts := make([]string, len(batch))
			for i, h := range batch {
				batchTexts[i] = texts[h]
			}

			vectors, err := b.embedder.EmbedDocuments(gctx, batchTexts)

			mu.Lock()
			defer mu.Unlock()
			result.Calls++

			if err != nil {
				// Batch-scoped failure: mark these hashes failed and
				// keep going, the rest of the cycle is unaffected.
				for _, h := range batch {
					result.Failed[h] = true
				}
				result.Errors = append(result.Errors, fmt.Errorf("embed batch of %d: %w", len(batch), err))
				return nil
			}

			if len(vectors) != len(batch) {
				for _, h := range batch {
					result.Failed[h] = true
				}
				result.Errors = append(result.Errors, fmt.Errorf("%w: sent %d, got %d", embedder.ErrCountMismatch, len(batch), len(vectors)))
				return nil
			}

			// Output vectors map positionally back to input texts.
			for i, h := range batch {
				result.Vectors[h] = vectors[i]
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return result, nil
}

// partition splits hashes into ordered batches of at most size elements.
func partition(hashes []string, size int) [][]string {
	batches := make([][]string, 0, (len(hashes)+size-1)/size)
	for start := 0; start < len(hashes); start += size {
		end := start + size
		if end > len(hashes) {
			end = len(hashes)
		}
		batches = append(batches, hashes[start:end])
	}
	return batches
}
