// Package indexer coordinates the incremental update pipeline:
// scan -> diff -> chunk -> embed -> commit.
package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/semindex/semindex/internal/batcher"
	"github.com/semindex/semindex/internal/chunker"
	"github.com/semindex/semindex/internal/config"
	"github.com/semindex/semindex/internal/embedder"
	"github.com/semindex/semindex/internal/scanner"
	"github.com/semindex/semindex/internal/storage"
	"github.com/semindex/semindex/pkg/types"
)

// Stats reports the outcome of one update cycle.
type Stats struct {
	FilesScanned   int
	FilesUpserted  int
	FilesDeleted   int
	FilesUnchanged int
	FilesFailed    int
	ChunksIndexed  int
	EmbeddingCalls int
	EmbeddingsNew  int
	Duration       time.Duration
	ErrorMessages  []string
}

// Indexer runs incremental index updates. Update calls are serialized: the
// second concurrent caller gets ErrUpdateInProgress rather than waiting.
type Indexer struct {
	cfg      *config.Config
	scanner  *scanner.Scanner
	chunker  *chunker.Chunker
	batcher  *batcher.Batcher
	embedder embedder.Embedder
	storage  storage.Storage
	lock     UpdateLock
}

// New wires the update pipeline from the loaded configuration.
func New(cfg *config.Config, store storage.Storage, emb embedder.Embedder) *Indexer {
	registry := chunker.NewRegistry()

	return &Indexer{
		cfg:      cfg,
		scanner:  scanner.New(cfg.RootPath, registry.Extensions(), cfg.Workers),
		chunker:  chunker.New(registry),
		batcher:  batcher.New(emb, store, cfg.MaxBatchSize, cfg.Workers),
		embedder: emb,
		storage:  store,
	}
}

// chunkedFile is one upsert candidate with its extracted chunks, ready to
// commit once every chunk has an embedding.
type chunkedFile struct {
	record storage.FileRecord
	chunks []types.Chunk
}

// Update brings the index in line with the file tree. It is idempotent: with
// no intervening file changes, a second call issues zero embedding calls and
// leaves the store untouched.
func (idx *Indexer) Update(ctx context.Context) (*Stats, error) {
	if !idx.lock.TryAcquire() {
		return nil, types.ErrUpdateInProgress
	}
	defer idx.lock.Release()

	return idx.update(ctx)
}

// update runs one cycle. The caller holds the update lock.
func (idx *Indexer) update(ctx context.Context) (*Stats, error) {
	startTime := time.Now()
	stats := &Stats{}

	if err := idx.checkModel(ctx); err != nil {
		return nil, err
	}

	scanned, scanErrs, err := idx.scanner.Scan()
	if err != nil {
		return nil, fmt.Errorf("scan codebase: %w", err)
	}
	stats.FilesScanned = len(scanned)
	for _, se := range scanErrs {
		stats.FilesFailed++
		stats.ErrorMessages = append(stats.ErrorMessages, se.Error())
	}

	state, err := idx.storage.IndexState(ctx)
	if err != nil {
		return nil, fmt.Errorf("load index state: %w", err)
	}

	changes := Diff(scanned, scanErrs, state)
	stats.FilesUnchanged = changes.Unchanged

	chunked, chunkErrs := idx.chunkFiles(ctx, changes.ToUpsert)
	for _, msg := range chunkErrs {
		stats.FilesFailed++
		stats.ErrorMessages = append(stats.ErrorMessages, msg)
	}

	allChunks := make([]types.Chunk, 0)
	for _, cf := range chunked {
		allChunks = append(allChunks, cf.chunks...)
	}

	result := &batcher.Result{Vectors: map[string][]float32{}, Failed: map[string]bool{}}
	if len(allChunks) > 0 {
		result, err = idx.batcher.EmbedChunks(ctx, allChunks)
		if err != nil {
			return nil, fmt.Errorf("embed chunks: %w", err)
		}
		for _, e := range result.Errors {
			stats.ErrorMessages = append(stats.ErrorMessages, e.Error())
		}
	}
	stats.EmbeddingCalls = result.Calls
	stats.EmbeddingsNew = len(result.Vectors)

	dimension := idx.commitDimension(ctx, result)

	// Commit file by file; a file whose batch failed stays uncommitted and
	// is retried next cycle, never partially indexed.
	for _, cf := range chunked {
		if hasFailedChunk(cf.chunks, result.Failed) {
			stats.FilesFailed++
			stats.ErrorMessages = append(stats.ErrorMessages,
				fmt.Sprintf("%s: embedding failed, will retry next update", cf.record.Path))
			continue
		}

		if err := idx.storage.CommitFile(ctx, &cf.record, cf.chunks, result.Vectors, idx.embedder.ModelID(), dimension); err != nil {
			stats.FilesFailed++
			stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", cf.record.Path, err))
			continue
		}

		stats.FilesUpserted++
		stats.ChunksIndexed += len(cf.chunks)
	}

	for _, path := range changes.ToDelete {
		if err := idx.storage.DeleteFile(ctx, path); err != nil && err != storage.ErrNotFound {
			stats.FilesFailed++
			stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("delete %s: %v", path, err))
			continue
		}
		stats.FilesDeleted++
	}

	if stats.FilesUpserted > 0 || stats.FilesDeleted > 0 {
		if collected, err := idx.storage.GCEmbeddings(ctx); err != nil {
			stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("gc embeddings: %v", err))
		} else if collected > 0 {
			log.Printf("collected %d orphaned embeddings", collected)
		}
	}

	stats.Duration = time.Since(startTime)
	return stats, nil
}

// Rebuild drops the whole index and re-indexes from scratch. Required after
// switching to an embedding model with a different dimension. The lock is
// held across reset and re-index so no other update sees the wiped store.
func (idx *Indexer) Rebuild(ctx context.Context) (*Stats, error) {
	if !idx.lock.TryAcquire() {
		return nil, types.ErrUpdateInProgress
	}
	defer idx.lock.Release()

	if err := idx.storage.Reset(ctx); err != nil {
		return nil, fmt.Errorf("reset index: %w", err)
	}
	return idx.update(ctx)
}

// checkModel surfaces a model switch as an explicit error instead of letting
// incompatible vectors mix in one similarity query.
func (idx *Indexer) checkModel(ctx context.Context) error {
	stored, _, err := idx.storage.ActiveModel(ctx)
	if err == storage.ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	if stored != idx.embedder.ModelID() {
		return fmt.Errorf("%w: index built with %s, active model is %s",
			types.ErrModelMismatch, stored, idx.embedder.ModelID())
	}

	return nil
}

// chunkFiles re-reads and chunks the upsert candidates with a bounded worker
// pool. The fingerprint is recomputed from the content actually chunked so
// the committed state always matches the committed chunks.
func (idx *Indexer) chunkFiles(ctx context.Context, toUpsert []scanner.ScannedFile) ([]chunkedFile, []string) {
	var (
		mu      sync.Mutex
		chunked []chunkedFile
		errMsgs []string
	)

	g := new(errgroup.Group)
	g.SetLimit(idx.cfg.Workers)

	for _, sf := range toUpsert {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}

			content, err := os.ReadFile(filepath.Join(idx.cfg.RootPath, filepath.FromSlash(sf.Path)))
			if err != nil {
				mu.Lock()
				errMsgs = append(errMsgs, fmt.Sprintf("%s: %v", sf.Path, err))
				mu.Unlock()
				return nil
			}

			h := sha256.Sum256(content)
			chunks := idx.chunker.ChunkFile(sf.Path, string(content))

			language := ""
			if len(chunks) > 0 {
				language = chunks[0].Language
			}

			mu.Lock()
			chunked = append(chunked, chunkedFile{
				record: storage.FileRecord{
					Path:        sf.Path,
					Fingerprint: hex.EncodeToString(h[:]),
					Language:    language,
					ModTime:     sf.ModTime,
					SizeBytes:   int64(len(content)),
				},
				chunks: chunks,
			})
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()

	// Worker completion order is nondeterministic; commit in path order.
	sort.Slice(chunked, func(i, j int) bool {
		return chunked[i].record.Path < chunked[j].record.Path
	})

	return chunked, errMsgs
}

// commitDimension resolves the vector dimension recorded with this commit.
func (idx *Indexer) commitDimension(ctx context.Context, result *batcher.Result) int {
	if _, dim, err := idx.storage.ActiveModel(ctx); err == nil && dim > 0 {
		return dim
	}
	for _, vec := range result.Vectors {
		return len(vec)
	}
	return idx.embedder.Dimension()
}

// hasFailedChunk reports whether any of the file's chunk hashes failed to
// embed this cycle.
func hasFailedChunk(chunks []types.Chunk, failed map[string]bool) bool {
	for _, c := range chunks {
		if failed[c.ContentHash] {
			return true
		}
	}
	return false
}
