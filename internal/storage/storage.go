package storage

import (
	"context"
	"errors"
	"time"

	"github.com/semindex/semindex/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist.
	ErrNotFound = errors.New("not found")
)

// Storage persists index state, chunks, and embeddings, and serves
// nearest-neighbor queries. Embeddings are keyed by content hash and model,
// never by chunk, so identical text shares one vector across files.
type Storage interface {
	// IndexState returns the durable file-path to fingerprint mapping that
	// drives incremental diffing.
	IndexState(ctx context.Context) (map[string]string, error)

	// CommitFile atomically replaces a file's chunks, stores any new
	// embeddings, and records the file's fingerprint. The fingerprint is
	// never visible without its chunks and embeddings: a crash before
	// commit leaves the file looking not-yet-indexed.
	CommitFile(ctx context.Context, file *FileRecord, chunks []types.Chunk, vectors map[string][]float32, modelID string, dimension int) error

	// DeleteFile removes a file and its chunks. Embeddings are not removed
	// here; orphans are collected by GCEmbeddings.
	DeleteFile(ctx context.Context, path string) error

	// GCEmbeddings deletes embeddings whose content hash is no longer
	// referenced by any chunk. Hashes shared with surviving chunks stay.
	GCEmbeddings(ctx context.Context) (int, error)

	// MissingEmbeddings filters hashes down to those without a stored
	// vector for the given model. This is the memoization check.
	MissingEmbeddings(ctx context.Context, hashes []string, modelID string) ([]string, error)

	// ActiveModel returns the model the embedding table was built with.
	// ErrNotFound before the first commit.
	ActiveModel(ctx context.Context) (modelID string, dimension int, err error)

	// Reset drops all files, chunks, and embeddings for a full rebuild.
	Reset(ctx context.Context) error

	// Search returns chunks ranked by cosine similarity to queryVector,
	// ties broken by file path then start line ascending. Offset and limit
	// apply after full ranking.
	Search(ctx context.Context, queryVector []float32, modelID string, limit, offset int) ([]types.SearchResult, error)

	// Stats reports index statistics.
	Stats(ctx context.Context) (*Stats, error)

	// Close closes the underlying database.
	Close() error
}

// FileRecord is the durable per-file index state entry.
type FileRecord struct {
	Path        string // Relative to the codebase root, unique key
	Fingerprint string // SHA-256 hex of content
	Language    string
	ModTime     time.Time
	SizeBytes   int64
	IndexedAt   time.Time
}

// Stats contains statistics about the stored index.
type Stats struct {
	Files      int
	Chunks     int
	Embeddings int
	ModelID    string
	Dimension  int
}
