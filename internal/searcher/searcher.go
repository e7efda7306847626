// Package searcher resolves natural-language queries against the vector
// store. Queries validate at the boundary, embed in query mode, and carry no
// side effects on the store.
package searcher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/semindex/semindex/internal/embedder"
	"github.com/semindex/semindex/internal/indexer"
	"github.com/semindex/semindex/internal/storage"
	"github.com/semindex/semindex/pkg/types"
)

const (
	// MaxLimit is the ceiling a requested limit is clamped to.
	MaxLimit = 100

	// DefaultLimit applies when no limit is requested.
	DefaultLimit = 10
)

// ErrNotIndexed is returned when searching before the first update.
var ErrNotIndexed = errors.New("index is empty; run update_index first")

// ErrEmptyQuery is returned for blank query text.
var ErrEmptyQuery = errors.New("query cannot be empty")

// Request contains parameters for a search operation.
type Request struct {
	Query   string
	Limit   int
	Offset  int
	Refresh bool // run an index update before searching
}

// Response contains ranked results and metadata.
type Response struct {
	Results  []types.SearchResult
	Duration time.Duration
	Refresh  *indexer.Stats // set when Refresh ran
}

// Searcher coordinates query embedding and vector search.
type Searcher struct {
	storage  storage.Storage
	embedder embedder.Embedder
	indexer  *indexer.Indexer
}

// New creates a Searcher. idx may be nil when refresh is never requested.
func New(store storage.Storage, emb embedder.Embedder, idx *indexer.Indexer) *Searcher {
	return &Searcher{
		storage:  store,
		embedder: emb,
		indexer:  idx,
	}
}

// Search validates the request, optionally refreshes the index, embeds the
// query, and returns the ranked slice [offset, offset+limit) of results.
func (s *Searcher) Search(ctx context.Context, req Request) (*Response, error) {
	startTime := time.Now()

	if err := s.validate(&req); err != nil {
		return nil, err
	}

	resp := &Response{}

	if req.Refresh && s.indexer != nil {
		stats, err := s.indexer.Update(ctx)
		switch {
		case errors.Is(err, types.ErrUpdateInProgress):
			// Another update is running; search the current snapshot.
			log.Printf("refresh skipped: %v", err)
		case err != nil:
			return nil, fmt.Errorf("refresh index: %w", err)
		default:
			resp.Refresh = stats
		}
	}

	modelID, dimension, err := s.storage.ActiveModel(ctx)
	if err == storage.ErrNotFound {
		return nil, ErrNotIndexed
	}
	if err != nil {
		return nil, err
	}

	// Never compare vectors across models: that is silent garbage, not a
	// degraded result.
	if modelID != s.embedder.ModelID() {
		return nil, fmt.Errorf("%w: index built with %s, active model is %s",
			types.ErrModelMismatch, modelID, s.embedder.ModelID())
	}

	queryVector, err := s.embedder.EmbedQuery(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	if dimension > 0 && len(queryVector) != dimension {
		return nil, fmt.Errorf("%w: stored %d, query %d",
			types.ErrDimensionMismatch, dimension, len(queryVector))
	}

	results, err := s.storage.Search(ctx, queryVector, modelID, req.Limit, req.Offset)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	resp.Results = results
	resp.Duration = time.Since(startTime)
	return resp, nil
}

// validate rejects malformed requests at the boundary. A limit above the
// ceiling is clamped; a negative offset is an error, never silently fixed.
func (s *Searcher) validate(req *Request) error {
	if req.Query == "" {
		return ErrEmptyQuery
	}

	if req.Limit == 0 {
		req.Limit = DefaultLimit
	}
	if req.Limit < 1 {
		return fmt.Errorf("%w: got %d", types.ErrInvalidLimit, req.Limit)
	}
	if req.Limit > MaxLimit {
		req.Limit = MaxLimit
	}

	if req.Offset < 0 {
		return fmt.Errorf("%w: got %d", types.ErrInvalidOffset, req.Offset)
	}

	return nil
}
