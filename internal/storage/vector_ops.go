package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/semindex/semindex/pkg/types"
)

// Search returns chunks ranked by cosine similarity to queryVector. Ranking
// is exact over the whole store: limit and offset slice the fully ranked
// order, never an approximation of it.
func (s *SQLiteStorage) Search(ctx context.Context, queryVector []float32, modelID string, limit, offset int) ([]types.SearchResult, error) {
	if limit <= 0 {
		return []types.SearchResult{}, nil
	}
	if offset < 0 {
		offset = 0
	}

	if VectorExtensionAvailable {
		return s.searchOptimized(ctx, queryVector, modelID, limit, offset)
	}
	return s.searchFallback(ctx, queryVector, modelID, limit, offset)
}

// searchOptimized ranks at the database layer via sqlite-vec.
// vec_distance_cosine returns distance (lower is better); similarity is
// 1 - distance to keep higher-is-better scores at the API.
func (s *SQLiteStorage) searchOptimized(ctx context.Context, queryVector []float32, modelID string, limit, offset int) ([]types.SearchResult, error) {
	queryBlob := serializeVector(queryVector)

	rows, err := s.db.QueryContext(ctx, `
		SELECT
			c.file_path, c.language, c.content, c.start_line, c.end_line,
			1.0 - vec_distance_cosine(e.vector, ?) AS score
		FROM chunks c
		INNER JOIN embeddings e
			ON e.content_hash = c.content_hash AND e.model_id = ?
		ORDER BY score DESC, c.file_path ASC, c.start_line ASC
		LIMIT ? OFFSET ?
	`, queryBlob, modelID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]types.SearchResult, 0, limit)
	for rows.Next() {
		var r types.SearchResult
		if err := rows.Scan(&r.FilePath, &r.Language, &r.Content, &r.StartLine, &r.EndLine, &r.Score); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, r)
	}

	return results, rows.Err()
}

// searchFallback computes cosine similarity in Go for purego builds.
func (s *SQLiteStorage) searchFallback(ctx context.Context, queryVector []float32, modelID string, limit, offset int) ([]types.SearchResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.file_path, c.language, c.content, c.start_line, c.end_line, e.vector
		FROM chunks c
		INNER JOIN embeddings e
			ON e.content_hash = c.content_hash AND e.model_id = ?
	`, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	candidates, err := scoreCandidates(rows, queryVector)
	if err != nil {
		return nil, err
	}

	sortCandidates(candidates)

	// Slice [offset, offset+limit) of the fully ranked order. An offset
	// beyond the result count yields empty, not an error.
	if offset >= len(candidates) {
		return []types.SearchResult{}, nil
	}
	end := offset + limit
	if end > len(candidates) {
		end = len(candidates)
	}

	return candidates[offset:end], nil
}

// scoreCandidates scans rows and computes cosine similarity for each.
func scoreCandidates(rows *sql.Rows, queryVector []float32) ([]types.SearchResult, error) {
	candidates := make([]types.SearchResult, 0, 1024)

	for rows.Next() {
		var r types.SearchResult
		var blob []byte
		if err := rows.Scan(&r.FilePath, &r.Language, &r.Content, &r.StartLine, &r.EndLine, &blob); err != nil {
			return nil, err
		}

		vector := deserializeVector(blob)
		if len(vector) != len(queryVector) {
			return nil, fmt.Errorf("%w: stored %d, query %d", types.ErrDimensionMismatch, len(vector), len(queryVector))
		}

		r.Score = cosineSimilarity(queryVector, vector)
		candidates = append(candidates, r)
	}

	return candidates, rows.Err()
}

// sortCandidates orders by score descending with a deterministic tie-break on
// file path then start line ascending.
func sortCandidates(candidates []types.SearchResult) {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		if candidates[i].FilePath != candidates[j].FilePath {
			return candidates[i].FilePath < candidates[j].FilePath
		}
		return candidates[i].StartLine < candidates[j].StartLine
	})
}

// serializeVector converts a float32 slice to a byte blob (little-endian).
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice.
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// SerializeVector is an exported helper for testing.
func SerializeVector(vector []float32) []byte {
	return serializeVector(vector)
}

// DeserializeVector is an exported helper for testing.
func DeserializeVector(blob []byte) []float32 {
	return deserializeVector(blob)
}

// CosineSimilarity is an exported helper for testing.
func CosineSimilarity(a, b []float32) float64 {
	return cosineSimilarity(a, b)
}
