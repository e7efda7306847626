package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/semindex/semindex/internal/indexer"
	"github.com/semindex/semindex/internal/searcher"
	"github.com/semindex/semindex/internal/storage"
	"github.com/semindex/semindex/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams    = -32602 // Invalid method parameters
	ErrorCodeInternalError    = -32603 // Internal JSON-RPC error
	ErrorCodeUpdateInProgress = -32002 // Another index update is already running
	ErrorCodeNotIndexed       = -32003 // Codebase not indexed yet
	ErrorCodeEmptyQuery       = -32004 // Query parameter is empty
	ErrorCodeModelMismatch    = -32005 // Index was built with a different embedding model
)

// handleUpdateIndex handles the update_index tool invocation
func (s *Server) handleUpdateIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		args = map[string]interface{}{}
	}

	rebuild, _ := args["rebuild"].(bool)

	var stats *indexer.Stats
	var err error
	if rebuild {
		stats, err = s.indexer.Rebuild(ctx)
	} else {
		stats, err = s.indexer.Update(ctx)
	}
	if err != nil {
		return nil, mapIndexError(err)
	}

	return mcp.NewToolResultText(formatJSON(statsResponse(stats))), nil
}

// handleSearch handles the search tool invocation
func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", searcher.DefaultLimit)
	offset := getIntDefault(args, "offset", 0)
	refresh, _ := args["refresh_index"].(bool)

	resp, err := s.searcher.Search(ctx, searcher.Request{
		Query:   query,
		Limit:   limit,
		Offset:  offset,
		Refresh: refresh,
	})
	if err != nil {
		return nil, mapSearchError(err)
	}

	results := make([]map[string]interface{}, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, map[string]interface{}{
			"file_path":  r.FilePath,
			"language":   r.Language,
			"content":    r.Content,
			"start_line": r.StartLine,
			"end_line":   r.EndLine,
			"score":      r.Score,
		})
	}

	response := map[string]interface{}{
		"results":     results,
		"count":       len(results),
		"duration_ms": resp.Duration.Milliseconds(),
	}
	if resp.Refresh != nil {
		response["refresh"] = statsResponse(resp.Refresh)
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.storage.Stats(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if stats.Files == 0 && stats.ModelID == "" {
		response := map[string]interface{}{
			"indexed": false,
			"path":    s.cfg.RootPath,
			"message": "Codebase not indexed. Use the update_index tool to build the index.",
		}
		return mcp.NewToolResultText(formatJSON(response)), nil
	}

	response := map[string]interface{}{
		"indexed": true,
		"path":    s.cfg.RootPath,
		"statistics": map[string]interface{}{
			"files_count":      stats.Files,
			"chunks_count":     stats.Chunks,
			"embeddings_count": stats.Embeddings,
		},
		"model": map[string]interface{}{
			"model_id":  stats.ModelID,
			"dimension": stats.Dimension,
		},
		"build_mode": storage.BuildMode,
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// statsResponse formats indexer statistics for a tool response
func statsResponse(stats *indexer.Stats) map[string]interface{} {
	response := map[string]interface{}{
		"files_scanned":   stats.FilesScanned,
		"files_upserted":  stats.FilesUpserted,
		"files_deleted":   stats.FilesDeleted,
		"files_unchanged": stats.FilesUnchanged,
		"files_failed":    stats.FilesFailed,
		"chunks_indexed":  stats.ChunksIndexed,
		"embedding_calls": stats.EmbeddingCalls,
		"embeddings_new":  stats.EmbeddingsNew,
		"duration_ms":     stats.Duration.Milliseconds(),
	}

	if len(stats.ErrorMessages) > 0 {
		errorCount := len(stats.ErrorMessages)
		if errorCount > 5 {
			response["errors"] = stats.ErrorMessages[:5]
			response["error_count"] = errorCount
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}

	return response
}

// mapIndexError converts indexer errors into MCP protocol errors
func mapIndexError(err error) error {
	switch {
	case errors.Is(err, types.ErrUpdateInProgress):
		return newMCPError(ErrorCodeUpdateInProgress, "an index update is already running", nil)
	case errors.Is(err, types.ErrModelMismatch):
		return newMCPError(ErrorCodeModelMismatch, "index was built with a different embedding model; rebuild required", map[string]interface{}{
			"error": err.Error(),
		})
	default:
		return newMCPError(ErrorCodeInternalError, "index update failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// mapSearchError converts searcher errors into MCP protocol errors
func mapSearchError(err error) error {
	switch {
	case errors.Is(err, searcher.ErrEmptyQuery):
		return newMCPError(ErrorCodeEmptyQuery, "query cannot be empty", nil)
	case errors.Is(err, searcher.ErrNotIndexed):
		return newMCPError(ErrorCodeNotIndexed, "codebase not indexed; run update_index first", nil)
	case errors.Is(err, types.ErrInvalidLimit), errors.Is(err, types.ErrInvalidOffset):
		return newMCPError(ErrorCodeInvalidParams, err.Error(), nil)
	case errors.Is(err, types.ErrModelMismatch):
		return newMCPError(ErrorCodeModelMismatch, "index was built with a different embedding model; rebuild required", map[string]interface{}{
			"error": err.Error(),
		})
	default:
		return newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}
