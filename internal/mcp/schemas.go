package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// updateIndexTool returns the tool definition for update_index
func updateIndexTool() mcp.Tool {
	return mcp.Tool{
		Name:        "update_index",
		Description: "Bring the semantic index in sync with the codebase on disk, re-indexing only files whose content changed",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"rebuild": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, discard the existing index and re-index every file from scratch",
					"default":     false,
				},
			},
		},
	}
}

// searchTool returns the tool definition for search
func searchTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search",
		Description: "Search the indexed codebase with a natural language query and return the most similar code chunks",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural language search query",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"offset": map[string]interface{}{
					"type":        "integer",
					"description": "Number of ranked results to skip before returning, for pagination",
					"default":     0,
					"minimum":     0,
				},
				"refresh_index": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, update the index before searching",
					"default":     false,
				},
			},
			Required: []string{"query"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report index statistics: file, chunk and embedding counts plus the active embedding model",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{},
		},
	}
}
