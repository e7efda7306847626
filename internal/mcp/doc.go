// Package mcp implements the Model Context Protocol (MCP) server for semindex.
//
// The server exposes three tools to AI coding assistants:
//   - update_index: Bring the semantic index in sync with the files on disk
//   - search: Query the index with natural language and return ranked chunks
//   - get_status: Report index statistics and the active embedding model
//
// MCP is a JSON-RPC 2.0 protocol over stdio. The server reads requests from
// stdin and writes responses to stdout, so all logging goes to stderr.
//
// # Tool: update_index
//
//	Request:
//	{
//	  "name": "update_index",
//	  "arguments": {"rebuild": false}
//	}
//
//	Response:
//	{
//	  "files_scanned": 247,
//	  "files_upserted": 12,
//	  "files_deleted": 1,
//	  "files_unchanged": 234,
//	  "chunks_indexed": 96,
//	  "embedding_calls": 4,
//	  "duration_ms": 1830
//	}
//
// # Tool: search
//
//	Request:
//	{
//	  "name": "search",
//	  "arguments": {"query": "user authentication logic", "limit": 10}
//	}
//
//	Response:
//	{
//	  "results": [
//	    {
//	      "file_path": "internal/auth/service.py",
//	      "language": "python",
//	      "start_line": 45,
//	      "end_line": 72,
//	      "score": 0.92,
//	      "content": "def authenticate_user(...):"
//	    }
//	  ],
//	  "count": 1
//	}
//
// # Error Handling
//
// Errors follow standard JSON-RPC conventions:
//   - -32602: Invalid params (bad limit or offset)
//   - -32603: Internal error (database, embedding provider)
//   - -32002: An index update is already in progress
//   - -32003: Codebase not indexed yet
//   - -32004: Empty query
//   - -32005: Index built with a different embedding model
package mcp
