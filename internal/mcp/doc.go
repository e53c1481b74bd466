// Package mcp implements the Model Context Protocol (MCP) server for docgraph.
//
// The MCP server exposes four tools to AI assistants:
//   - index_documents: re-index the configured task, memory and docs trees
//   - search_documents: full-text search with ranked excerpts
//   - get_graph: documents and inferred references as nodes and links
//   - get_status: document counts, index health, run in progress
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Started with:
//
//	docgraph mcp --config docgraph.yaml
//
// # Tool: search_documents
//
//	Request:
//	{
//	  "name": "search_documents",
//	  "arguments": {"query": "deploy pipeline", "limit": 5, "mode": "strict"}
//	}
//
//	Response:
//	{
//	  "results": [
//	    {
//	      "title": "Deploy pipeline",
//	      "path": "tasks/active-tasks/deploy.html",
//	      "excerpt": "... the deploy pipeline stalls when ...",
//	      "rank": 4.12
//	    }
//	  ],
//	  "total_results": 1,
//	  "mode": "strict",
//	  "fallback": false
//	}
//
// # Tool: get_graph
//
// Optional arguments narrow the graph: "type" keeps nodes of one document
// type, "min_weight" drops lighter links. Links whose endpoints were
// filtered out are dropped too.
//
// # Error Handling
//
// Handlers return *MCPError values:
//
//	{
//	  "error": {
//	    "code": -32602,
//	    "message": "invalid mode",
//	    "data": {"param": "mode", "value": "fuzzy", "allowed": ["strict", "loose"]}
//	  }
//	}
//
// Error codes:
//   - -32602: Invalid params (missing or invalid arguments)
//   - -32603: Internal error (database, filesystem); the cause is logged only
//   - -32002: Indexing in progress
//   - -32004: Empty query
//
// # Logging
//
// The MCP server logs to stderr; stdout is reserved for the protocol.
package mcp
