package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// indexDocumentsTool returns the tool definition for index_documents
func indexDocumentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_documents",
		Description: "Re-index the configured task, memory and documentation trees",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// searchDocumentsTool returns the tool definition for search_documents
func searchDocumentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_documents",
		Description: "Full-text search over indexed documents, best match first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search words; each word also matches as a prefix",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-20)",
					"default":     10,
					"minimum":     1,
					"maximum":     20,
				},
				"mode": map[string]interface{}{
					"type":        "string",
					"description": "strict requires every word, loose any word",
					"enum":        []string{"strict", "loose"},
					"default":     "strict",
				},
			},
			Required: []string{"query"},
		},
	}
}

// getGraphTool returns the tool definition for get_graph
func getGraphTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_graph",
		Description: "Return documents as graph nodes and inferred references as weighted links",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"min_weight": map[string]interface{}{
					"type":        "number",
					"description": "Drop links lighter than this weight",
					"default":     0,
					"minimum":     0,
				},
				"type": map[string]interface{}{
					"type":        "string",
					"description": "Only include nodes of this document type",
					"enum":        []string{"task", "memory", "documentation"},
				},
			},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report document counts, index health and whether an index run is in progress",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
