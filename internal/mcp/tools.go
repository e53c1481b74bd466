package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/docgraph/internal/searcher"
	dgerr "github.com/dshills/docgraph/pkg/errors"
	"github.com/dshills/docgraph/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
)

// handleIndexDocuments runs one index pass and reports its result
func (s *Server) handleIndexDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if _, err := arguments(request); err != nil {
		return nil, err
	}
	if s.indexer.Running() {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "an index run is already in progress", nil)
	}

	res, err := s.indexer.Index(ctx, s.roots)
	if err != nil {
		return nil, s.toolError("indexing failed", err)
	}

	response := map[string]interface{}{
		"run_id":         res.RunID,
		"processed":      res.Processed,
		"memories_added": res.MemoriesAdded,
		"duration_ms":    res.Duration.Milliseconds(),
	}

	if len(res.Failures) > 0 {
		// Include first few failures
		failureCount := len(res.Failures)
		if failureCount > 5 {
			response["failures"] = res.Failures[:5]
			response["failure_count"] = failureCount
		} else {
			response["failures"] = res.Failures
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchDocuments handles the search_documents tool invocation
func (s *Server) handleSearchDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	query := getStringDefault(args, "query", "")
	if query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", searcher.DefaultLimit)
	if limit < 1 || limit > searcher.MaxLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("limit must be between 1 and %d", searcher.MaxLimit), map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	mode := searcher.SearchMode(getStringDefault(args, "mode", string(searcher.ModeStrict)))
	if mode != searcher.ModeStrict && mode != searcher.ModeLoose {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid mode", map[string]interface{}{
			"param":   "mode",
			"value":   mode,
			"allowed": []searcher.SearchMode{searcher.ModeStrict, searcher.ModeLoose},
		})
	}

	resp, err := s.searcher.Search(ctx, searcher.SearchRequest{
		Query:    query,
		Limit:    limit,
		Mode:     mode,
		UseCache: true,
	})
	if err != nil {
		return nil, s.toolError("search failed", err)
	}

	response := map[string]interface{}{
		"results":       resp.Results,
		"total_results": resp.TotalResults,
		"mode":          resp.Mode,
		"fallback":      resp.Fallback,
		"duration_ms":   resp.Duration.Milliseconds(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetGraph handles the get_graph tool invocation
func (s *Server) handleGetGraph(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	minWeight := getFloatDefault(args, "min_weight", 0)
	if minWeight < 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "min_weight must not be negative", map[string]interface{}{
			"param": "min_weight",
			"value": minWeight,
		})
	}
	docType := types.DocType(getStringDefault(args, "type", ""))
	if docType != "" && !docType.Valid() {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid type", map[string]interface{}{
			"param":   "type",
			"value":   docType,
			"allowed": []types.DocType{types.DocTask, types.DocMemory, types.DocDocumentation},
		})
	}

	g, err := s.graph.Graph(ctx)
	if err != nil {
		return nil, s.toolError("failed to build graph", err)
	}

	g = filterGraph(g, docType, minWeight)
	response := map[string]interface{}{
		"nodes": g.Nodes,
		"links": g.Links,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// filterGraph keeps nodes of docType (all when empty) and links of at
// least minWeight whose endpoints both survive.
func filterGraph(g *types.Graph, docType types.DocType, minWeight float64) *types.Graph {
	out := &types.Graph{Nodes: []types.GraphNode{}, Links: []types.GraphLink{}}
	kept := make(map[int64]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if docType != "" && n.Type != docType {
			continue
		}
		kept[n.ID] = true
		out.Nodes = append(out.Nodes, n)
	}
	for _, l := range g.Links {
		if l.Weight < minWeight || !kept[l.Source] || !kept[l.Target] {
			continue
		}
		out.Links = append(out.Links, l)
	}
	return out
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if _, err := arguments(request); err != nil {
		return nil, err
	}

	status, err := s.storage.GetStatus(ctx)
	if err != nil {
		return nil, s.toolError("failed to get status", err)
	}

	byType := make(map[string]int, len(status.DocumentsByType))
	for t, n := range status.DocumentsByType {
		byType[string(t)] = n
	}

	lastUpdated := ""
	if !status.LastUpdatedAt.IsZero() {
		lastUpdated = status.LastUpdatedAt.Format(time.RFC3339)
	}

	response := map[string]interface{}{
		"indexing_in_progress": s.indexer.Running(),
		"last_updated_at":      lastUpdated,
		"statistics": map[string]interface{}{
			"documents_count":   status.DocumentsCount,
			"documents_by_type": byType,
			"tasks_count":       status.TasksCount,
			"tags_count":        status.TagsCount,
			"memories_count":    status.MemoriesCount,
			"references_count":  status.ReferencesCount,
			"index_size_mb":     fmt.Sprintf("%.2f", status.IndexSizeMB),
		},
		"health": map[string]interface{}{
			"database_accessible": status.Health.DatabaseAccessible,
			"fts_index_built":     status.Health.FTSIndexBuilt,
		},
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// toolError maps a coded error onto an MCP error. Internal failures are
// logged and reported without their cause.
func (s *Server) toolError(message string, err error) error {
	data := map[string]interface{}{"code": string(dgerr.CodeOf(err))}
	switch {
	case dgerr.IsConflict(err):
		return newMCPError(ErrorCodeIndexingInProgress, message, data)
	case dgerr.IsInvalidInput(err):
		data["reason"] = dgerr.SafeMessage(err)
		return newMCPError(ErrorCodeInvalidParams, message, data)
	}
	s.logger.Error().Err(err).Interface("fields", dgerr.FieldsOf(err)).Msg(message)
	return newMCPError(ErrorCodeInternalError, message, data)
}

// arguments returns the call's argument object; a call without arguments
// yields an empty one.
func arguments(request mcp.CallToolRequest) (map[string]interface{}, error) {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}, nil
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	return args, nil
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
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

func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	switch val := args[key].(type) {
	case float64:
		return val
	case int:
		return float64(val)
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
