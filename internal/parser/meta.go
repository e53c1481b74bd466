package parser

import (
	"strings"

	"github.com/dshills/docgraph/pkg/types"
)

// Recognized <meta name> values
const (
	metaTaskStatus       = "task-status"
	metaTaskPriority     = "task-priority"
	metaGraphTags        = "graph-tags"
	metaGraphConnections = "graph-connections"
)

// applyMeta folds one <meta name content> pair into the extraction.
// Recognized names match case-insensitively; unrecognized names are kept
// verbatim, spelling included, as string values.
func applyMeta(ex *types.Extraction, name, content string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	content = strings.TrimSpace(content)

	switch strings.ToLower(name) {
	case metaTaskStatus:
		status, ok := types.ParseStatus(content)
		ex.SetDerived(types.MetaStatus, types.StringValue(string(status)))
		if ok {
			ex.Status = status
		}
	case metaTaskPriority:
		priority, _ := types.ParsePriority(content)
		ex.SetDerived(types.MetaPriority, types.StringValue(string(priority)))
		ex.Priority = priority
	case metaGraphTags:
		ex.Tags = mergeList(ex.Tags, splitList(content))
		ex.SetDerived(types.MetaTags, types.ListValue(ex.Tags))
	case metaGraphConnections:
		ex.Connections = mergeList(ex.Connections, splitList(content))
		ex.SetDerived(types.MetaConnections, types.ListValue(ex.Connections))
	case types.MetaKeywords:
		ex.SetDerived(types.MetaKeywords, types.ListValue(splitList(content)))
	case types.MetaTaskType:
		ex.SetDerived(types.MetaTaskType, types.StringValue(content))
	case types.MetaDescription:
		ex.SetDerived(types.MetaDescription, types.StringValue(content))
	default:
		ex.SetVerbatim(name, types.StringValue(content))
	}
}

// splitList splits a comma-separated meta value, dropping blanks.
func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// mergeList appends items not already present, preserving order.
func mergeList(dst, items []string) []string {
	seen := make(map[string]struct{}, len(dst)+len(items))
	for _, d := range dst {
		seen[d] = struct{}{}
	}
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		dst = append(dst, item)
	}
	return dst
}
