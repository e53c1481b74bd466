// Package parser extracts title, plain text and meta fields from HTML
// documents using golang.org/x/net/html.
//
// # Basic Usage
//
//	p := parser.New()
//	ex, err := p.ParseFile("tasks/active-tasks/login.html")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(ex.Title, ex.Status, ex.Tags)
//
// # Extraction Rules
//
//   - script, style, noscript and template subtrees are dropped
//   - title comes from <title>, then the first <h1>, then the file name
//   - content is the visible <body> text with whitespace collapsed
//   - <a href> targets are collected into the "links" metadata list
//
// # Meta Tags
//
// Recognized <meta name> values:
//   - task-status: ACTIVE, PENDING, RESOLVED or ARCHIVED (case-insensitive)
//   - task-priority: LOW, MEDIUM, HIGH or URGENT
//   - graph-tags, graph-connections, keywords: comma-separated lists
//   - description: free text
//
// An invalid task-status is recorded as PENDING in metadata but leaves
// Extraction.Status empty, so callers can fall back to path inference.
// Any other meta name is stored verbatim.
package parser
