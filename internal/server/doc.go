// Package server exposes the document store over HTTP.
//
// Routes:
//
//	GET  /health
//	GET  /api/documents            filtered, paginated document query
//	GET  /api/documents/content    raw source file, restricted to the roots
//	GET  /api/tasks                task listing as JSON or an HTML fragment
//	GET  /api/search               ranked full-text search
//	GET  /api/graph                document graph (nodes and weighted links)
//	POST /api/index                start an index run; ?wait=true blocks
//
// Errors are rendered as {"error": {"code", "message"}} with the status
// derived from the error code. Server-side failures carry a generic
// message and are logged with their full context.
package server
