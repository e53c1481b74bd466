// Package storage provides SQLite-based persistence for indexed documents.
//
// The storage layer manages:
//   - Documents (one row per source path) and their JSON metadata
//   - Tags and the document/task join tables
//   - Tasks kept alongside task documents
//   - Memories appended from session logs
//   - Inferred references between documents
//   - The FTS5 full-text index over titles and content
//
// # Database Schema
//
// Tables:
//   - documents: path, title, plain-text content, type, metadata
//   - documents_fts: FTS5 index, rowid = documents.id, maintained by triggers
//   - tags, document_tags, task_tags: labels and their links
//   - tasks: status, priority and kind per task file
//   - memories: append-only session log entries
//   - doc_references: weighted directed edges, replaced per inference run
//
// Deleting a document cascades to its memories, tag links and references.
//
// # Transactions
//
// Use transactions for atomic per-file updates:
//
//	tx, err := store.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	if err := tx.UpsertDocument(ctx, doc); err != nil {
//	    return err
//	}
//	tag, _ := tx.GetOrCreateTag(ctx, "backend")
//	_ = tx.SetDocumentTags(ctx, doc.ID, []int64{tag.ID})
//
//	return tx.Commit()
//
// # Full-Text Search
//
// SearchText takes a ready FTS5 MATCH expression and ranks with
// bm25(documents_fts, 10.0, 1.0), so title hits dominate. SearchLike is the
// substring fallback used when MATCH fails or finds nothing.
//
// # Build Tags
//
// Pure Go build (default, or purego tag):
//
//   - Uses modernc.org/sqlite, FTS5 included
//
//     CGO_ENABLED=0 go build -tags "purego"
//
// CGO build (sqlite_cgo tag):
//
//   - Uses github.com/mattn/go-sqlite3
//
//   - Needs sqlite_fts5 for the full-text index
//
//     CGO_ENABLED=1 go build -tags "sqlite_cgo,sqlite_fts5"
package storage
