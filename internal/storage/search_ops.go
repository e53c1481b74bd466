package storage

import (
	"context"
	"fmt"
	"strings"
)

// searchText runs an FTS5 MATCH query. Title hits weigh ten times content
// hits; bm25 scores are lower-is-better.
func searchText(ctx context.Context, q querier, ftsQuery string, limit int) ([]TextResult, error) {
	if strings.TrimSpace(ftsQuery) == "" {
		return nil, fmt.Errorf("empty search query")
	}
	if limit <= 0 {
		return []TextResult{}, nil
	}

	sqlQuery := `
		SELECT
			d.id, d.path, d.title, d.content,
			bm25(documents_fts, 10.0, 1.0) AS score
		FROM documents_fts
		INNER JOIN documents d ON d.id = documents_fts.rowid
		WHERE documents_fts MATCH ?
		ORDER BY score
		LIMIT ?
	`
	rows, err := q.QueryContext(ctx, sqlQuery, ftsQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute FTS search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]TextResult, 0, limit)
	for rows.Next() {
		var r TextResult
		if err := rows.Scan(&r.DocumentID, &r.Path, &r.Title, &r.Content, &r.BM25Score); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// searchLike is the substring fallback: a document matches when any word
// appears in its title or content. SQLite LIKE folds ASCII case.
func searchLike(ctx context.Context, q querier, words []string, limit int) ([]TextResult, error) {
	if limit <= 0 {
		return []TextResult{}, nil
	}

	var conds []string
	var args []interface{}
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		pattern := likePattern(w)
		conds = append(conds, `d.title LIKE ? ESCAPE '\' OR d.content LIKE ? ESCAPE '\'`)
		args = append(args, pattern, pattern)
	}
	if len(conds) == 0 {
		return []TextResult{}, nil
	}

	sqlQuery := `
		SELECT d.id, d.path, d.title, d.content
		FROM documents d
		WHERE ` + strings.Join(conds, " OR ") + `
		ORDER BY d.updated_at DESC, d.id DESC
		LIMIT ?
	`
	rows, err := q.QueryContext(ctx, sqlQuery, append(args, limit)...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute substring search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]TextResult, 0, limit)
	for rows.Next() {
		var r TextResult
		if err := rows.Scan(&r.DocumentID, &r.Path, &r.Title, &r.Content); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// likePattern wraps s in wildcards after escaping LIKE metacharacters.
func likePattern(s string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
	return "%" + escaped + "%"
}
