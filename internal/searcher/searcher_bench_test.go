package searcher

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/dshills/docgraph/internal/storage"
	"github.com/dshills/docgraph/pkg/types"
)

func setupBenchSearcher(b *testing.B, docs int) *Searcher {
	b.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = store.Close() })

	words := []string{"indexer", "search", "session", "graph", "task", "memory", "retry", "cache"}
	ctx := context.Background()
	for i := range docs {
		var body strings.Builder
		for j := range 80 {
			body.WriteString(words[(i+j)%len(words)])
			body.WriteByte(' ')
		}
		doc := &storage.Document{
			Path:    fmt.Sprintf("docs/d%04d.html", i),
			Title:   fmt.Sprintf("Document %d %s", i, words[i%len(words)]),
			Content: body.String(),
			Type:    types.DocDocumentation,
		}
		if err := store.UpsertDocument(ctx, doc); err != nil {
			b.Fatal(err)
		}
	}
	return NewSearcher(store, &Config{CacheSize: 100})
}

func BenchmarkSearchStrict(b *testing.B) {
	s := setupBenchSearcher(b, 1000)
	ctx := context.Background()
	b.ResetTimer()
	for b.Loop() {
		if _, err := s.Search(ctx, SearchRequest{Query: "session graph"}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSearchCached(b *testing.B) {
	s := setupBenchSearcher(b, 1000)
	ctx := context.Background()
	req := SearchRequest{Query: "session graph", UseCache: true}
	b.ResetTimer()
	for b.Loop() {
		if _, err := s.Search(ctx, req); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkExcerpt(b *testing.B) {
	content := strings.Repeat("lorem ipsum dolor sit amet ", 400) + "daily session log" + strings.Repeat(" tail", 400)
	terms := []string{"session", "log"}
	for b.Loop() {
		_ = Excerpt(content, terms)
	}
}
