package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/dshills/docgraph/internal/storage"
)

func benchFixtures(b *testing.B, n int) string {
	b.Helper()
	base := b.TempDir()
	for i := range n {
		dir := filepath.Join(base, "tasks", []string{"active-tasks", "pending-tasks", "resolved-tasks"}[i%3])
		if err := os.MkdirAll(dir, 0o755); err != nil {
			b.Fatal(err)
		}
		body := fmt.Sprintf(`<html><head><title>Task %d</title><meta name="graph-tags" content="t%d"></head>
<body><h1>Task %d</h1><p>Depends on tasks/active-tasks/t%d.html</p></body></html>`, i, i%7, i, (i+1)%n)
		if err := os.WriteFile(filepath.Join(dir, fmt.Sprintf("t%d.html", i)), []byte(body), 0o644); err != nil {
			b.Fatal(err)
		}
	}
	return base
}

func benchmarkIndex(b *testing.B, workers int) {
	base := benchFixtures(b, 200)
	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		b.Fatal(err)
	}
	defer func() { _ = store.Close() }()

	idx := New(store, &Config{BaseDir: base, Workers: workers})
	ctx := context.Background()

	b.ResetTimer()
	for b.Loop() {
		if _, err := idx.Index(ctx, []string{base}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkIndexSequential(b *testing.B) { benchmarkIndex(b, 1) }
func BenchmarkIndexWorkers4(b *testing.B)   { benchmarkIndex(b, 4) }
