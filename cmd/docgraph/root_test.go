package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docgraph/pkg/types"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

// writeWorkspace lays out a small note tree and a config pointing at it.
func writeWorkspace(t *testing.T) string {
	t.Helper()
	base := t.TempDir()

	files := map[string]string{
		"tasks/active-tasks/deploy.html": `<html><head><title>Deploy pipeline</title>
<meta name="tags" content="ops, release"></head>
<body><p>Ship the release through the deploy pipeline.</p></body></html>`,
		"tasks/pending-tasks/rollback.html": `<html><head><title>Rollback plan</title></head>
<body><p>Related Tasks: <a href="../active-tasks/deploy.html">Deploy pipeline</a></p></body></html>`,
		"docs/guide.html": `<html><head><title>Guide</title></head><body><p>How the pipeline works.</p></body></html>`,
	}
	for rel, content := range files {
		p := filepath.Join(base, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}

	cfg := fmt.Sprintf(`base_dir: %q
database:
  path: %q
log:
  level: error
`, base, filepath.Join(base, "docgraph.db"))
	cfgPath := filepath.Join(base, "docgraph.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	return cfgPath
}

func TestRootCommand_Help(t *testing.T) {
	out, err := run(t, "--help")
	require.NoError(t, err)
	for _, sub := range []string{"serve", "index", "infer", "search", "prune", "mcp", "version"} {
		assert.Contains(t, out, sub)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "docgraph dev")
	assert.Contains(t, out, "sqlite:")
}

func TestIndexCommand_MissingConfig(t *testing.T) {
	_, err := run(t, "index", "--config", "/nonexistent/docgraph.yaml")
	assert.Error(t, err)
}

func TestSearchCommand_RequiresQuery(t *testing.T) {
	_, err := run(t, "search")
	assert.Error(t, err)
}

func TestIndexThenSearch(t *testing.T) {
	cfgPath := writeWorkspace(t)

	out, err := run(t, "index", "--config", cfgPath, "--infer")
	require.NoError(t, err)

	var summary struct {
		Index struct {
			RunID     string          `json:"run_id"`
			Processed int             `json:"processed"`
			Failures  []types.Failure `json:"failures"`
		} `json:"index"`
		Infer struct {
			Documents  int `json:"documents"`
			References int `json:"references"`
		} `json:"infer"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.NotEmpty(t, summary.Index.RunID)
	assert.Equal(t, 3, summary.Index.Processed)
	assert.Empty(t, summary.Index.Failures)
	assert.Equal(t, 3, summary.Infer.Documents)
	assert.GreaterOrEqual(t, summary.Infer.References, 1)

	out, err = run(t, "search", "--config", cfgPath, "--json", "deploy", "pipeline")
	require.NoError(t, err)

	var results []types.SearchResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.NotEmpty(t, results)
	paths := make([]string, 0, len(results))
	for _, r := range results {
		paths = append(paths, r.Path)
	}
	assert.Contains(t, paths, "tasks/active-tasks/deploy.html")

	out, err = run(t, "search", "--config", cfgPath, "zebra")
	require.NoError(t, err)
	assert.Contains(t, out, "no results")
}

func TestPruneCommand(t *testing.T) {
	cfgPath := writeWorkspace(t)

	out, err := run(t, "prune", "--config", cfgPath, "--keep", "5")
	require.NoError(t, err)
	assert.JSONEq(t, `{"kept": 5, "removed": 0}`, out)
}
