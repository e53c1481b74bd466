package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docgraph/internal/storage"
	"github.com/dshills/docgraph/pkg/types"
)

func doc(id int64, path, title, content string) *storage.Document {
	return &storage.Document{ID: id, Path: path, Title: title, Content: content, Metadata: types.Metadata{}}
}

func edges(refs []storage.Reference) map[[2]int64]storage.Reference {
	out := make(map[[2]int64]storage.Reference, len(refs))
	for _, r := range refs {
		out[[2]int64{r.SourceID, r.TargetID}] = r
	}
	return out
}

func TestScore_Signals(t *testing.T) {
	target := doc(2, "tasks/pending-tasks/b.html", "Beta Task", "beta body")

	tests := []struct {
		name     string
		src      *storage.Document
		wantW    float64
		wantType string
	}{
		{"title only", doc(1, "docs/a.html", "A", "we discussed the beta task today"), WeightTitle, TypeTitle},
		{"path only", doc(1, "docs/a.html", "A", "see tasks/pending-tasks/b.html"), WeightPath, TypePath},
		{"directory only", doc(1, "tasks/pending-tasks/c.html", "C", "unrelated"), WeightDirectory, TypeDirectory},
		{"related marker", doc(1, "docs/a.html", "A", "Related Tasks: tasks/pending-tasks/b.html"), WeightLink + WeightPath, TypeLink},
		{"none", doc(1, "docs/a.html", "A", "nothing here"), 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, kind := Score(tt.src, target)
			assert.InDelta(t, tt.wantW, w, 1e-9)
			assert.Equal(t, tt.wantType, kind)
		})
	}
}

func TestScore_LinkMetadata(t *testing.T) {
	target := doc(2, "tasks/pending-tasks/b.html", "Beta", "")

	relative := doc(1, "tasks/active-tasks/a.html", "Alpha", "")
	relative.Metadata[types.MetaLinks] = types.ListValue([]string{"../pending-tasks/b.html"})
	w, kind := Score(relative, target)
	assert.InDelta(t, WeightLink, w, 1e-9)
	assert.Equal(t, TypeLink, kind)

	connected := doc(1, "docs/a.html", "Alpha", "")
	connected.Metadata[types.MetaConnections] = types.ListValue([]string{"/tasks/pending-tasks/b.html"})
	w, _ = Score(connected, target)
	assert.InDelta(t, WeightLink, w, 1e-9)
}

func TestScore_Monotonic(t *testing.T) {
	target := doc(2, "tasks/pending-tasks/b.html", "Beta Task", "")
	titleOnly, _ := Score(doc(1, "docs/a.html", "A", "Beta Task"), target)
	pathOnly, _ := Score(doc(1, "docs/a.html", "A", "tasks/pending-tasks/b.html"), target)
	both, _ := Score(doc(1, "docs/a.html", "A", "Beta Task at tasks/pending-tasks/b.html"), target)

	assert.Greater(t, both, titleOnly)
	assert.Greater(t, both, pathOnly)
	assert.InDelta(t, WeightTitle+WeightPath, both, 1e-9)
}

func TestScore_Uncapped(t *testing.T) {
	target := doc(2, "tasks/x/b.html", "Beta", "")
	src := doc(1, "tasks/x/a.html", "A", `Beta lives at tasks/x/b.html href="tasks/x/b.html"`)
	w, kind := Score(src, target)
	assert.InDelta(t, WeightTitle+WeightPath+WeightDirectory+WeightLink, w, 1e-9)
	assert.Greater(t, w, 1.0)
	assert.Equal(t, TypeLink, kind)
}

func TestInferReferences_Directional(t *testing.T) {
	a := doc(1, "tasks/active-tasks/a.html", "Alpha Task", "depends on tasks/pending-tasks/b.html")
	b := doc(2, "tasks/pending-tasks/b.html", "Beta Task", "standalone")
	c := doc(3, "docs/c.html", "", "mentions nothing")

	got := edges(InferReferences([]*storage.Document{a, b, c}))

	require.Contains(t, got, [2]int64{1, 2})
	assert.GreaterOrEqual(t, got[[2]int64{1, 2}].Weight, WeightPath)
	assert.NotContains(t, got, [2]int64{2, 1})
	assert.Len(t, got, 1)
}

func TestInferReferences_EmptyTitleNeverMatches(t *testing.T) {
	a := doc(1, "a.html", "", "anything")
	b := doc(2, "b.html", "  ", "anything")
	assert.Empty(t, InferReferences([]*storage.Document{a, b}))
}

func TestInferReferences_SkipsSelf(t *testing.T) {
	a := doc(1, "docs/a.html", "Alpha", "Alpha mentions itself at docs/a.html")
	assert.Empty(t, InferReferences([]*storage.Document{a}))
}

func TestTopDirs(t *testing.T) {
	assert.Equal(t, "tasks/active-tasks", topDirs("tasks/active-tasks/deep/a.html"))
	assert.Equal(t, "docs", topDirs("docs/a.html"))
	assert.Equal(t, "", topDirs("a.html"))
}
