package chunker

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docgraph/pkg/types"
)

func TestNew(t *testing.T) {
	assert.NotNil(t, New())
}

func TestSplit_Articles(t *testing.T) {
	page := `<html><body>
<h1>Session Log</h1>
<article>
  <h2>Morning</h2>
  <time datetime="2024-01-15T09:30:00Z">9:30</time>
  <p>Reviewed the indexer.</p>
</article>
<div class="log entry">
  <h3>Afternoon</h3>
  <p>Fixed <em>search</em> fallback.</p>
  <article>nested is part of the outer entry</article>
</div>
<article><p>   </p></article>
</body></html>`

	entries, err := New().Split([]byte(page))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "Morning", entries[0].Heading)
	assert.Equal(t, "9:30 Reviewed the indexer.", entries[0].Content)
	require.NotNil(t, entries[0].EntryTime)
	assert.True(t, time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC).Equal(*entries[0].EntryTime))

	assert.Equal(t, "Afternoon", entries[1].Heading)
	assert.Equal(t, "Fixed search fallback. nested is part of the outer entry", entries[1].Content)
	assert.Nil(t, entries[1].EntryTime)
}

func TestSplit_Sections(t *testing.T) {
	page := `<body>
<p>preamble is dropped</p>
<h2>First</h2>
<p>alpha <time datetime="10:15">later</time></p>
<h3>Second</h3>
<ul><li>beta</li><li>gamma</li></ul>
</body>`

	entries, err := New().Split([]byte(page))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "First", entries[0].Heading)
	assert.Equal(t, "alpha later", entries[0].Content)
	require.NotNil(t, entries[0].EntryTime)
	assert.Equal(t, 0, entries[0].EntryTime.Year())
	assert.Equal(t, 10, entries[0].EntryTime.Hour())

	assert.Equal(t, "Second", entries[1].Heading)
	assert.Equal(t, "beta gamma", entries[1].Content)
}

func TestSplit_WholePage(t *testing.T) {
	entries, err := New().Split([]byte(`<body><p>just one note</p><script>x()</script></body>`))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "just one note", entries[0].Content)
	assert.Empty(t, entries[0].Heading)

	entries, err = New().Split([]byte(`<body>   </body>`))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSplitOversized(t *testing.T) {
	word := strings.Repeat("x", 99)
	content := strings.TrimSpace(strings.Repeat(word+" ", 100)) // 9999 chars

	parts := New().SplitOversized(types.LogEntry{Heading: "Big", Content: content})
	require.Len(t, parts, 3)
	for _, p := range parts {
		assert.Equal(t, "Big", p.Heading)
		assert.LessOrEqual(t, len(p.Content), MaxEntryChars)
	}

	small := New().SplitOversized(types.LogEntry{Content: "short"})
	assert.Len(t, small, 1)
}

func TestAnchor(t *testing.T) {
	clock := ParseEntryTime("14:05")
	full := ParseEntryTime("2023-05-01")
	entries := []types.LogEntry{{Content: "a", EntryTime: clock}, {Content: "b", EntryTime: full}, {Content: "c"}}

	Anchor(entries, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, time.Date(2024, 2, 29, 14, 5, 0, 0, time.UTC), *entries[0].EntryTime)
	assert.Equal(t, 2023, entries[1].EntryTime.Year())
	assert.Nil(t, entries[2].EntryTime)
}

func TestEntryHash(t *testing.T) {
	at := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	a := EntryHash("h", "c", &at)
	assert.Equal(t, a, EntryHash("h", "c", &at))
	assert.NotEqual(t, a, EntryHash("h", "c", nil))
	assert.NotEqual(t, a, EntryHash("hc", "", &at))
}
