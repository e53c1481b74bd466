package searcher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTerms(t *testing.T) {
	assert.Equal(t, []string{"session", "log"}, Terms("  Session   Log! "))
	assert.Equal(t, []string{"it's"}, Terms(`"it's"`))
	assert.Empty(t, Terms("?? --"))
}

func TestBuildMatchQuery(t *testing.T) {
	tests := []struct {
		name  string
		terms []string
		mode  SearchMode
		want  string
	}{
		{"strict", []string{"alpha", "beta"}, ModeStrict, `"alpha"* AND "beta"*`},
		{"loose", []string{"alpha", "beta"}, ModeLoose, `"alpha"* OR "beta"*`},
		{"single", []string{"alpha"}, ModeStrict, `"alpha"*`},
		{"quote escaped", []string{`a"b`}, ModeStrict, `"a""b"*`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildMatchQuery(tt.terms, tt.mode))
		})
	}
}

func TestExcerpt_Short(t *testing.T) {
	assert.Equal(t, "short text", Excerpt("  short text ", []string{"text"}))
}

func TestExcerpt_NoMatchStartsAtBeginning(t *testing.T) {
	content := strings.Repeat("a", 500)
	got := Excerpt(content, []string{"zzz"})
	assert.False(t, strings.HasPrefix(got, "..."))
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Len(t, got, ExcerptWindow+3)
}

func TestExcerpt_PicksDensestCluster(t *testing.T) {
	content := "alpha " + strings.Repeat("x ", 200) + "alpha beta gamma alpha " + strings.Repeat("y ", 200)
	got := Excerpt(content, []string{"alpha", "beta"})
	assert.Contains(t, got, "alpha beta gamma alpha")
	assert.True(t, strings.HasPrefix(got, "..."))
}

func TestExcerpt_WordStartsOnly(t *testing.T) {
	content := strings.Repeat("z ", 150) + "log " + strings.Repeat("q ", 200) + "catalog"
	got := Excerpt(content, []string{"log"})
	assert.Contains(t, got, "log q")
	assert.NotContains(t, got, "catalog")
}

func TestExcerpt_CaseInsensitive(t *testing.T) {
	content := strings.Repeat("w ", 200) + "The SESSION log" + strings.Repeat(" w", 200)
	assert.Contains(t, Excerpt(content, []string{"session"}), "SESSION log")
}

func TestExcerpt_UTF8(t *testing.T) {
	content := strings.Repeat("é", 300) + " café " + strings.Repeat("ü", 300)
	got := Excerpt(content, []string{"café"})
	assert.Contains(t, got, "café")
	assert.True(t, strings.HasPrefix(got, "..."))
}
