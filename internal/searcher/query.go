package searcher

import (
	"strings"
	"unicode"
)

// ExcerptWindow is the excerpt length in characters
const ExcerptWindow = 200

// Terms lowercases the query and splits it on whitespace, trimming
// punctuation from each word. Words left empty are dropped.
func Terms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if f != "" {
			terms = append(terms, f)
		}
	}
	return terms
}

// BuildMatchQuery renders terms as an FTS5 expression: each term a quoted
// prefix match, joined with AND (strict) or OR (loose).
func BuildMatchQuery(terms []string, mode SearchMode) string {
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		quoted = append(quoted, `"`+strings.ReplaceAll(t, `"`, `""`)+`"*`)
	}
	op := " AND "
	if mode == ModeLoose {
		op = " OR "
	}
	return strings.Join(quoted, op)
}

// Excerpt picks a window of about ExcerptWindow characters around the
// densest cluster of term matches. A term matches where it is a prefix of a
// word in content, ignoring case. The window is prefixed and suffixed with
// "..." where it cuts the content.
func Excerpt(content string, terms []string) string {
	text := []rune(content)
	if len(text) <= ExcerptWindow {
		return strings.TrimSpace(content)
	}

	matches := matchOffsets(text, terms)
	start := 0
	if len(matches) > 0 {
		start = densest(matches) - ExcerptWindow/2
	}
	start = max(0, min(start, len(text)-ExcerptWindow))
	end := start + ExcerptWindow

	excerpt := strings.TrimSpace(string(text[start:end]))
	if start > 0 {
		excerpt = "..." + excerpt
	}
	if end < len(text) {
		excerpt += "..."
	}
	return excerpt
}

// matchOffsets returns the rune offsets of every word start where a term
// is a prefix.
func matchOffsets(text []rune, terms []string) []int {
	needles := make([][]rune, 0, len(terms))
	for _, t := range terms {
		needles = append(needles, []rune(t))
	}

	var offsets []int
	for i := range text {
		if i > 0 && isWordRune(text[i-1]) {
			continue
		}
		for _, n := range needles {
			if hasPrefixFold(text[i:], n) {
				offsets = append(offsets, i)
				break
			}
		}
	}
	return offsets
}

// densest returns the match offset whose centered window holds the most
// matches, the earliest on ties.
func densest(offsets []int) int {
	best, bestCount := offsets[0], 0
	lo := 0
	hi := 0
	for _, o := range offsets {
		for lo < len(offsets) && offsets[lo] < o-ExcerptWindow/2 {
			lo++
		}
		for hi < len(offsets) && offsets[hi] < o+ExcerptWindow/2 {
			hi++
		}
		if count := hi - lo; count > bestCount {
			best, bestCount = o, count
		}
	}
	return best
}

func hasPrefixFold(text, prefix []rune) bool {
	if len(prefix) == 0 || len(text) < len(prefix) {
		return false
	}
	for i, r := range prefix {
		if unicode.ToLower(text[i]) != r {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
