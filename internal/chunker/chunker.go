package chunker

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/dshills/docgraph/internal/parser"
	"github.com/dshills/docgraph/pkg/types"
)

const (
	// MaxEntryChars is the longest entry kept whole; longer entries are
	// split at word boundaries.
	MaxEntryChars = 4000

	// entryClass marks a log entry container
	entryClass = "entry"
)

// timeLayouts are tried in order against <time datetime>.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
	"15:04:05",
	"15:04",
}

// Chunker splits session-log pages into log entries
type Chunker struct{}

// New creates a new Chunker instance
func New() *Chunker {
	return &Chunker{}
}

// Split breaks a session-log page into entries. Entries come from
// <article> elements or elements with class "entry"; failing that, from
// <h2>/<h3> sections; failing that, the whole page is one entry.
func (c *Chunker) Split(raw []byte) ([]types.LogEntry, error) {
	root, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	body := findBody(root)

	entries := c.splitContainers(body)
	if len(entries) == 0 {
		entries = c.splitSections(body)
	}
	if len(entries) == 0 {
		text := parser.CollapseSpace(parser.Text(body))
		if text != "" {
			entries = []types.LogEntry{{Content: text, EntryTime: firstTime(body)}}
		}
	}

	var out []types.LogEntry
	for _, e := range entries {
		if e.Validate() != nil {
			continue
		}
		out = append(out, c.SplitOversized(e)...)
	}
	return out, nil
}

// splitContainers returns one entry per outermost entry container.
func (c *Chunker) splitContainers(body *html.Node) []types.LogEntry {
	var entries []types.LogEntry
	var rec func(*html.Node)
	rec = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if parser.Skipped(n) {
				return
			}
			if isContainer(n) {
				entries = append(entries, containerEntry(n))
				return
			}
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			rec(ch)
		}
	}
	rec(body)
	return entries
}

func containerEntry(n *html.Node) types.LogEntry {
	entry := types.LogEntry{EntryTime: firstTime(n)}
	var content strings.Builder
	var rec func(*html.Node)
	rec = func(n *html.Node) {
		if n.Type == html.TextNode {
			content.WriteString(n.Data)
			return
		}
		if n.Type == html.ElementNode {
			if parser.Skipped(n) {
				return
			}
			if isHeading(n) && entry.Heading == "" {
				entry.Heading = parser.CollapseSpace(parser.Text(n))
				return
			}
		}
		block := n.Type == html.ElementNode && parser.IsBlock(n)
		if block {
			content.WriteByte(' ')
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			rec(ch)
		}
		if block {
			content.WriteByte(' ')
		}
	}
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		rec(ch)
	}
	entry.Content = parser.CollapseSpace(content.String())
	return entry
}

// section accumulates the text following one h2/h3 heading
type section struct {
	heading string
	text    strings.Builder
	at      *time.Time
}

// splitSections walks the body in document order, starting a new entry at
// every h2/h3. Text before the first such heading is not an entry.
func (c *Chunker) splitSections(body *html.Node) []types.LogEntry {
	var sections []*section
	var current *section

	var rec func(*html.Node)
	rec = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if current != nil {
				current.text.WriteString(n.Data)
			}
			return
		case html.ElementNode:
			if parser.Skipped(n) {
				return
			}
			if n.DataAtom == atom.H2 || n.DataAtom == atom.H3 {
				current = &section{heading: parser.CollapseSpace(parser.Text(n))}
				sections = append(sections, current)
				return
			}
			if n.DataAtom == atom.Time && current != nil && current.at == nil {
				current.at = parseTimeNode(n)
			}
		}
		block := n.Type == html.ElementNode && parser.IsBlock(n)
		if block && current != nil {
			current.text.WriteByte(' ')
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			rec(ch)
		}
		if block && current != nil {
			current.text.WriteByte(' ')
		}
	}
	rec(body)

	entries := make([]types.LogEntry, 0, len(sections))
	for _, s := range sections {
		entries = append(entries, types.LogEntry{
			Heading:   s.heading,
			Content:   parser.CollapseSpace(s.text.String()),
			EntryTime: s.at,
		})
	}
	return entries
}

// SplitOversized splits an entry longer than MaxEntryChars at word
// boundaries. Every part keeps the heading and entry time.
func (c *Chunker) SplitOversized(entry types.LogEntry) []types.LogEntry {
	if len(entry.Content) <= MaxEntryChars {
		return []types.LogEntry{entry}
	}

	var parts []types.LogEntry
	var buf strings.Builder
	flush := func() {
		if buf.Len() == 0 {
			return
		}
		parts = append(parts, types.LogEntry{
			Heading:   entry.Heading,
			Content:   buf.String(),
			EntryTime: entry.EntryTime,
		})
		buf.Reset()
	}

	for _, word := range strings.Fields(entry.Content) {
		if buf.Len() > 0 && buf.Len()+1+len(word) > MaxEntryChars {
			flush()
		}
		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(word)
	}
	flush()
	return parts
}

// Anchor moves clock-only entry times (parsed from "15:04") onto day.
func Anchor(entries []types.LogEntry, day time.Time) {
	for i := range entries {
		t := entries[i].EntryTime
		if t == nil || t.Year() != 0 {
			continue
		}
		anchored := time.Date(day.Year(), day.Month(), day.Day(),
			t.Hour(), t.Minute(), t.Second(), 0, day.Location())
		entries[i].EntryTime = &anchored
	}
}

// EntryHash identifies an entry by its text and time, so re-indexing a
// session log does not append the same memory twice.
func EntryHash(heading, content string, at *time.Time) [32]byte {
	stamp := ""
	if at != nil {
		stamp = at.UTC().Format(time.RFC3339)
	}
	return sha256.Sum256([]byte(heading + "\x00" + content + "\x00" + stamp))
}

func findBody(root *html.Node) *html.Node {
	var body *html.Node
	var rec func(*html.Node)
	rec = func(n *html.Node) {
		if body != nil {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Body {
			body = n
			return
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			rec(ch)
		}
	}
	rec(root)
	if body == nil {
		return root
	}
	return body
}

func isContainer(n *html.Node) bool {
	if n.DataAtom == atom.Article {
		return true
	}
	for _, class := range strings.Fields(parser.Attr(n, "class")) {
		if class == entryClass {
			return true
		}
	}
	return false
}

func isHeading(n *html.Node) bool {
	switch n.DataAtom {
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		return true
	}
	return false
}

// firstTime returns the first parseable <time> beneath n.
func firstTime(n *html.Node) *time.Time {
	if n.Type == html.ElementNode && n.DataAtom == atom.Time {
		if t := parseTimeNode(n); t != nil {
			return t
		}
	}
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		if t := firstTime(ch); t != nil {
			return t
		}
	}
	return nil
}

func parseTimeNode(n *html.Node) *time.Time {
	value := strings.TrimSpace(parser.Attr(n, "datetime"))
	if value == "" {
		value = parser.CollapseSpace(parser.Text(n))
	}
	return ParseEntryTime(value)
}

// ParseEntryTime accepts RFC3339, date, date-time and clock-only values.
// Clock-only values carry year zero until anchored.
func ParseEntryTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}
