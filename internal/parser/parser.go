package parser

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/dshills/docgraph/pkg/types"
)

// ErrNotHTML is returned for input that cannot be an HTML text document
var ErrNotHTML = errors.New("input is not an HTML text document")

// Parser extracts title, visible text and meta fields from HTML documents
type Parser struct{}

// New creates a new Parser instance
func New() *Parser {
	return &Parser{}
}

// ParseFile reads and parses an HTML file
func (p *Parser) ParseFile(filePath string) (*types.Extraction, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return p.Parse(content, filePath)
}

// Parse extracts an HTML document. filename supplies the fallback title.
func (p *Parser) Parse(raw []byte, filename string) (*types.Extraction, error) {
	if !utf8.Valid(raw) || bytes.IndexByte(raw, 0) >= 0 {
		return nil, ErrNotHTML
	}

	root, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	ex := &types.Extraction{
		Metadata: types.Metadata{},
		Priority: types.DefaultPriority,
	}
	w := &walker{ex: ex}
	w.visit(root, false)

	ex.Title = w.title
	if ex.Title == "" {
		ex.Title = w.h1
	}
	if ex.Title == "" {
		base := filepath.Base(filename)
		ex.Title = strings.TrimSuffix(base, filepath.Ext(base))
	}

	ex.Content = CollapseSpace(w.text.String())

	if len(w.links) > 0 {
		ex.Links = w.links
		ex.SetDerived(types.MetaLinks, types.ListValue(w.links))
	}

	return ex, nil
}

// walker is a visitor for DOM traversal that fills an Extraction
type walker struct {
	ex    *types.Extraction
	title string
	h1    string
	text  strings.Builder
	links []string
}

// visit is called for each DOM node. Only text under <body> becomes content.
func (w *walker) visit(n *html.Node, inBody bool) {
	switch n.Type {
	case html.TextNode:
		if inBody {
			w.text.WriteString(n.Data)
		}
		return
	case html.ElementNode:
		if Skipped(n) {
			return
		}
		switch n.DataAtom {
		case atom.Title:
			if w.title == "" {
				w.title = CollapseSpace(Text(n))
			}
			return
		case atom.Meta:
			applyMeta(w.ex, Attr(n, "name"), Attr(n, "content"))
			return
		case atom.Body:
			inBody = true
		case atom.H1:
			if w.h1 == "" {
				w.h1 = CollapseSpace(Text(n))
			}
		case atom.A:
			w.addLink(Attr(n, "href"))
		}
	}

	block := n.Type == html.ElementNode && IsBlock(n)
	if block && inBody {
		w.text.WriteByte(' ')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.visit(c, inBody)
	}
	if block && inBody {
		w.text.WriteByte(' ')
	}
}

// addLink records an href target without its query or fragment.
func (w *walker) addLink(href string) {
	href = strings.TrimSpace(href)
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		href = href[:i]
	}
	if href == "" {
		return
	}
	w.links = mergeList(w.links, []string{href})
}

// Skipped reports whether an element's subtree is never visible text.
func Skipped(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Noscript, atom.Template:
		return true
	}
	return false
}

// IsBlock reports whether n breaks the flow of text.
func IsBlock(n *html.Node) bool {
	switch n.DataAtom {
	case atom.P, atom.Div, atom.Br, atom.Li, atom.Ul, atom.Ol, atom.Dl, atom.Dt, atom.Dd,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Table, atom.Tr, atom.Td, atom.Th, atom.Pre, atom.Blockquote, atom.Hr,
		atom.Section, atom.Article, atom.Header, atom.Footer, atom.Nav, atom.Main, atom.Aside:
		return true
	}
	return false
}

// Text returns the visible text beneath n with block boundaries kept as
// spaces.
func Text(n *html.Node) string {
	var sb strings.Builder
	var rec func(*html.Node)
	rec = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			return
		}
		if n.Type == html.ElementNode && Skipped(n) {
			return
		}
		block := n.Type == html.ElementNode && IsBlock(n)
		if block {
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			rec(c)
		}
		if block {
			sb.WriteByte(' ')
		}
	}
	rec(n)
	return sb.String()
}

// CollapseSpace folds every whitespace run into one space and trims.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Attr returns the value of attribute key on n, or "".
func Attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}
