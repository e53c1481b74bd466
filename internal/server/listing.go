package server

import (
	"bytes"
	"net/url"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/dshills/docgraph/pkg/types"
)

// renderTaskList renders tasks as an HTML fragment:
//
//	<section class="task-list" data-status="ACTIVE"><ul><li><a href="...">Title</a> <code>path</code></li></ul></section>
func renderTaskList(status types.TaskStatus, tasks []taskEntry) ([]byte, error) {
	section := element(atom.Section,
		html.Attribute{Key: "class", Val: "task-list"},
		html.Attribute{Key: "data-status", Val: string(status)})
	list := element(atom.Ul)
	section.AppendChild(list)

	for _, t := range tasks {
		li := element(atom.Li)
		a := element(atom.A, html.Attribute{
			Key: "href",
			Val: "/api/documents/content?path=" + url.QueryEscape(t.Path),
		})
		a.AppendChild(text(t.Title))
		code := element(atom.Code)
		code.AppendChild(text(t.Path))

		li.AppendChild(a)
		li.AppendChild(text(" "))
		li.AppendChild(code)
		list.AppendChild(li)
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, section); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}
