package graph

import (
	"path"
	"strings"

	"github.com/dshills/docgraph/internal/storage"
	"github.com/dshills/docgraph/pkg/types"
)

// Signal weights. A pair matching several signals gets their sum.
const (
	WeightLink      = 0.5
	WeightTitle     = 0.4
	WeightPath      = 0.3
	WeightDirectory = 0.2
)

// Reference types, named after the strongest signal that fired
const (
	TypeLink      = "link"
	TypeTitle     = "title"
	TypePath      = "path"
	TypeDirectory = "directory"
)

// relatedMarker introduces a list of related task paths in task content
const relatedMarker = "Related Tasks:"

// profile caches the per-document values every pair comparison needs
type profile struct {
	doc        *storage.Document
	lowerText  string
	lowerTitle string
	afterMark  string // content following the related marker, if any
	dirKey     string
	links      map[string]struct{}
}

func newProfile(doc *storage.Document) profile {
	p := profile{
		doc:        doc,
		lowerText:  strings.ToLower(doc.Content),
		lowerTitle: strings.ToLower(strings.TrimSpace(doc.Title)),
		dirKey:     topDirs(doc.Path),
		links:      make(map[string]struct{}),
	}
	if i := strings.Index(doc.Content, relatedMarker); i >= 0 {
		p.afterMark = doc.Content[i+len(relatedMarker):]
	}

	base := path.Dir(doc.Path)
	add := func(link string) {
		link = strings.TrimSpace(link)
		if link == "" || strings.Contains(link, "://") {
			return
		}
		p.links[strings.TrimPrefix(path.Clean(link), "/")] = struct{}{}
		if !strings.HasPrefix(link, "/") {
			p.links[path.Clean(path.Join(base, link))] = struct{}{}
		}
	}
	for _, l := range doc.Metadata.GetList(types.MetaLinks) {
		add(l)
	}
	for _, l := range doc.Metadata.GetList(types.MetaConnections) {
		add(l)
	}
	return p
}

// topDirs returns the first two directory segments of a document key, or
// "" for a file at the top level.
func topDirs(p string) string {
	dir := path.Dir(p)
	if dir == "." || dir == "/" {
		return ""
	}
	segs := strings.SplitN(strings.TrimPrefix(dir, "/"), "/", 3)
	if len(segs) > 2 {
		segs = segs[:2]
	}
	return strings.Join(segs, "/")
}

// InferReferences compares every ordered pair of documents and returns a
// reference doc -> other for each pair with a positive weight. The edge
// points from the document whose content mentions the other.
func InferReferences(docs []*storage.Document) []storage.Reference {
	profiles := make([]profile, len(docs))
	for i, d := range docs {
		profiles[i] = newProfile(d)
	}

	refs := make([]storage.Reference, 0)
	for i := range profiles {
		for j := range profiles {
			src, dst := &profiles[i], &profiles[j]
			if src.doc.ID == dst.doc.ID {
				continue
			}
			weight, kind := score(src, dst)
			if weight <= 0 {
				continue
			}
			refs = append(refs, storage.Reference{
				SourceID: src.doc.ID,
				TargetID: dst.doc.ID,
				Type:     kind,
				Weight:   weight,
			})
		}
	}
	return refs
}

// Score returns the weight and type of the reference doc -> other.
func Score(doc, other *storage.Document) (float64, string) {
	src, dst := newProfile(doc), newProfile(other)
	return score(&src, &dst)
}

func score(src, dst *profile) (float64, string) {
	var weight, best float64
	var kind string
	fire := func(w float64, t string) {
		weight += w
		if w > best {
			best, kind = w, t
		}
	}

	if dst.lowerTitle != "" && strings.Contains(src.lowerText, dst.lowerTitle) {
		fire(WeightTitle, TypeTitle)
	}
	target := dst.doc.Path
	if target != "" && strings.Contains(src.doc.Content, target) {
		fire(WeightPath, TypePath)
	}
	if src.dirKey != "" && src.dirKey == dst.dirKey {
		fire(WeightDirectory, TypeDirectory)
	}
	if target != "" && linked(src, target) {
		fire(WeightLink, TypeLink)
	}
	return weight, kind
}

func linked(src *profile, target string) bool {
	if _, ok := src.links[target]; ok {
		return true
	}
	if strings.Contains(src.doc.Content, `href="`+target+`"`) {
		return true
	}
	return src.afterMark != "" && strings.Contains(src.afterMark, target)
}
