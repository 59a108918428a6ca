// Package report renders a document's outline with every annotation filed
// under the bookmark it resolves to.
package report

import (
	"cmp"
	"slices"

	"github.com/dgallion1/bookmarkd/internal/outline"
	"github.com/dgallion1/bookmarkd/internal/session"
)

// Report is the annotated outline of one document.
type Report struct {
	DocID      string  `json:"doc_id"`
	Title      string  `json:"title"`
	PageCount  int     `json:"page_count"`
	Roots      []*Node `json:"bookmarks"`
	Unparented []Item  `json:"unparented"`
}

// Node is a bookmark with the annotations it owns.
type Node struct {
	Name        string  `json:"name"`
	Page        int     `json:"page"`
	Y           float64 `json:"y"`
	Annotations []Item  `json:"annotations,omitempty"`
	Children    []*Node `json:"children,omitempty"`
}

// Item is one annotation in the report.
type Item struct {
	ID       string  `json:"id"`
	Page     int     `json:"page"`
	Y        float64 `json:"y"`
	Subtype  string  `json:"subtype,omitempty"`
	Author   string  `json:"author,omitempty"`
	Contents string  `json:"contents,omitempty"`
}

// Build files the document's annotations under their parent bookmarks.
// Annotations are ordered by position within each bookmark.
func Build(doc *session.Document) *Report {
	r := &Report{
		DocID:      doc.ID,
		Title:      doc.Outline.Title,
		PageCount:  doc.Outline.PageCount,
		Unparented: []Item{},
	}

	nodes := make(map[*outline.Bookmark]*Node)
	var build func(bs []*outline.Bookmark) []*Node
	build = func(bs []*outline.Bookmark) []*Node {
		out := make([]*Node, 0, len(bs))
		for _, b := range bs {
			if b == nil {
				continue
			}
			n := &Node{Name: b.Name, Page: b.Page, Y: b.Y}
			nodes[b] = n
			n.Children = build(b.Children)
			out = append(out, n)
		}
		return out
	}
	r.Roots = build(doc.Outline.Bookmarks)

	ix := doc.Index()
	for _, a := range doc.Annotations {
		it := Item{ID: a.ID, Page: a.Page, Y: a.Y, Subtype: a.Subtype, Author: a.Author, Contents: a.Contents}
		b, ok := ix.Resolve(a.Page, a.Y)
		if !ok {
			r.Unparented = append(r.Unparented, it)
			continue
		}
		n := nodes[b]
		n.Annotations = append(n.Annotations, it)
	}

	byPosition := func(a, b Item) int {
		return cmp.Or(cmp.Compare(a.Page, b.Page), cmp.Compare(a.Y, b.Y))
	}
	for _, n := range nodes {
		slices.SortStableFunc(n.Annotations, byPosition)
	}
	slices.SortStableFunc(r.Unparented, byPosition)
	return r
}

// Annotated reports how many annotations have a parent bookmark.
func (r *Report) Annotated() int {
	count := 0
	var walk func(ns []*Node)
	walk = func(ns []*Node) {
		for _, n := range ns {
			count += len(n.Annotations)
			walk(n.Children)
		}
	}
	walk(r.Roots)
	return count
}
